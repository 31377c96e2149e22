package toolregistry

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/nexusorch/nexusd/pkg/models"
)

var slackSendSchemaDoc = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"channel": map[string]any{"type": "string"},
		"message": map[string]any{"type": "string"},
	},
	"required":             []any{"channel", "message"},
	"additionalProperties": false,
}
var slackSendSchema = compileSchema("slack_send", slackSendSchemaDoc)

var slackReadSchemaDoc = map[string]any{
	"type":                 "object",
	"properties":           map[string]any{"limit": map[string]any{"type": "integer", "minimum": 1}},
	"additionalProperties": false,
}
var slackReadSchema = compileSchema("slack_read", slackReadSchemaDoc)

// SlackSendTool posts to an external channel, always gated at MEDIUM risk
// (spec §4.2: outbound messaging is always medium regardless of content).
func SlackSendTool(client *slack.Client) Tool {
	return Tool{
		Name:        "slack_send",
		Description: "Post a message to a Slack channel.",
		Parameters:  slackSendSchemaDoc,
		Schema:      slackSendSchema,
		RequiresApproval: func(args map[string]any) (bool, models.RiskLevel, string) {
			channel, _ := argString(args, "channel")
			return true, models.RiskMedium, fmt.Sprintf("Post message to Slack channel %s", channel)
		},
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			channel, err := argString(args, "channel")
			if err != nil {
				return nil, err
			}
			message, err := argString(args, "message")
			if err != nil {
				return nil, err
			}
			_, ts, err := client.PostMessageContext(ctx, channel, slack.MsgOptionText(message, false))
			if err != nil {
				return nil, fmt.Errorf("slack_send: %w", err)
			}
			return map[string]any{"timestamp": ts}, nil
		},
	}
}

// SlackReadTool reads recent channel history; it never posts, so it's safe.
func SlackReadTool(client *slack.Client, defaultChannel string) Tool {
	return Tool{
		Name:        "slack_read",
		Description: "Read recent messages from the configured Slack channel.",
		Parameters:  slackReadSchemaDoc,
		Schema:      slackReadSchema,
		RequiresApproval: func(map[string]any) (bool, models.RiskLevel, string) {
			return false, "", ""
		},
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			limit := 20
			if v, ok := args["limit"].(float64); ok && v > 0 {
				limit = int(v)
			}
			hist, err := client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
				ChannelID: defaultChannel,
				Limit:     limit,
			})
			if err != nil {
				return nil, fmt.Errorf("slack_read: %w", err)
			}
			texts := make([]string, 0, len(hist.Messages))
			for _, m := range hist.Messages {
				texts = append(texts, m.Text)
			}
			return map[string]any{"messages": texts}, nil
		},
	}
}
