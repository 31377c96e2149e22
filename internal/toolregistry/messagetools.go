package toolregistry

import (
	"context"

	"github.com/nexusorch/nexusd/pkg/models"
)

var sendMessageSchemaDoc = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"agent_id": map[string]any{"type": "string"},
		"content":  map[string]any{"type": "string"},
	},
	"required":             []any{"agent_id", "content"},
	"additionalProperties": false,
}
var sendMessageSchema = compileSchema("send_message", sendMessageSchemaDoc)

// SendMessageTool is the one tool the dispatcher names explicitly (spec
// §9): Run only returns the intent, the cross-session append itself is the
// orchestrator's privileged act, performed by the dispatcher once it sees
// this tool name — never by the tool's own Run.
func SendMessageTool() Tool {
	return Tool{
		Name:        "send_message",
		Description: "Send content to another agent's session.",
		Parameters:  sendMessageSchemaDoc,
		Schema:      sendMessageSchema,
		RequiresApproval: func(map[string]any) (bool, models.RiskLevel, string) {
			return false, "", ""
		},
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			agentID, err := argString(args, "agent_id")
			if err != nil {
				return nil, err
			}
			content, err := argString(args, "content")
			if err != nil {
				return nil, err
			}
			return map[string]any{"agent_id": agentID, "content": content}, nil
		},
	}
}
