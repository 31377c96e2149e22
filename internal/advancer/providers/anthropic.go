package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nexusorch/nexusd/internal/advancer"
	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/pkg/models"
)

const defaultMaxTokens = 4096

// Anthropic adapts the Claude Messages API. System prompt and tool_result
// blocks are handled by the Messages API's own conventions, which differ
// from OpenAI's flat message list — this adapter reshapes the wire
// messages accordingly rather than exposing that difference upstream.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic builds an Anthropic completer from an API key.
func NewAnthropic(apiKey string) *Anthropic {
	return &Anthropic{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

func (p *Anthropic) Complete(ctx context.Context, req advancer.CompletionRequest) (advancer.CompletionReply, error) {
	var system string
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == convstore.WireSystem {
			system = m.Content
			continue
		}
		messages = append(messages, convertAnthropicMessage(m))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(defaultMaxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertAnthropicTools(req.Tools)
		if req.ToolChoice == advancer.ToolChoiceRequired {
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
		}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return advancer.CompletionReply{}, fmt.Errorf("anthropic: create message: %w", err)
	}

	reply := advancer.CompletionReply{}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			reply.Text += block.Text
		case "tool_use":
			var args map[string]any
			_ = json.Unmarshal(block.Input, &args)
			reply.ToolCalls = append(reply.ToolCalls, models.ToolCall{ID: block.ID, Name: block.Name, Args: args})
		}
	}
	return reply, nil
}

func convertAnthropicMessage(m convstore.WireMessage) anthropic.MessageParam {
	if m.Role == convstore.WireTool {
		return anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
	if m.Content != "" {
		blocks = append(blocks, anthropic.NewTextBlock(m.Content))
	}
	for _, tc := range m.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Arguments), &args)
		blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
	}
	if m.Role == convstore.WireAssistant {
		return anthropic.NewAssistantMessage(blocks...)
	}
	return anthropic.NewUserMessage(blocks...)
}

func convertAnthropicTools(tools []advancer.ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{ExtraFields: t.Parameters}
		u := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if u.OfTool != nil {
			u.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, u)
	}
	return out
}
