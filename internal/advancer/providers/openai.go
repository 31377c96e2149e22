// Package providers adapts external chat-completion services to the
// advancer.Completer interface, grounded on the teacher's
// internal/agent/providers package.
package providers

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nexusorch/nexusd/internal/advancer"
	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/pkg/models"
)

// OpenAI adapts an OpenAI-compatible chat-completion endpoint. It performs
// a single non-streaming round-trip per Complete call — the advancer's
// blocking-call contract never needs partial tokens.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI builds an OpenAI completer from an API key.
func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{client: openai.NewClient(apiKey)}
}

func (p *OpenAI) Complete(ctx context.Context, req advancer.CompletionRequest) (advancer.CompletionReply, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m))
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertTools(req.Tools)
		chatReq.ToolChoice = convertToolChoice(req.ToolChoice)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return advancer.CompletionReply{}, fmt.Errorf("openai: create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return advancer.CompletionReply{}, nil
	}
	choice := resp.Choices[0].Message

	reply := advancer.CompletionReply{Text: choice.Content}
	for _, tc := range choice.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		reply.ToolCalls = append(reply.ToolCalls, models.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}
	return reply, nil
}

func convertMessage(m convstore.WireMessage) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return out
}

func convertTools(tools []advancer.ToolSchema) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func convertToolChoice(choice advancer.ToolChoice) any {
	switch choice {
	case advancer.ToolChoiceRequired:
		return "required"
	case advancer.ToolChoiceNone:
		return "none"
	default:
		return "auto"
	}
}
