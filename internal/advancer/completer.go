// Package advancer implements the Session Advancer (spec §4.4): the only
// component that calls the completion service. One Advance call performs
// exactly one blocking round-trip and applies whatever the model returned.
package advancer

import (
	"context"

	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/pkg/models"
)

// ToolSchema is a provider-agnostic tool declaration handed to Complete.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // raw JSON Schema document
}

// ToolChoice mirrors the three modes spec §4.4 step 2 names.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// CompletionRequest is what Advance sends to the completion service.
type CompletionRequest struct {
	Model      string
	Messages   []convstore.WireMessage
	Tools      []ToolSchema
	ToolChoice ToolChoice
}

// CompletionReply is the model's single reply: either free text, or one or
// more tool calls (never both being meaningful at once in this protocol —
// accompanying text on a tool-call reply is preserved but the session
// advances via the tool calls).
type CompletionReply struct {
	Text      string
	ToolCalls []models.ToolCall
}

// Completer is the out-of-scope external collaborator (spec §1(b)): a
// pluggable chat-completion service, treated as the remote function
// complete(model, messages, tools, tool_choice) -> message.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionReply, error)
}
