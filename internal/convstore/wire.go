package convstore

import (
	"encoding/json"
	"fmt"

	"github.com/nexusorch/nexusd/pkg/models"
)

// WireRole is the role vocabulary the completion service expects. tool_result
// entries are re-mapped to "tool" per spec §4.1.
type WireRole string

const (
	WireSystem    WireRole = "system"
	WireUser      WireRole = "user"
	WireAssistant WireRole = "assistant"
	WireTool      WireRole = "tool"
)

// WireToolCall is a tool call with its argument object re-serialized to a
// JSON string, matching the upstream OpenAI-style protocol (spec §6).
type WireToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON-encoded
}

// WireMessage is one entry in the message sequence sent to complete().
type WireMessage struct {
	Role       WireRole
	Content    string
	ToolCalls  []WireToolCall
	ToolCallID string // only Role == WireTool
}

// MessagesForCompletion produces the wire-format message sequence: a
// synthetic system message from the session's system prompt, followed by
// log entries with roles re-mapped and tool-call arguments re-serialized to
// strings (spec §4.1).
func MessagesForCompletion(sess *models.Session) ([]WireMessage, error) {
	out := make([]WireMessage, 0, len(sess.Log)+1)
	if sess.SystemPrompt != "" {
		out = append(out, WireMessage{Role: WireSystem, Content: sess.SystemPrompt})
	}

	for _, m := range sess.Log {
		switch m.Role {
		case models.RoleUser:
			out = append(out, WireMessage{Role: WireUser, Content: m.Content})
		case models.RoleAssistant:
			wm := WireMessage{Role: WireAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				argBytes, err := json.Marshal(tc.Args)
				if err != nil {
					return nil, fmt.Errorf("convstore: serialize tool_call args for %s: %w", tc.ID, err)
				}
				wm.ToolCalls = append(wm.ToolCalls, WireToolCall{
					ID:        tc.ID,
					Name:      tc.Name,
					Arguments: string(argBytes),
				})
			}
			out = append(out, wm)
		case models.RoleToolResult:
			content := m.Content
			if m.Result != nil {
				b, err := json.Marshal(m.Result)
				if err == nil {
					content = string(b)
				}
			}
			out = append(out, WireMessage{Role: WireTool, Content: content, ToolCallID: m.ToolCallID})
		}
	}
	return out, nil
}
