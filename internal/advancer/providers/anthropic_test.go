package providers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusorch/nexusd/internal/advancer"
	"github.com/nexusorch/nexusd/internal/convstore"
)

func TestConvertAnthropicMessageToolResultBecomesUserMessage(t *testing.T) {
	wm := convstore.WireMessage{Role: convstore.WireTool, Content: "42", ToolCallID: "call_1"}
	param := convertAnthropicMessage(wm)
	require.NotNil(t, param.Content)
	require.Len(t, param.Content, 1)
}

func TestConvertAnthropicMessageAssistantCarriesToolUse(t *testing.T) {
	wm := convstore.WireMessage{
		Role:    convstore.WireAssistant,
		Content: "checking",
		ToolCalls: []convstore.WireToolCall{
			{ID: "call_1", Name: "read_file", Arguments: `{"path":"a.txt"}`},
		},
	}
	param := convertAnthropicMessage(wm)
	require.Len(t, param.Content, 2) // text block + tool_use block
}

func TestConvertAnthropicToolsSetsDescription(t *testing.T) {
	tools := []advancer.ToolSchema{
		{Name: "read_file", Description: "reads a file", Parameters: map[string]any{"type": "object"}},
	}
	out := convertAnthropicTools(tools)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfTool)
	require.Equal(t, "read_file", out[0].OfTool.Name)
	require.Equal(t, "reads a file", out[0].OfTool.Description.Value)
}
