package convstore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexusorch/nexusd/pkg/models"
)

func writeTemplate(t *testing.T, dir, agentID, body string) {
	t.Helper()
	tmpl := &models.AgentTemplate{
		AgentID:      agentID,
		Type:         models.AgentSolo,
		Model:        "test-model",
		SystemPrompt: body,
		Tools:        []string{"read_file"},
	}
	raw, err := RenderTemplate(tmpl)
	require.NoError(t, err)
	require.NoError(t, writeFile(dir+"/"+agentID+".agent.md", raw))
}

func writeFile(path string, data []byte) error {
	return atomicWriteFile(path, data, 0o644)
}

func TestCreateAndAppendRoundTrip(t *testing.T) {
	templatesDir := t.TempDir()
	sessionsDir := t.TempDir()
	writeTemplate(t, templatesDir, "greeter", "Reply 'Hi there!' to any greeting")

	store := New(templatesDir, sessionsDir)
	id, err := store.CreateSession("greeter", "greeter-001")
	require.NoError(t, err)
	require.Equal(t, "greeter-001", id)

	sess, err := store.AppendMessage(id, models.Message{
		Timestamp: time.Now().UTC(),
		Role:      models.RoleUser,
		Content:   "Hello",
	})
	require.NoError(t, err)
	require.Len(t, sess.Log, 1)
	require.True(t, sess.Advancable())

	reloaded, err := store.ReadSession(id)
	require.NoError(t, err)
	require.Len(t, reloaded.Log, 1)
	require.Equal(t, "Hello", reloaded.Log[0].Content)
	require.Equal(t, "Reply 'Hi there!' to any greeting", reloaded.SystemPrompt)
}

func TestAppendOnlyPrefix(t *testing.T) {
	templatesDir := t.TempDir()
	sessionsDir := t.TempDir()
	writeTemplate(t, templatesDir, "a", "sys")
	store := New(templatesDir, sessionsDir)
	id, err := store.CreateSession("a", "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := store.AppendMessage(id, models.Message{
			Timestamp: time.Now().UTC(),
			Role:      models.RoleUser,
			Content:   "msg",
		})
		require.NoError(t, err)
	}

	sess, err := store.ReadSession(id)
	require.NoError(t, err)
	require.Len(t, sess.Log, 3)
}

func TestToolCallRoundTrip(t *testing.T) {
	templatesDir := t.TempDir()
	sessionsDir := t.TempDir()
	writeTemplate(t, templatesDir, "reader", "Read files when asked")
	store := New(templatesDir, sessionsDir)
	id, _ := store.CreateSession("reader", "reader-1")

	_, err := store.AppendMessage(id, models.Message{
		Timestamp: time.Now().UTC(),
		Role:      models.RoleUser,
		Content:   "Read memo.txt",
	})
	require.NoError(t, err)

	_, err = store.AppendMessage(id, models.Message{
		Timestamp: time.Now().UTC(),
		Role:      models.RoleAssistant,
		ToolCalls: []models.ToolCall{{ID: "call_1", Name: "read_file", Args: map[string]any{"path": "memo.txt"}}},
	})
	require.NoError(t, err)

	sess, err := store.ReadSession(id)
	require.NoError(t, err)
	require.Len(t, sess.Log, 2)
	require.Equal(t, "call_1", sess.Log[1].ToolCalls[0].ID)
	require.Equal(t, "memo.txt", sess.Log[1].ToolCalls[0].Args["path"])

	_, err = store.AppendMessage(id, models.Message{
		Timestamp:  time.Now().UTC(),
		Role:       models.RoleToolResult,
		ToolCallID: "call_1",
		Result:     &models.ToolResultPayload{Success: true, Result: map[string]any{"content": "Test data"}},
	})
	require.NoError(t, err)

	sess, err = store.ReadSession(id)
	require.NoError(t, err)
	require.Len(t, sess.Log, 3)
	require.True(t, sess.Log[2].Result.Success)

	wire, err := MessagesForCompletion(sess)
	require.NoError(t, err)
	// system + user + assistant(tool_calls) + tool
	require.Len(t, wire, 4)
	require.Equal(t, WireTool, wire[3].Role)
	require.Equal(t, "call_1", wire[3].ToolCallID)
}

func TestBrokenLogDetected(t *testing.T) {
	templatesDir := t.TempDir()
	sessionsDir := t.TempDir()
	writeTemplate(t, templatesDir, "a", "sys")
	store := New(templatesDir, sessionsDir)
	id, _ := store.CreateSession("a", "broken")

	sess, err := store.ReadSession(id)
	require.NoError(t, err)
	sess.Log = append(sess.Log, models.Message{
		Timestamp:  time.Now().UTC(),
		Role:       models.RoleToolResult,
		ToolCallID: "does-not-exist",
		Result:     &models.ToolResultPayload{Success: true},
	})
	require.NoError(t, store.WriteSession(sess))

	_, err = store.ReadSession(id)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrBrokenLog))
}

func TestReadSessionNotFound(t *testing.T) {
	store := New(t.TempDir(), t.TempDir())
	_, err := store.ReadSession("missing")
	require.True(t, errors.Is(err, ErrNotFound))
}
