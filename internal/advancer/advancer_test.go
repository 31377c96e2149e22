package advancer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/internal/dispatcher"
	"github.com/nexusorch/nexusd/internal/ledger"
	"github.com/nexusorch/nexusd/internal/toolregistry"
	"github.com/nexusorch/nexusd/pkg/models"
)

// fakeCompleter returns a canned reply regardless of the request, letting
// tests drive the Advancer without a real completion service.
type fakeCompleter struct {
	reply CompletionReply
	err   error
	calls []CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req CompletionRequest) (CompletionReply, error) {
	f.calls = append(f.calls, req)
	return f.reply, f.err
}

func newHarness(t *testing.T, tools []string) (*Advancer, *convstore.Store, string) {
	t.Helper()
	templatesDir := t.TempDir()
	sessionsDir := t.TempDir()

	tmpl := &models.AgentTemplate{AgentID: "reader", Type: models.AgentSolo, Model: "m", SystemPrompt: "sys", Tools: tools}
	raw, err := convstore.RenderTemplate(tmpl)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(templatesDir, "reader.agent.md"), raw, 0o644))

	store := convstore.New(templatesDir, sessionsDir)
	registry := toolregistry.Builtin(toolregistry.Deps{Store: store})

	l, err := ledger.New(filepath.Join(t.TempDir(), "approvals.task.md"))
	require.NoError(t, err)
	d := dispatcher.New(store, registry, l, zerolog.Nop())

	sessionID, err := store.CreateSession("reader", "reader-1")
	require.NoError(t, err)
	_, err = store.AppendMessage(sessionID, models.Message{
		Timestamp: time.Now().UTC(),
		Role:      models.RoleUser,
		Content:   "go",
	})
	require.NoError(t, err)

	return &Advancer{Store: store, Registry: registry, Dispatcher: d, Log: zerolog.Nop()}, store, sessionID
}

func TestAdvanceAppendsTextReply(t *testing.T) {
	adv, store, sessionID := newHarness(t, nil)
	adv.Completer = &fakeCompleter{reply: CompletionReply{Text: "hello there"}}

	require.NoError(t, adv.Advance(context.Background(), sessionID))

	sess, err := store.ReadSession(sessionID)
	require.NoError(t, err)
	require.Len(t, sess.Log, 2)
	require.Equal(t, models.RoleAssistant, sess.Log[1].Role)
	require.Equal(t, "hello there", sess.Log[1].Content)
}

func TestAdvanceSuspendsAtFirstGatedToolCall(t *testing.T) {
	adv, store, sessionID := newHarness(t, []string{"read_file", "write_file"})
	readmePath := filepath.Join(t.TempDir(), "readme.txt")
	require.NoError(t, os.WriteFile(readmePath, []byte("hi\n"), 0o644))

	adv.Completer = &fakeCompleter{reply: CompletionReply{ToolCalls: []models.ToolCall{
		{ID: "call_1", Name: "write_file", Args: map[string]any{"path": "out.txt", "content": "x"}},
		{ID: "call_2", Name: "read_file", Args: map[string]any{"path": readmePath}},
	}}}

	require.NoError(t, adv.Advance(context.Background(), sessionID))

	sess, err := store.ReadSession(sessionID)
	require.NoError(t, err)
	// user, assistant(tool_calls) — the gated write_file suspends before
	// read_file ever dispatches, so no tool_result is appended for either call.
	require.Len(t, sess.Log, 2)
	require.Equal(t, 1, adv.Dispatcher.PendingCount())
}

func TestAdvanceSkipsNonAdvancableSession(t *testing.T) {
	adv, store, sessionID := newHarness(t, nil)
	completer := &fakeCompleter{reply: CompletionReply{Text: "should not be called"}}
	adv.Completer = completer

	_, err := store.AppendMessage(sessionID, models.Message{
		Timestamp: time.Now().UTC(),
		Role:      models.RoleAssistant,
		Content:   "already answered",
	})
	require.NoError(t, err)

	require.NoError(t, adv.Advance(context.Background(), sessionID))
	require.Empty(t, completer.calls)
}

func TestAdvanceMarksSessionErrorOnEmptyReply(t *testing.T) {
	adv, store, sessionID := newHarness(t, nil)
	adv.Completer = &fakeCompleter{reply: CompletionReply{}}

	err := adv.Advance(context.Background(), sessionID)
	require.Error(t, err)

	sess, err := store.ReadSession(sessionID)
	require.NoError(t, err)
	require.Equal(t, models.StatusError, sess.Status)
}
