package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nexusorch/nexusd/internal/advancer"
	"github.com/nexusorch/nexusd/internal/checkin"
	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/internal/dispatcher"
	"github.com/nexusorch/nexusd/internal/ledger"
	"github.com/nexusorch/nexusd/internal/toolregistry"
	"github.com/nexusorch/nexusd/pkg/models"
)

// stubCompleter returns a fixed reply regardless of the request, so tests
// can drive the Advancer deterministically without a real completion
// service.
type stubCompleter struct {
	reply advancer.CompletionReply
	err   error
}

func (s *stubCompleter) Complete(context.Context, advancer.CompletionRequest) (advancer.CompletionReply, error) {
	return s.reply, s.err
}

func newFixture(t *testing.T) (dir string, store *convstore.Store) {
	t.Helper()
	dir = t.TempDir()
	templatesDir := filepath.Join(dir, "templates")
	sessionsDir := filepath.Join(dir, "sessions")
	require.NoError(t, os.MkdirAll(templatesDir, 0o755))
	require.NoError(t, os.MkdirAll(sessionsDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tasks"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "storage"), 0o755))

	raw, err := convstore.RenderTemplate(&models.AgentTemplate{
		AgentID: "solo",
		Type:    models.AgentSolo,
		Model:   "claude-sonnet-4",
		Tools:   []string{"read_file"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(templatesDir, "solo.agent.md"), raw, 0o644))

	store = convstore.New(templatesDir, sessionsDir)
	return dir, store
}

// TestPumpAdvancesSafeToolUse covers scenario E2 (spec §8): an advancable
// session whose reply carries only a safe tool call should acquire both
// the assistant message and its tool_result in a single pump pass.
func TestPumpAdvancesSafeToolUse(t *testing.T) {
	dir, store := newFixture(t)
	sessionID, err := store.CreateSession("solo", "solo-001")
	require.NoError(t, err)
	_, err = store.AppendMessage(sessionID, models.Message{
		Timestamp: time.Now().UTC(),
		Role:      models.RoleUser,
		Content:   "please read the readme",
	})
	require.NoError(t, err)

	readmePath := filepath.Join(dir, "readme.txt")
	require.NoError(t, os.WriteFile(readmePath, []byte("hello\n"), 0o644))

	registry := toolregistry.Builtin(toolregistry.Deps{Store: store})
	l, err := ledger.New(filepath.Join(dir, "tasks", "approvals.task.md"))
	require.NoError(t, err)
	d := dispatcher.New(store, registry, l, zerolog.Nop())

	completer := &stubCompleter{reply: advancer.CompletionReply{
		ToolCalls: []models.ToolCall{{ID: "call_1", Name: "read_file", Args: map[string]any{"path": readmePath}}},
	}}
	adv := advancer.New(store, registry, d, completer, zerolog.Nop())
	ci := checkin.New(store, filepath.Join(dir, "storage", "planner-checkin.yaml"), time.Hour, "planner")

	r := New(store, d, adv, ci, zerolog.Nop())
	require.NoError(t, r.Pump(context.Background()))

	sess, err := store.ReadSession(sessionID)
	require.NoError(t, err)
	require.Len(t, sess.Log, 3) // user, assistant(tool_call), tool_result
	require.Equal(t, models.RoleAssistant, sess.Log[1].Role)
	require.Equal(t, models.RoleToolResult, sess.Log[2].Role)
	require.True(t, sess.Log[2].Result.Success)
}

// TestPumpGatesShellCommand covers scenario E3: a gated tool call suspends
// the turn, leaving a pending ledger entry and no tool_result, until a
// human decision resolves it on the next pump pass.
func TestPumpGatesShellCommand(t *testing.T) {
	dir, store := newFixture(t)
	sessionID, err := store.CreateSession("solo", "solo-002")
	require.NoError(t, err)
	_, err = store.AppendMessage(sessionID, models.Message{
		Timestamp: time.Now().UTC(),
		Role:      models.RoleUser,
		Content:   "remove the scratch file",
	})
	require.NoError(t, err)

	registry := toolregistry.Builtin(toolregistry.Deps{Store: store})
	ledgerPath := filepath.Join(dir, "tasks", "approvals.task.md")
	l, err := ledger.New(ledgerPath)
	require.NoError(t, err)
	d := dispatcher.New(store, registry, l, zerolog.Nop())

	completer := &stubCompleter{reply: advancer.CompletionReply{
		ToolCalls: []models.ToolCall{{ID: "call_1", Name: "execute_command", Args: map[string]any{"command": "rm scratch.txt"}}},
	}}
	adv := advancer.New(store, registry, d, completer, zerolog.Nop())
	ci := checkin.New(store, filepath.Join(dir, "storage", "planner-checkin.yaml"), time.Hour, "planner")

	r := New(store, d, adv, ci, zerolog.Nop())
	require.NoError(t, r.Pump(context.Background()))

	sess, err := store.ReadSession(sessionID)
	require.NoError(t, err)
	require.Len(t, sess.Log, 2) // user, assistant(tool_call) — no tool_result yet
	require.Equal(t, 1, d.PendingCount())

	pending, err := l.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

// TestPumpCheckinBaselineThenFires covers scenario E6: the first pump pass
// only establishes the check-in baseline; a later pass past the interval
// appends the nudge message to the planner session.
func TestPumpCheckinBaselineThenFires(t *testing.T) {
	dir, store := newFixture(t)
	raw, err := convstore.RenderTemplate(&models.AgentTemplate{
		AgentID: "planner",
		Type:    models.AgentPlanner,
		Model:   "claude-sonnet-4",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "templates", "planner.agent.md"), raw, 0o644))

	registry := toolregistry.Builtin(toolregistry.Deps{Store: store})
	l, err := ledger.New(filepath.Join(dir, "tasks", "approvals.task.md"))
	require.NoError(t, err)
	d := dispatcher.New(store, registry, l, zerolog.Nop())
	completer := &stubCompleter{reply: advancer.CompletionReply{}}
	adv := advancer.New(store, registry, d, completer, zerolog.Nop())

	ciPath := filepath.Join(dir, "storage", "planner-checkin.yaml")
	ci := checkin.New(store, ciPath, time.Minute, "planner")
	r := New(store, d, adv, ci, zerolog.Nop())

	require.NoError(t, r.Pump(context.Background()))
	ids, err := store.ListSessionIDs()
	require.NoError(t, err)
	require.Empty(t, ids, "baseline pass must not create a planner session")

	fired, err := ci.Evaluate(context.Background(), time.Now().UTC().Add(2*time.Minute))
	require.NoError(t, err)
	require.True(t, fired)

	ids, err = store.ListSessionIDs()
	require.NoError(t, err)
	require.Len(t, ids, 1)
}
