package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/internal/ledger"
	"github.com/nexusorch/nexusd/internal/toolregistry"
	"github.com/nexusorch/nexusd/pkg/models"
)

func newHarness(t *testing.T) (*Dispatcher, *convstore.Store, string) {
	t.Helper()
	templatesDir := t.TempDir()
	sessionsDir := t.TempDir()

	tmpl := &models.AgentTemplate{AgentID: "reader", Type: models.AgentSolo, Model: "m", SystemPrompt: "sys", Tools: []string{"read_file"}}
	raw, err := convstore.RenderTemplate(tmpl)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(templatesDir, "reader.agent.md"), raw, 0o644))

	store := convstore.New(templatesDir, sessionsDir)
	reg := toolregistry.New()
	reg.Register(toolregistry.ReadFileTool())
	reg.Register(toolregistry.WriteFileTool())

	ledgerPath := filepath.Join(t.TempDir(), "approvals.task.md")
	l, err := ledger.New(ledgerPath)
	require.NoError(t, err)

	d := New(store, reg, l, zerolog.Nop())
	return d, store, ledgerPath
}

// approveByHandEdit simulates a human flipping an entry's marker directly
// in the ledger file, the same way tasks/approvals.task.md is meant to be
// edited (spec §6).
func approveByHandEdit(t *testing.T, ledgerPath, approvalID string) {
	t.Helper()
	raw, err := os.ReadFile(ledgerPath)
	require.NoError(t, err)
	re := regexp.MustCompile(`- \[ \] id=` + regexp.QuoteMeta(approvalID) + `\b`)
	updated := re.ReplaceAll(raw, []byte("- [x] id="+approvalID))
	require.NoError(t, os.WriteFile(ledgerPath, updated, 0o644))
}

func TestDispatchSafeToolExecutesImmediately(t *testing.T) {
	d, store, _ := newHarness(t)
	sessionID, err := store.CreateSession("reader", "reader-1")
	require.NoError(t, err)

	memoPath := filepath.Join(t.TempDir(), "memo.txt")
	require.NoError(t, os.WriteFile(memoPath, []byte("Test data"), 0o644))

	outcome, err := d.Dispatch(context.Background(), sessionID, models.ToolCall{
		ID: "call_1", Name: "read_file", Args: map[string]any{"path": memoPath},
	})
	require.NoError(t, err)
	require.False(t, outcome.Deferred)
	require.NotNil(t, outcome.Result)
	require.True(t, outcome.Result.Result.Success)
	require.Equal(t, "Test data", outcome.Result.Result.Result["content"])
}

func TestDispatchGatedToolDefers(t *testing.T) {
	d, store, _ := newHarness(t)
	sessionID, err := store.CreateSession("reader", "reader-2")
	require.NoError(t, err)

	outcome, err := d.Dispatch(context.Background(), sessionID, models.ToolCall{
		ID: "call_1", Name: "write_file", Args: map[string]any{"path": "x.txt", "content": "hi"},
	})
	require.NoError(t, err)
	require.True(t, outcome.Deferred)
	require.Nil(t, outcome.Result)
	require.Equal(t, 1, d.PendingCount())
}

func TestResolveApprovedDecisionAppendsToolResult(t *testing.T) {
	d, store, ledgerPath := newHarness(t)
	sessionID, err := store.CreateSession("reader", "reader-3")
	require.NoError(t, err)

	writePath := filepath.Join(t.TempDir(), "out.txt")
	call := models.ToolCall{ID: "call_1", Name: "write_file", Args: map[string]any{"path": writePath, "content": "hi"}}
	_, err = store.AppendMessage(sessionID, models.Message{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{call}})
	require.NoError(t, err)

	outcome, err := d.Dispatch(context.Background(), sessionID, call)
	require.NoError(t, err)
	require.True(t, outcome.Deferred)

	pending, err := d.Ledger.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	approvalID := pending[0]

	approveByHandEdit(t, ledgerPath, approvalID)

	require.NoError(t, d.ResolveDecisions(context.Background()))
	require.Equal(t, 0, d.PendingCount())

	sess, err := store.ReadSession(sessionID)
	require.NoError(t, err)
	require.Len(t, sess.Log, 2) // assistant(tool_calls), tool_result call_1
	require.True(t, sess.Log[1].Result.Success)

	written, err := os.ReadFile(writePath)
	require.NoError(t, err)
	require.Equal(t, "hi", string(written))
}

func TestResolveRejectedDecisionAppendsFailure(t *testing.T) {
	d, store, ledgerPath := newHarness(t)
	sessionID, err := store.CreateSession("reader", "reader-4")
	require.NoError(t, err)

	call := models.ToolCall{ID: "call_1", Name: "write_file", Args: map[string]any{"path": "x.txt", "content": "hi"}}
	_, err = store.AppendMessage(sessionID, models.Message{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{call}})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), sessionID, call)
	require.NoError(t, err)

	pending, err := d.Ledger.ListPending()
	require.NoError(t, err)
	approvalID := pending[0]

	raw, err := os.ReadFile(ledgerPath)
	require.NoError(t, err)
	re := regexp.MustCompile(`- \[ \] id=` + regexp.QuoteMeta(approvalID) + `\b`)
	updated := re.ReplaceAll(raw, []byte("- [!] id="+approvalID))
	require.NoError(t, os.WriteFile(ledgerPath, updated, 0o644))

	require.NoError(t, d.ResolveDecisions(context.Background()))

	sess, err := store.ReadSession(sessionID)
	require.NoError(t, err)
	require.False(t, sess.Log[1].Result.Success)
	require.Equal(t, "rejected by operator", sess.Log[1].Result.Error)
}

// TestResolveApprovalDispatchesRemainingCallsInTurn guards against a turn
// stalling forever: when write_file (gated) and read_file (safe) are both
// declared on the same assistant message and write_file suspends first,
// approving it must also dispatch the still-undispatched read_file call
// before a fresh completion round is allowed.
func TestResolveApprovalDispatchesRemainingCallsInTurn(t *testing.T) {
	d, store, ledgerPath := newHarness(t)
	sessionID, err := store.CreateSession("reader", "reader-6")
	require.NoError(t, err)

	readmePath := filepath.Join(t.TempDir(), "readme.txt")
	require.NoError(t, os.WriteFile(readmePath, []byte("hi\n"), 0o644))

	writePath := filepath.Join(t.TempDir(), "out.txt")
	assistantMsg := models.Message{
		Role: models.RoleAssistant,
		ToolCalls: []models.ToolCall{
			{ID: "call_1", Name: "write_file", Args: map[string]any{"path": writePath, "content": "hi"}},
			{ID: "call_2", Name: "read_file", Args: map[string]any{"path": readmePath}},
		},
	}
	_, err = store.AppendMessage(sessionID, assistantMsg)
	require.NoError(t, err)

	outcome, err := d.Dispatch(context.Background(), sessionID, assistantMsg.ToolCalls[0])
	require.NoError(t, err)
	require.True(t, outcome.Deferred)

	pending, err := d.Ledger.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	approvalID := pending[0]

	approveByHandEdit(t, ledgerPath, approvalID)
	require.NoError(t, d.ResolveDecisions(context.Background()))

	sess, err := store.ReadSession(sessionID)
	require.NoError(t, err)
	require.Len(t, sess.Log, 3) // assistant(tool_calls), tool_result call_1, tool_result call_2
	require.Equal(t, "call_1", sess.Log[1].ToolCallID)
	require.True(t, sess.Log[1].Result.Success)
	require.Equal(t, "call_2", sess.Log[2].ToolCallID)
	require.True(t, sess.Log[2].Result.Success)
	require.Equal(t, "hi\n", sess.Log[2].Result.Result["content"])
	require.Equal(t, 0, d.PendingCount())
}

func TestReconcileClosesStaleEntries(t *testing.T) {
	d, store, _ := newHarness(t)
	sessionID, err := store.CreateSession("reader", "reader-5")
	require.NoError(t, err)

	call := models.ToolCall{ID: "call_1", Name: "write_file", Args: map[string]any{"path": "x.txt", "content": "hi"}}
	_, err = store.AppendMessage(sessionID, models.Message{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{call}})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), sessionID, call)
	require.NoError(t, err)

	pending, err := d.Ledger.ListPending()
	require.NoError(t, err)
	approvalID := pending[0]

	_, err = store.AppendMessage(sessionID, models.Message{
		Role:       models.RoleToolResult,
		ToolCallID: "call_1",
		Result:     &models.ToolResultPayload{Success: true},
	})
	require.NoError(t, err)

	require.NoError(t, d.Reconcile(context.Background()))
	require.Equal(t, 0, d.PendingCount())

	entry, err := d.Ledger.Get(approvalID)
	require.NoError(t, err)
	require.True(t, entry.Closed)
}
