package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/nexusorch/nexusd/pkg/models"
)

// Reconcile rebuilds pending_actions from the ledger (spec §4.6): entries
// still pending are repopulated into the map keyed by their stored
// tool_call_id, unless the originating session's log already carries a
// matching tool_result, in which case the entry is stale and closed. This
// keys reconciliation on the explicit tool_call_id the ledger entry
// recorded, not a re-derived match on command/argument text.
func (d *Dispatcher) Reconcile(ctx context.Context) error {
	entries, err := d.Ledger.All()
	if err != nil {
		return fmt.Errorf("dispatcher: reconcile: %w", err)
	}

	d.mu.Lock()
	d.pending = make(map[string]Pending)
	d.order = nil
	d.mu.Unlock()

	for _, e := range entries {
		if e.Status != models.ApprovalPending || e.Closed {
			continue
		}
		sess, err := d.Store.ReadSession(e.SessionID)
		if err != nil {
			continue
		}
		if hasToolResult(sess, e.ToolCallID) {
			_ = d.Ledger.Close(e.ID)
			continue
		}
		d.addPending(e.ID, Pending{SessionID: e.SessionID, ToolCallID: e.ToolCallID, ToolName: e.ToolName, Args: e.Args})
	}
	return nil
}

func hasToolResult(sess *models.Session, toolCallID string) bool {
	for _, m := range sess.Log {
		if m.Role == models.RoleToolResult && m.ToolCallID == toolCallID {
			return true
		}
	}
	return false
}

// ResolveDecisions walks pending_actions in insertion order (spec §4.6:
// "decisions are applied in insertion order") and, for each approval id
// the ledger now reports as decided, executes or rejects the call, appends
// the resulting tool_result, and closes + forgets the entry. d.order
// records that insertion order directly, since a gated call earlier in a
// turn must resolve (and, via dispatchRemainingCalls, unblock its
// followers) before a later one is considered.
func (d *Dispatcher) ResolveDecisions(ctx context.Context) error {
	d.mu.Lock()
	ids := make([]string, len(d.order))
	copy(ids, d.order)
	d.mu.Unlock()

	for _, approvalID := range ids {
		if err := d.resolveOne(ctx, approvalID); err != nil {
			d.Log.Warn().Err(err).Str("approval_id", approvalID).Msg("failed to resolve approval decision")
		}
	}
	return nil
}

func (d *Dispatcher) resolveOne(ctx context.Context, approvalID string) error {
	d.mu.Lock()
	p, ok := d.pending[approvalID]
	d.mu.Unlock()
	if !ok {
		return nil
	}

	status, err := d.Ledger.Decision(approvalID)
	if err != nil {
		return err
	}
	if status == models.ApprovalPending {
		return nil
	}

	var result *models.Message
	switch status {
	case models.ApprovalApproved:
		tool, ok := d.Registry.Get(p.ToolName)
		if !ok {
			result = errorResult(p.ToolCallID, fmt.Sprintf("unknown tool %q", p.ToolName))
		} else {
			result = d.run(ctx, tool, models.ToolCall{ID: p.ToolCallID, Name: p.ToolName, Args: p.Args})
		}
	case models.ApprovalRejected:
		entry, _ := d.Ledger.Get(approvalID)
		notes := ""
		if entry != nil {
			notes = entry.Notes
		}
		result = &models.Message{
			Timestamp:  time.Now().UTC(),
			Role:       models.RoleToolResult,
			ToolCallID: p.ToolCallID,
			Result: &models.ToolResultPayload{
				Success: false,
				Error:   "rejected by operator",
				Result:  map[string]any{"notes": notes},
			},
		}
	}

	if result != nil {
		if _, err := d.Store.AppendMessage(p.SessionID, *result); err != nil {
			return fmt.Errorf("append resolved tool_result: %w", err)
		}
	}

	if err := d.Ledger.Close(approvalID); err != nil {
		return err
	}
	d.removePending(approvalID)

	return d.dispatchRemainingCalls(ctx, p.SessionID, p.ToolCallID)
}

// dispatchRemainingCalls resumes a turn that the advancer suspended at a
// gated call (spec §4.4 Ordering guarantee: tool_result_1 -> tool_result_2
// -> ...). Once the gating call at toolCallID has just been resolved, every
// call declared after it in the same assistant message still has no
// tool_result — dispatch them in order, appending results as they come
// back, and stop again at the next gated call rather than letting a fresh
// Advance start a new completion round over an incompletely-resolved turn.
func (d *Dispatcher) dispatchRemainingCalls(ctx context.Context, sessionID, toolCallID string) error {
	sess, err := d.Store.ReadSession(sessionID)
	if err != nil {
		return fmt.Errorf("dispatcher: read session %s: %w", sessionID, err)
	}
	calls, idx := toolCallsAfter(sess, toolCallID)
	if idx < 0 {
		return nil
	}

	for _, call := range calls[idx+1:] {
		if hasToolResult(sess, call.ID) {
			continue
		}
		outcome, err := d.Dispatch(ctx, sessionID, call)
		if err != nil {
			return fmt.Errorf("dispatcher: dispatch %s: %w", call.Name, err)
		}
		if outcome.Deferred {
			return nil
		}
		if outcome.Result != nil {
			if _, err := d.Store.AppendMessage(sessionID, *outcome.Result); err != nil {
				return fmt.Errorf("dispatcher: append tool_result: %w", err)
			}
		}
	}
	return nil
}

// toolCallsAfter returns the assistant message's full ToolCalls slice and
// the index of toolCallID within it, or (nil, -1) if no assistant message
// declared that call.
func toolCallsAfter(sess *models.Session, toolCallID string) ([]models.ToolCall, int) {
	for _, m := range sess.Log {
		if m.Role != models.RoleAssistant {
			continue
		}
		for i, tc := range m.ToolCalls {
			if tc.ID == toolCallID {
				return m.ToolCalls, i
			}
		}
	}
	return nil, -1
}
