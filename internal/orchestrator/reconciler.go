// Package orchestrator implements the Orchestrator Loop (spec §4.6): it
// discovers sessions needing work, drives the Session Advancer, reacts to
// approval decisions, and emits planner check-ins, in both a long-running
// watch mode and a single-pass pump mode used for deterministic testing.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexusorch/nexusd/internal/advancer"
	"github.com/nexusorch/nexusd/internal/checkin"
	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/internal/dispatcher"
	"github.com/nexusorch/nexusd/pkg/models"
)

// Reconciler owns the one-pass reconciliation pump (spec §4.6 Pump mode):
// check-in evaluation, pending_actions reconciliation, approval-decision
// resolution, then a single advancement step for every advancable session.
type Reconciler struct {
	Store      *convstore.Store
	Dispatcher *dispatcher.Dispatcher
	Advancer   *advancer.Advancer
	Checkin    *checkin.Timer
	Log        zerolog.Logger
}

// New wires a Reconciler from its collaborators.
func New(store *convstore.Store, d *dispatcher.Dispatcher, a *advancer.Advancer, c *checkin.Timer, log zerolog.Logger) *Reconciler {
	return &Reconciler{Store: store, Dispatcher: d, Advancer: a, Checkin: c, Log: log}
}

// Pump runs exactly one reconciliation pass (spec §4.6): check-in
// evaluation, then rebuild/reconcile pending_actions from the ledger, then
// resolve any decisions found there, then advance every advancable
// session once. Errors from an individual session never abort the pass —
// they are logged and the pass continues with the next session, matching
// spec §7's "malformed input: log, skip this item this pass, retry later".
func (r *Reconciler) Pump(ctx context.Context) error {
	if r.Checkin != nil {
		if _, err := r.Checkin.Evaluate(ctx, time.Now().UTC()); err != nil {
			r.Log.Warn().Err(err).Msg("planner check-in evaluation failed")
		}
	}

	if err := r.Dispatcher.Reconcile(ctx); err != nil {
		return fmt.Errorf("orchestrator: reconcile pending actions: %w", err)
	}
	if err := r.Dispatcher.ResolveDecisions(ctx); err != nil {
		return fmt.Errorf("orchestrator: resolve approval decisions: %w", err)
	}

	ids, err := r.Store.ListSessionIDs()
	if err != nil {
		return fmt.Errorf("orchestrator: list sessions: %w", err)
	}
	for _, id := range ids {
		r.advanceOne(ctx, id)
	}
	return nil
}

func (r *Reconciler) advanceOne(ctx context.Context, sessionID string) {
	sess, err := r.Store.ReadSession(sessionID)
	if err != nil {
		r.Log.Warn().Err(err).Str("session", sessionID).Msg("skipping unreadable session this pass")
		return
	}
	if !sess.Advancable() || sess.Status != models.StatusActive {
		return
	}
	// The turn stays open while any tool call of the latest assistant
	// message lacks a tool_result (gated, or queued behind a gated call).
	for i := len(sess.Log) - 1; i >= 0; i-- {
		if sess.Log[i].Role != models.RoleAssistant {
			continue
		}
		answered := map[string]bool{}
		for _, m := range sess.Log[i+1:] {
			answered[m.ToolCallID] = true
		}
		for _, tc := range sess.Log[i].ToolCalls {
			if !answered[tc.ID] {
				return
			}
		}
		break
	}
	if err := r.Advancer.Advance(ctx, sessionID); err != nil {
		r.Log.Warn().Err(err).Str("session", sessionID).Msg("session advancement failed this pass")
	}
}
