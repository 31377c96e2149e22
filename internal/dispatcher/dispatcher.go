// Package dispatcher implements the Tool Dispatcher & Approval Gate (spec
// §4.5): for a single tool call, it either runs the tool immediately or
// enqueues it in the Approval Ledger and remembers it in pending_actions
// until a human decides. It generalizes the teacher's ApprovalChecker
// (internal/agent/approval.go) into a registry-owned predicate, so the
// only tool name ever special-cased here is send_message.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/internal/ledger"
	"github.com/nexusorch/nexusd/internal/toolregistry"
	"github.com/nexusorch/nexusd/pkg/models"
)

// Pending is the in-memory record for a tool call awaiting a human
// decision (spec §4.5 pending_actions).
type Pending struct {
	SessionID  string
	ToolCallID string
	ToolName   string
	Args       map[string]any
}

// Dispatcher owns pending_actions and routes tool calls to either
// immediate execution or the approval ledger.
type Dispatcher struct {
	Store    *convstore.Store
	Registry *toolregistry.Registry
	Ledger   *ledger.Ledger
	Log      zerolog.Logger

	mu      sync.Mutex
	pending map[string]Pending // approval id -> pending action
	order   []string           // approval ids in the order they were first seen
}

// New returns a Dispatcher with an empty pending_actions map.
func New(store *convstore.Store, registry *toolregistry.Registry, l *ledger.Ledger, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		Store:    store,
		Registry: registry,
		Ledger:   l,
		Log:      log,
		pending:  make(map[string]Pending),
	}
}

// addPending records a newly gated call, preserving first-seen order so
// ResolveDecisions can apply decisions in the order the calls were gated
// (spec §4.6) rather than in lexical approval-id order.
func (d *Dispatcher) addPending(approvalID string, p Pending) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.pending[approvalID]; !exists {
		d.order = append(d.order, approvalID)
	}
	d.pending[approvalID] = p
}

// removePending forgets a resolved or stale approval id.
func (d *Dispatcher) removePending(approvalID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, approvalID)
	for i, id := range d.order {
		if id == approvalID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Outcome reports what happened to one tool call.
type Outcome struct {
	// Result is non-nil when a tool_result is ready to append now (safe
	// path, send_message, or an unknown-tool failure).
	Result *models.Message
	// Deferred is true when the call was enqueued for approval; no
	// tool_result should be appended yet.
	Deferred bool
}

// Dispatch handles one tool call from an assistant message just appended to
// sessionID. It never appends the assistant message itself — the advancer
// does that before calling Dispatch for each declared call.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, call models.ToolCall) (Outcome, error) {
	if call.Name == "send_message" {
		return d.dispatchSendMessage(ctx, sessionID, call)
	}

	tool, ok := d.Registry.Get(call.Name)
	if !ok {
		return Outcome{Result: errorResult(call.ID, fmt.Sprintf("unknown tool %q", call.Name))}, nil
	}

	required, risk, description := tool.RequiresApproval(call.Args)
	if !required {
		return Outcome{Result: d.run(ctx, tool, call)}, nil
	}

	approvalID, err := d.Ledger.Request(sessionID, call.ID, call.Name, call.Args, risk, description)
	if err != nil {
		return Outcome{}, fmt.Errorf("dispatcher: request approval: %w", err)
	}
	d.addPending(approvalID, Pending{SessionID: sessionID, ToolCallID: call.ID, ToolName: call.Name, Args: call.Args})

	d.Log.Info().Str("approval_id", approvalID).Str("session", sessionID).Str("tool", call.Name).Msg("tool call gated pending approval")
	return Outcome{Deferred: true}, nil
}

// run executes a tool and converts any error into a failed tool_result,
// matching spec §4.5's "execution exceptions are caught and surfaced".
func (d *Dispatcher) run(ctx context.Context, tool toolregistry.Tool, call models.ToolCall) *models.Message {
	out, err := d.Registry.Invoke(ctx, tool.Name, call.Args)
	if err != nil {
		return errorResult(call.ID, err.Error())
	}
	return successResult(call.ID, out)
}

func (d *Dispatcher) dispatchSendMessage(ctx context.Context, sessionID string, call models.ToolCall) (Outcome, error) {
	targetAgentID, _ := call.Args["agent_id"].(string)
	content, _ := call.Args["content"].(string)

	target, err := d.Store.ReadSession(targetAgentID)
	if err != nil || target == nil {
		return Outcome{Result: errorResult(call.ID, fmt.Sprintf("target session %q not found", targetAgentID))}, nil
	}

	if _, err := d.Store.AppendMessage(target.ID, models.Message{
		Timestamp: time.Now().UTC(),
		Role:      models.RoleUser,
		Content:   content,
	}); err != nil {
		return Outcome{Result: errorResult(call.ID, err.Error())}, nil
	}

	return Outcome{Result: successResult(call.ID, map[string]any{"delivered_to": target.ID})}, nil
}

func successResult(toolCallID string, result map[string]any) *models.Message {
	return &models.Message{
		Timestamp:  time.Now().UTC(),
		Role:       models.RoleToolResult,
		ToolCallID: toolCallID,
		Result:     &models.ToolResultPayload{Success: true, Result: result},
	}
}

func errorResult(toolCallID, errMsg string) *models.Message {
	return &models.Message{
		Timestamp:  time.Now().UTC(),
		Role:       models.RoleToolResult,
		ToolCallID: toolCallID,
		Result:     &models.ToolResultPayload{Success: false, Error: errMsg},
	}
}

// PendingCount reports the current size of pending_actions, for tests and
// CLI introspection.
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
