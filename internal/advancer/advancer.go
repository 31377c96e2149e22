package advancer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/internal/dispatcher"
	"github.com/nexusorch/nexusd/internal/toolregistry"
	"github.com/nexusorch/nexusd/pkg/models"
)

// Advancer drives one session forward by exactly one completion round-trip
// (spec §4.4). It owns no concurrency discipline of its own — the
// Orchestrator Loop is responsible for ensuring only one Advance call runs
// per session at a time.
type Advancer struct {
	Store      *convstore.Store
	Registry   *toolregistry.Registry
	Dispatcher *dispatcher.Dispatcher
	Completer  Completer
	Log        zerolog.Logger
}

// New wires an Advancer from its collaborators.
func New(store *convstore.Store, registry *toolregistry.Registry, d *dispatcher.Dispatcher, completer Completer, log zerolog.Logger) *Advancer {
	return &Advancer{Store: store, Registry: registry, Dispatcher: d, Completer: completer, Log: log}
}

// Advance performs one advancement step for sessionID (spec §4.4
// Algorithm). It returns without error (and without effect) when the
// session has finished its turn per the create_task short-circuit.
func (a *Advancer) Advance(ctx context.Context, sessionID string) error {
	sess, err := a.Store.ReadSession(sessionID)
	if err != nil {
		return err
	}
	if !sess.Advancable() || sess.Status != models.StatusActive {
		return nil
	}

	if finishedTurn(sess) {
		return nil
	}

	tmpl, err := a.Store.ReadTemplate(sess.AgentID)
	if err != nil {
		return fmt.Errorf("advancer: load template for session %s: %w", sessionID, err)
	}
	tools, err := a.Registry.Resolve(tmpl.Tools)
	if err != nil {
		return fmt.Errorf("advancer: resolve tools for session %s: %w", sessionID, err)
	}

	wire, err := convstore.MessagesForCompletion(sess)
	if err != nil {
		return fmt.Errorf("advancer: build wire messages: %w", err)
	}

	reply, err := a.Completer.Complete(ctx, CompletionRequest{
		Model:      sess.Model,
		Messages:   wire,
		Tools:      toSchemas(tools),
		ToolChoice: resolveToolChoice(tmpl.ToolChoice),
	})
	if err != nil {
		return a.markError(sess, fmt.Errorf("completion call failed: %w", err))
	}

	switch {
	case len(reply.ToolCalls) > 0:
		return a.applyToolCalls(ctx, sess, reply)
	case reply.Text != "":
		_, err := a.Store.AppendMessage(sess.ID, models.Message{
			Timestamp: time.Now().UTC(),
			Role:      models.RoleAssistant,
			Content:   reply.Text,
		})
		return err
	default:
		return a.markError(sess, fmt.Errorf("completion service returned an empty reply"))
	}
}

// applyToolCalls appends the assistant message carrying the declared tool
// calls, then dispatches each in strict order, appending any tool_result the
// dispatcher produces immediately. The first call that requires approval
// suspends the turn: it is recorded in the ledger but every call after it
// is left completely undispatched until a human decision resolves the
// suspension (spec §4.4 Ordering guarantees / §9 design notes).
func (a *Advancer) applyToolCalls(ctx context.Context, sess *models.Session, reply CompletionReply) error {
	updated, err := a.Store.AppendMessage(sess.ID, models.Message{
		Timestamp: time.Now().UTC(),
		Role:      models.RoleAssistant,
		Content:   reply.Text,
		ToolCalls: reply.ToolCalls,
	})
	if err != nil {
		return err
	}

	for _, call := range reply.ToolCalls {
		outcome, err := a.Dispatcher.Dispatch(ctx, updated.ID, call)
		if err != nil {
			return fmt.Errorf("advancer: dispatch %s: %w", call.Name, err)
		}
		if outcome.Deferred {
			break
		}
		if outcome.Result != nil {
			if _, err := a.Store.AppendMessage(updated.ID, *outcome.Result); err != nil {
				return fmt.Errorf("advancer: append tool_result: %w", err)
			}
		}
	}
	return nil
}

func (a *Advancer) markError(sess *models.Session, cause error) error {
	sess.Status = models.StatusError
	if sess.Metadata == nil {
		sess.Metadata = map[string]any{}
	}
	sess.Metadata["last_error"] = cause.Error()
	if werr := a.Store.WriteSession(sess); werr != nil {
		return fmt.Errorf("advancer: mark session error: %w (original: %v)", werr, cause)
	}
	a.Log.Error().Err(cause).Str("session", sess.ID).Msg("session advancement failed")
	return cause
}

// finishedTurn implements spec §4.4 step 2's first bullet: a planner-style
// agent that just finished creating a task has nothing more to say until
// the next user or tool_result message arrives.
func finishedTurn(sess *models.Session) bool {
	last := sess.LastMessage()
	if last == nil || last.Role != models.RoleUser {
		return false
	}
	for i := len(sess.Log) - 1; i >= 0; i-- {
		m := sess.Log[i]
		if m.Role != models.RoleToolResult {
			continue
		}
		callName := toolNameForResult(sess, m.ToolCallID)
		return callName == "create_task" && m.Result != nil && m.Result.Success
	}
	return false
}

func toolNameForResult(sess *models.Session, toolCallID string) string {
	for _, m := range sess.Log {
		if m.Role != models.RoleAssistant {
			continue
		}
		for _, tc := range m.ToolCalls {
			if tc.ID == toolCallID {
				return tc.Name
			}
		}
	}
	return ""
}

// resolveToolChoice applies the template's tool_choice override (spec §9
// Open Question decision): a template that declares "required" forces a
// tool call every step; otherwise the advancer uses "auto" regardless of
// the triggering message's role, leaving the decision about whether to
// call a tool to the model.
func resolveToolChoice(override models.ToolChoiceMode) ToolChoice {
	if override == models.ToolChoiceRequired {
		return ToolChoiceRequired
	}
	return ToolChoiceAuto
}

func toSchemas(tools []toolregistry.Tool) []ToolSchema {
	schemas := make([]ToolSchema, 0, len(tools))
	for _, t := range tools {
		schemas = append(schemas, ToolSchema{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return schemas
}
