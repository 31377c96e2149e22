// Package checkin implements the planner check-in timer (spec §4.7): a
// singleton, file-persisted record that nudges the planner session with a
// self-prompt once per configured interval, so a long-running population of
// agents gets a periodic progress review even when nothing else triggers
// one. Grounded on the teacher's internal/tasks/scheduler.go run-bookkeeping
// (last-run timestamp + run count persisted alongside the schedule), but
// flattened to the single YAML file spec.md's filesystem layout names
// instead of a scheduler's DB-backed execution log.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/pkg/models"
)

const checkinMessage = "Check-in with running agents to ensure progress"

// DefaultInterval is used when config omits an explicit interval (spec §6
// Environment/config: "Check-in interval (default 60 s)").
const DefaultInterval = 60 * time.Second

// Timer evaluates and advances the planner check-in singleton. It is not
// safe for concurrent use from more than one goroutine — the orchestrator
// is the record's single writer (spec §4.7 Concurrency).
type Timer struct {
	Store        *convstore.Store
	Path         string // storage/planner-checkin.yaml
	Interval     time.Duration
	PlannerAgent string // agent_id of the planner template, default "planner"
}

// New builds a Timer. interval defaults to DefaultInterval and plannerAgent
// defaults to "planner" when left zero-valued.
func New(store *convstore.Store, path string, interval time.Duration, plannerAgent string) *Timer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if plannerAgent == "" {
		plannerAgent = string(models.AgentPlanner)
	}
	return &Timer{Store: store, Path: path, Interval: interval, PlannerAgent: plannerAgent}
}

func (t *Timer) load() (models.CheckinState, error) {
	raw, err := os.ReadFile(t.Path)
	if errors.Is(err, os.ErrNotExist) {
		return models.CheckinState{IntervalSeconds: int(t.Interval.Seconds())}, nil
	}
	if err != nil {
		return models.CheckinState{}, fmt.Errorf("checkin: read state: %w", err)
	}
	var state models.CheckinState
	if err := yaml.Unmarshal(raw, &state); err != nil {
		return models.CheckinState{}, fmt.Errorf("checkin: parse state: %w", err)
	}
	return state, nil
}

func (t *Timer) save(state models.CheckinState) error {
	raw, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("checkin: render state: %w", err)
	}
	return atomicWriteFile(t.Path, raw, 0o644)
}

// Evaluate implements spec §4.7's two-phase behavior. The very first
// evaluation ever made (no state file on disk) only establishes a baseline
// timestamp and appends nothing — spec.md's explicit "baseline, no
// trigger" edge case. Every evaluation after that fires when at least
// Interval has elapsed since the last check-in, appending exactly one
// nudge message to the current planner session.
func (t *Timer) Evaluate(ctx context.Context, now time.Time) (fired bool, err error) {
	state, err := t.load()
	if err != nil {
		return false, err
	}
	first := state.LastCheckin.IsZero()

	if first {
		state.LastCheckin = now
		state.IntervalSeconds = int(t.Interval.Seconds())
		return false, t.save(state)
	}

	if now.Sub(state.LastCheckin) < t.Interval {
		return false, nil
	}

	sessionID, err := t.resolvePlannerSession(state)
	if err != nil {
		return false, err
	}

	if _, err := t.Store.AppendMessage(sessionID, models.Message{
		Timestamp: now,
		Role:      models.RoleUser,
		Content:   checkinMessage,
	}); err != nil {
		return false, fmt.Errorf("checkin: append nudge to session %s: %w", sessionID, err)
	}

	state.LastCheckin = now
	state.PlannerSessionID = sessionID
	state.Count++
	state.LastReason = fmt.Sprintf("interval of %s elapsed since last check-in", t.Interval)
	return true, t.save(state)
}

// resolvePlannerSession returns the recorded planner session if it still
// exists, else the earliest-by-filename session whose id carries the
// planner prefix, else a freshly created session from the planner
// template (spec §4.7, §9 "explicit plannerSessionID field").
func (t *Timer) resolvePlannerSession(state models.CheckinState) (string, error) {
	if state.PlannerSessionID != "" {
		if _, err := t.Store.ReadSession(state.PlannerSessionID); err == nil {
			return state.PlannerSessionID, nil
		}
	}

	ids, err := t.Store.ListSessionIDs()
	if err != nil {
		return "", fmt.Errorf("checkin: list sessions: %w", err)
	}
	prefix := t.PlannerAgent + "-"
	for _, id := range ids {
		if id == t.PlannerAgent || strings.HasPrefix(id, prefix) {
			return id, nil
		}
	}

	return t.Store.CreateSession(t.PlannerAgent, "")
}
