package models

import "time"

// CheckinState is the singleton record persisted at
// storage/planner-checkin.yaml (spec §3, §4.7).
type CheckinState struct {
	LastCheckin      time.Time `yaml:"last_checkin"`
	IntervalSeconds  int       `yaml:"interval_seconds"`
	PlannerSessionID string    `yaml:"planner_session_id,omitempty"`
	Count            int       `yaml:"count"`
	LastReason       string    `yaml:"last_reason,omitempty"`
}
