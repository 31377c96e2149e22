package models

import "time"

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusActive    Status = "active"
	StatusSleeping  Status = "sleeping"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Session is a concrete, stateful instance of an AgentTemplate.
type Session struct {
	ID           string         `yaml:"id"`
	AgentID      string         `yaml:"agent_id"`
	Type         AgentType      `yaml:"type"`
	Model        string         `yaml:"model"`
	SystemPrompt string         `yaml:"-"`
	Status       Status         `yaml:"status"`
	CreatedAt    time.Time      `yaml:"created_at"`
	UpdatedAt    time.Time      `yaml:"updated_at"`
	Metadata     map[string]any `yaml:"metadata,omitempty"`
	Log          []Message      `yaml:"-"` // rendered as the markdown body
}

// LastMessage returns the last log entry, or nil for an empty log.
func (s *Session) LastMessage() *Message {
	if len(s.Log) == 0 {
		return nil
	}
	return &s.Log[len(s.Log)-1]
}

// Advancable reports whether the session's last message role makes it
// eligible for a Session Advancer step. It does not check for outstanding
// approvals blocking one of its tool calls — callers must do that
// separately (the orchestrator skips a session whose latest assistant
// message still has a tool call without a tool_result).
func (s *Session) Advancable() bool {
	last := s.LastMessage()
	if last == nil {
		return false
	}
	return last.Role == RoleUser || last.Role == RoleToolResult
}
