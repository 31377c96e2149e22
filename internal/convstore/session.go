package convstore

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nexusorch/nexusd/pkg/models"
)

// sessionFrontMatter mirrors models.Session's on-disk metadata fields.
type sessionFrontMatter struct {
	ID        string         `yaml:"id"`
	AgentID   string         `yaml:"agent_id"`
	Type      models.AgentType `yaml:"type"`
	Model     string         `yaml:"model"`
	Status    models.Status  `yaml:"status"`
	CreatedAt time.Time      `yaml:"created_at"`
	UpdatedAt time.Time      `yaml:"updated_at"`
	Metadata  map[string]any `yaml:"metadata,omitempty"`
}

// messageHeading matches "## <role> <RFC3339 timestamp>" with an optional
// " tool_call_id=<id>" suffix used only for role=tool_result entries.
var messageHeading = regexp.MustCompile(`^## (\S+) (\S+)(?: tool_call_id=(\S+))?\s*$`)

// toolCallsBlock and resultBlock are fenced YAML blocks nested inside a
// message section body.
var toolCallsBlockRE = regexp.MustCompile("(?s)```tool_calls\n(.*?)\n```")
var resultBlockRE = regexp.MustCompile("(?s)```result\n(.*?)\n```")

// ParseSession decodes a sessions/<session_id>.session.md document.
func ParseSession(raw []byte) (*models.Session, error) {
	yamlBlock, body, err := splitFrontMatter(raw)
	if err != nil {
		return nil, err
	}

	var fm sessionFrontMatter
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fm.ID == "" {
		return nil, fmt.Errorf("%w: session missing id", ErrMalformed)
	}

	log, err := parseLog(body)
	if err != nil {
		return nil, err
	}

	if err := validateToolCallPairing(log); err != nil {
		return nil, err
	}

	return &models.Session{
		ID:        fm.ID,
		AgentID:   fm.AgentID,
		Type:      fm.Type,
		Model:     fm.Model,
		Status:    fm.Status,
		CreatedAt: fm.CreatedAt,
		UpdatedAt: fm.UpdatedAt,
		Metadata:  fm.Metadata,
		Log:       log,
	}, nil
}

// validateToolCallPairing enforces the invariant from spec §3: every
// tool_result carries a tool_call_id that appears in an earlier assistant
// message's tool_calls in the same session.
func validateToolCallPairing(log []models.Message) error {
	seen := map[string]bool{}
	for _, m := range log {
		if m.Role == models.RoleAssistant {
			for _, tc := range m.ToolCalls {
				seen[tc.ID] = true
			}
		}
		if m.Role == models.RoleToolResult {
			if m.ToolCallID == "" || !seen[m.ToolCallID] {
				return fmt.Errorf("%w: tool_result references unknown tool_call_id %q", ErrBrokenLog, m.ToolCallID)
			}
		}
	}
	return nil
}

func parseLog(body string) ([]models.Message, error) {
	body = strings.TrimRight(body, "\n")
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	lines := strings.Split(body, "\n")
	var log []models.Message
	var cur *models.Message
	var curBody strings.Builder

	flush := func() error {
		if cur == nil {
			return nil
		}
		if err := fillMessageBody(cur, curBody.String()); err != nil {
			return err
		}
		log = append(log, *cur)
		cur = nil
		curBody.Reset()
		return nil
	}

	for _, line := range lines {
		if m := messageHeading.FindStringSubmatch(line); m != nil {
			if err := flush(); err != nil {
				return nil, err
			}
			ts, err := time.Parse(time.RFC3339Nano, m[2])
			if err != nil {
				return nil, fmt.Errorf("%w: bad timestamp %q: %v", ErrMalformed, m[2], err)
			}
			cur = &models.Message{
				Timestamp:  ts,
				Role:       models.Role(m[1]),
				ToolCallID: m[3],
			}
			continue
		}
		curBody.WriteString(line)
		curBody.WriteString("\n")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return log, nil
}

func fillMessageBody(m *models.Message, raw string) error {
	text := raw

	if tm := toolCallsBlockRE.FindStringSubmatch(text); tm != nil {
		var calls []models.ToolCall
		if err := yaml.Unmarshal([]byte(tm[1]), &calls); err != nil {
			return fmt.Errorf("%w: tool_calls block: %v", ErrMalformed, err)
		}
		m.ToolCalls = calls
		text = strings.Replace(text, tm[0], "", 1)
	}

	if rm := resultBlockRE.FindStringSubmatch(text); rm != nil {
		var result models.ToolResultPayload
		if err := yaml.Unmarshal([]byte(rm[1]), &result); err != nil {
			return fmt.Errorf("%w: result block: %v", ErrMalformed, err)
		}
		m.Result = &result
		text = strings.Replace(text, rm[0], "", 1)
	}

	m.Content = strings.TrimSpace(text)
	return nil
}

// RenderSession serializes a session back to its markdown form.
func RenderSession(s *models.Session) ([]byte, error) {
	fm := sessionFrontMatter{
		ID:        s.ID,
		AgentID:   s.AgentID,
		Type:      s.Type,
		Model:     s.Model,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Metadata:  s.Metadata,
	}

	var body strings.Builder
	for _, m := range s.Log {
		if err := renderMessage(&body, m); err != nil {
			return nil, err
		}
	}
	return renderFrontMatter(fm, body.String())
}

func renderMessage(w *strings.Builder, m models.Message) error {
	fmt.Fprintf(w, "## %s %s", m.Role, m.Timestamp.UTC().Format(time.RFC3339Nano))
	if m.Role == models.RoleToolResult && m.ToolCallID != "" {
		fmt.Fprintf(w, " tool_call_id=%s", m.ToolCallID)
	}
	w.WriteString("\n")

	if m.Content != "" {
		w.WriteString(m.Content)
		w.WriteString("\n")
	}

	if len(m.ToolCalls) > 0 {
		b, err := yaml.Marshal(m.ToolCalls)
		if err != nil {
			return fmt.Errorf("convstore: marshal tool_calls: %w", err)
		}
		w.WriteString("```tool_calls\n")
		w.Write(b)
		w.WriteString("```\n")
	}

	if m.Result != nil {
		b, err := yaml.Marshal(m.Result)
		if err != nil {
			return fmt.Errorf("convstore: marshal result: %w", err)
		}
		w.WriteString("```result\n")
		w.Write(b)
		w.WriteString("```\n")
	}

	w.WriteString("\n")
	return nil
}
