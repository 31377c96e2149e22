package convstore

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nexusorch/nexusd/pkg/models"
)

// templateFrontMatter mirrors models.AgentTemplate's on-disk fields. Kept
// separate from models.AgentTemplate so the YAML shape can evolve
// independently of the in-memory type (grounded on the teacher's
// internal/templates front-matter split between parsed struct and storage
// representation).
type templateFrontMatter struct {
	AgentID    string               `yaml:"agent_id"`
	Type       models.AgentType     `yaml:"type"`
	Model      string               `yaml:"model"`
	Tools      []string             `yaml:"tools"`
	ToolChoice models.ToolChoiceMode `yaml:"tool_choice,omitempty"`
	Metadata   map[string]any       `yaml:"metadata,omitempty"`
}

// ParseTemplate decodes a templates/<agent_id>.agent.md document.
func ParseTemplate(raw []byte) (*models.AgentTemplate, error) {
	yamlBlock, body, err := splitFrontMatter(raw)
	if err != nil {
		return nil, err
	}

	var fm templateFrontMatter
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fm.AgentID == "" {
		return nil, fmt.Errorf("%w: template missing agent_id", ErrMalformed)
	}

	return &models.AgentTemplate{
		AgentID:      fm.AgentID,
		Type:         fm.Type,
		Model:        fm.Model,
		SystemPrompt: strings.TrimRight(body, "\n"),
		Tools:        fm.Tools,
		ToolChoice:   fm.ToolChoice,
		Metadata:     fm.Metadata,
	}, nil
}

// RenderTemplate serializes a template back to its markdown form. Used by
// the `edit_session`-adjacent tooling and by tests that author fixtures.
func RenderTemplate(t *models.AgentTemplate) ([]byte, error) {
	fm := templateFrontMatter{
		AgentID:    t.AgentID,
		Type:       t.Type,
		Model:      t.Model,
		Tools:      t.Tools,
		ToolChoice: t.ToolChoice,
		Metadata:   t.Metadata,
	}
	return renderFrontMatter(fm, t.SystemPrompt)
}
