package models

// AgentType classifies the role a session's agent plays in the population.
type AgentType string

const (
	AgentPlanner   AgentType = "planner"
	AgentRetriever AgentType = "retriever"
	AgentExecutor  AgentType = "executor"
	AgentEvaluator AgentType = "evaluator"
	AgentSolo      AgentType = "solo"
)

// ToolChoiceMode overrides the Advancer's default tool_choice heuristic.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceHeuristic ToolChoiceMode = "" // empty = use §4.4 step 2 heuristic
)

// AgentTemplate is the immutable blueprint a Session is instantiated from.
// Templates are created externally and are read-only to the orchestrator.
type AgentTemplate struct {
	AgentID      string         `yaml:"agent_id"`
	Type         AgentType      `yaml:"type"`
	Model        string         `yaml:"model"`
	SystemPrompt string         `yaml:"-"` // markdown body, not front-matter
	Tools        []string       `yaml:"tools"`
	ToolChoice   ToolChoiceMode `yaml:"tool_choice,omitempty"`
	Metadata     map[string]any `yaml:"metadata,omitempty"`
}
