package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchemaDoc mirrors Config's shape loosely: it only asserts the
// fields Validate can't express as a Go zero-value check (types, enums),
// leaving fine-grained requiredness to Validate itself. Grounded on the
// same schema-as-map-literal style internal/toolregistry uses for tool
// parameter schemas (internal/toolregistry/tool.go's compileSchema).
var configSchemaDoc = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"paths": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"templates": map[string]any{"type": "string"},
				"sessions":  map[string]any{"type": "string"},
				"tasks":     map[string]any{"type": "string"},
				"storage":   map[string]any{"type": "string"},
			},
		},
		"model": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"provider":    map[string]any{"type": "string", "enum": []any{"anthropic", "openai"}},
				"api_key_env": map[string]any{"type": "string"},
				"default":     map[string]any{"type": "string"},
			},
		},
		"checkin": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"interval_seconds": map[string]any{"type": "integer", "minimum": 1},
				"planner_agent_id": map[string]any{"type": "string"},
			},
		},
		"watch": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"debounce_millis": map[string]any{"type": "integer", "minimum": 0},
				"tick_seconds":    map[string]any{"type": "integer", "minimum": 0},
			},
		},
		"shell": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"allowlist_file": map[string]any{"type": "string"},
			},
		},
		"tasks": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"binary": map[string]any{"type": "string"},
				"args":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
		},
		"slack": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"token_env":       map[string]any{"type": "string"},
				"default_channel": map[string]any{"type": "string"},
			},
		},
		"logging": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"level":  map[string]any{"type": "string"},
				"pretty": map[string]any{"type": "boolean"},
			},
		},
	},
	"additionalProperties": false,
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := json.Marshal(configSchemaDoc)
		if err != nil {
			schemaErr = fmt.Errorf("config: marshal schema: %w", err)
			return
		}
		schema, schemaErr = jsonschema.CompileString("nexusd-config.schema.json", string(raw))
	})
	return schema, schemaErr
}

// validateSchema checks doc (as decoded by yaml.v3) against the config
// schema. yaml.v3 produces native int/int64 values where encoding/json
// would produce float64, so the document is round-tripped through JSON
// first to normalize it into the shape jsonschema expects — the same
// technique internal/toolregistry.Tool.Validate uses for tool arguments.
func validateSchema(doc map[string]any) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config: marshal document: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("config: unmarshal document: %w", err)
	}
	return s.Validate(v)
}
