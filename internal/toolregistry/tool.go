// Package toolregistry holds the canonical tool set a session template can
// reference by name (spec §4.3). Each entry owns its own JSON-schema
// parameter validation and its own approval predicate — the registry is
// the only place that knows which tools are gated, generalizing the
// teacher's allow/deny pattern list into a per-tool decision (spec §9).
package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nexusorch/nexusd/pkg/models"
)

// Executor runs a tool call's effect and returns its structured result.
// Implementations never decide whether approval is required; that's
// RequiresApproval's job, evaluated by the dispatcher before Executor is
// ever invoked.
type Executor func(ctx context.Context, args map[string]any) (map[string]any, error)

// ApprovalPredicate decides whether a given invocation needs sign-off,
// and if so at what risk level and with what human-readable description.
type ApprovalPredicate func(args map[string]any) (required bool, risk models.RiskLevel, description string)

// Tool is one entry in the registry: a name, a JSON schema its arguments
// must validate against, an approval predicate, and an executor.
type Tool struct {
	Name             string
	Description      string
	Parameters       map[string]any // raw JSON Schema document, for handing to a completion provider
	Schema           *jsonschema.Schema
	RequiresApproval ApprovalPredicate
	Run              Executor
}

// Validate checks args against the tool's compiled schema.
func (t Tool) Validate(args map[string]any) error {
	if t.Schema == nil {
		return nil
	}
	// jsonschema validates against interface{} trees produced by
	// encoding/json; round-trip through JSON to normalize map[string]any
	// values (e.g. int vs float64) the same way a wire-decoded call would.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("toolregistry: marshal args for %s: %w", t.Name, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("toolregistry: unmarshal args for %s: %w", t.Name, err)
	}
	if err := t.Schema.Validate(v); err != nil {
		return fmt.Errorf("toolregistry: %s: %w", t.Name, err)
	}
	return nil
}

// compileSchema compiles an inline JSON schema document (as a Go literal
// map, marshaled to JSON first) into a *jsonschema.Schema. It panics on a
// malformed literal schema, since those are only ever written by us, not
// derived from user input — a bad schema is a programmer error caught at
// registry construction time, not a runtime condition to recover from.
func compileSchema(name string, doc map[string]any) *jsonschema.Schema {
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("toolregistry: marshal schema for %s: %v", name, err))
	}
	schema, err := jsonschema.CompileString(name+".schema.json", string(raw))
	if err != nil {
		panic(fmt.Sprintf("toolregistry: compile schema for %s: %v", name, err))
	}
	return schema
}
