package toolregistry

import (
	"context"

	"github.com/nexusorch/nexusd/internal/taskcli"
	"github.com/nexusorch/nexusd/pkg/models"
)

var queryTasksSchemaDoc = map[string]any{
	"type":                 "object",
	"properties":           map[string]any{"query": map[string]any{"type": "string"}},
	"required":             []any{"query"},
	"additionalProperties": false,
}
var queryTasksSchema = compileSchema("query_tasks", queryTasksSchemaDoc)

var createTaskSchemaDoc = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":        map[string]any{"type": "string"},
		"priority":     map[string]any{"type": "string"},
		"stakeholders": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"tags":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"prompt":       map[string]any{"type": "string"},
	},
	"required":             []any{"title", "priority", "stakeholders"},
	"additionalProperties": false,
}
var createTaskSchema = compileSchema("create_task", createTaskSchemaDoc)

var updateTaskSchemaDoc = map[string]any{
	"type":                 "object",
	"properties":           map[string]any{"query": map[string]any{"type": "string"}},
	"required":             []any{"query"},
	"additionalProperties": false,
}
var updateTaskSchema = compileSchema("update_task", updateTaskSchemaDoc)

func stringSlice(args map[string]any, key string) []string {
	v, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v))
	for _, e := range v {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// QueryTasksTool is a safe read against the external task store.
func QueryTasksTool(client *taskcli.Client) Tool {
	return Tool{
		Name:        "query_tasks",
		Description: "Query the task store for matching work items.",
		Parameters:  queryTasksSchemaDoc,
		Schema:      queryTasksSchema,
		RequiresApproval: func(map[string]any) (bool, models.RiskLevel, string) {
			return false, "", ""
		},
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			query, err := argString(args, "query")
			if err != nil {
				return nil, err
			}
			out, err := client.Query(ctx, query)
			if err != nil {
				return nil, err
			}
			return map[string]any{"output": out}, nil
		},
	}
}

// CreateTaskTool creates a work item but never acts on it, so it stays safe
// (spec §4.3).
func CreateTaskTool(client *taskcli.Client) Tool {
	return Tool{
		Name:        "create_task",
		Description: "Create a new task in the task store.",
		Parameters:  createTaskSchemaDoc,
		Schema:      createTaskSchema,
		RequiresApproval: func(map[string]any) (bool, models.RiskLevel, string) {
			return false, "", ""
		},
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			title, err := argString(args, "title")
			if err != nil {
				return nil, err
			}
			priority, err := argString(args, "priority")
			if err != nil {
				return nil, err
			}
			stakeholders := stringSlice(args, "stakeholders")
			tags := stringSlice(args, "tags")
			prompt, _ := argString(args, "prompt")

			out, err := client.Create(ctx, title, priority, stakeholders, tags, prompt)
			if err != nil {
				return nil, err
			}
			return map[string]any{"output": out}, nil
		},
	}
}

// UpdateTaskTool mutates an existing work item's fields through the
// black-box CLI, but never the underlying resource the task describes —
// that's what keeps it safe.
func UpdateTaskTool(client *taskcli.Client) Tool {
	return Tool{
		Name:        "update_task",
		Description: "Update fields on an existing task.",
		Parameters:  updateTaskSchemaDoc,
		Schema:      updateTaskSchema,
		RequiresApproval: func(map[string]any) (bool, models.RiskLevel, string) {
			return false, "", ""
		},
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			query, err := argString(args, "query")
			if err != nil {
				return nil, err
			}
			out, err := client.Update(ctx, query)
			if err != nil {
				return nil, err
			}
			return map[string]any{"output": out}, nil
		},
	}
}
