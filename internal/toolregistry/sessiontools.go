package toolregistry

import (
	"context"
	"fmt"

	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/pkg/models"
)

var listActiveSessionsSchemaDoc = map[string]any{
	"type":                 "object",
	"properties":           map[string]any{},
	"additionalProperties": false,
}
var listActiveSessionsSchema = compileSchema("list_active_sessions", listActiveSessionsSchemaDoc)

var readSessionSchemaDoc = map[string]any{
	"type":                 "object",
	"properties":           map[string]any{"session_file": map[string]any{"type": "string"}},
	"required":             []any{"session_file"},
	"additionalProperties": false,
}
var readSessionSchema = compileSchema("read_session", readSessionSchemaDoc)

var editSessionSchemaDoc = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"session_file": map[string]any{"type": "string"},
		"new_content":  map[string]any{"type": "string"},
	},
	"required":             []any{"session_file", "new_content"},
	"additionalProperties": false,
}
var editSessionSchema = compileSchema("edit_session", editSessionSchemaDoc)

// ListActiveSessionsTool is planner-only introspection: a safe read over
// session ids and their status (spec §4.3).
func ListActiveSessionsTool(store *convstore.Store) Tool {
	return Tool{
		Name:        "list_active_sessions",
		Description: "List every session id currently on disk with its status.",
		Parameters:  listActiveSessionsSchemaDoc,
		Schema:      listActiveSessionsSchema,
		RequiresApproval: func(map[string]any) (bool, models.RiskLevel, string) {
			return false, "", ""
		},
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			ids, err := store.ListSessionIDs()
			if err != nil {
				return nil, err
			}
			sessions := make([]map[string]any, 0, len(ids))
			for _, id := range ids {
				sess, err := store.ReadSession(id)
				if err != nil {
					sessions = append(sessions, map[string]any{"id": id, "error": err.Error()})
					continue
				}
				sessions = append(sessions, map[string]any{"id": id, "status": string(sess.Status)})
			}
			return map[string]any{"sessions": sessions}, nil
		},
	}
}

// ReadSessionTool surfaces a session file's raw text verbatim.
func ReadSessionTool(store *convstore.Store) Tool {
	return Tool{
		Name:        "read_session",
		Description: "Read a session transcript file's raw contents.",
		Parameters:  readSessionSchemaDoc,
		Schema:      readSessionSchema,
		RequiresApproval: func(map[string]any) (bool, models.RiskLevel, string) {
			return false, "", ""
		},
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			sessionID, err := argString(args, "session_file")
			if err != nil {
				return nil, err
			}
			raw, err := store.ReadRawSession(sessionID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"content": string(raw)}, nil
		},
	}
}

// EditSessionTool overwrites a session file directly. Gated at HIGH risk:
// it bypasses the append-only Message API, so a bad edit can corrupt a
// conversation's history outright.
func EditSessionTool(store *convstore.Store) Tool {
	return Tool{
		Name:        "edit_session",
		Description: "Overwrite a session transcript file's raw contents.",
		Parameters:  editSessionSchemaDoc,
		Schema:      editSessionSchema,
		RequiresApproval: func(args map[string]any) (bool, models.RiskLevel, string) {
			sessionID, _ := argString(args, "session_file")
			return true, models.RiskHigh, fmt.Sprintf("Overwrite session file %s", sessionID)
		},
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			sessionID, err := argString(args, "session_file")
			if err != nil {
				return nil, err
			}
			content, err := argString(args, "new_content")
			if err != nil {
				return nil, err
			}
			if err := store.WriteRawSession(sessionID, content); err != nil {
				return nil, err
			}
			return map[string]any{"written": true}, nil
		},
	}
}
