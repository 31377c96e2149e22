package toolregistry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nexusorch/nexusd/internal/ledger"
	"github.com/nexusorch/nexusd/pkg/models"
)

var readFileSchemaDoc = map[string]any{
	"type":                 "object",
	"properties":           map[string]any{"path": map[string]any{"type": "string"}},
	"required":             []any{"path"},
	"additionalProperties": false,
}
var readFileSchema = compileSchema("read_file", readFileSchemaDoc)

var writeFileSchemaDoc = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"path":    map[string]any{"type": "string"},
		"content": map[string]any{"type": "string"},
	},
	"required":             []any{"path", "content"},
	"additionalProperties": false,
}
var writeFileSchema = compileSchema("write_file", writeFileSchemaDoc)

var listDirectorySchemaDoc = map[string]any{
	"type":                 "object",
	"properties":           map[string]any{"path": map[string]any{"type": "string"}},
	"required":             []any{"path"},
	"additionalProperties": false,
}
var listDirectorySchema = compileSchema("list_directory", listDirectorySchemaDoc)

var createDirectorySchemaDoc = map[string]any{
	"type":                 "object",
	"properties":           map[string]any{"path": map[string]any{"type": "string"}},
	"required":             []any{"path"},
	"additionalProperties": false,
}
var createDirectorySchema = compileSchema("create_directory", createDirectorySchemaDoc)

func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("toolregistry: missing %q argument", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("toolregistry: %q argument must be a string", key)
	}
	return s, nil
}

// ReadFileTool normalizes CRLF to LF on read (spec §4.3) so downstream
// rendering in a session log never embeds mixed line endings.
func ReadFileTool() Tool {
	return Tool{
		Name:        "read_file",
		Description: "Read the contents of a file, normalizing line endings.",
		Parameters:  readFileSchemaDoc,
		Schema:      readFileSchema,
		RequiresApproval: func(map[string]any) (bool, models.RiskLevel, string) {
			return false, "", ""
		},
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			path, err := argString(args, "path")
			if err != nil {
				return nil, err
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read_file: %w", err)
			}
			content := strings.ReplaceAll(string(raw), "\r\n", "\n")
			return map[string]any{"content": content}, nil
		},
	}
}

// WriteFileTool is gated: every write is a file mutation, risk-classified
// by path (spec §4.2's critical-prefix rules).
func WriteFileTool() Tool {
	return Tool{
		Name:        "write_file",
		Description: "Write content to a file, creating or overwriting it.",
		Parameters:  writeFileSchemaDoc,
		Schema:      writeFileSchema,
		RequiresApproval: func(args map[string]any) (bool, models.RiskLevel, string) {
			path, _ := argString(args, "path")
			risk := ledger.ClassifyFileWrite(path)
			return true, risk, fmt.Sprintf("Write to %s", path)
		},
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			path, err := argString(args, "path")
			if err != nil {
				return nil, err
			}
			content, err := argString(args, "content")
			if err != nil {
				return nil, err
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("write_file: %w", err)
				}
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return nil, fmt.Errorf("write_file: %w", err)
			}
			return map[string]any{"bytes_written": len(content)}, nil
		},
	}
}

// ListDirectoryTool is a safe read.
func ListDirectoryTool() Tool {
	return Tool{
		Name:        "list_directory",
		Description: "List entries in a directory.",
		Parameters:  listDirectorySchemaDoc,
		Schema:      listDirectorySchema,
		RequiresApproval: func(map[string]any) (bool, models.RiskLevel, string) {
			return false, "", ""
		},
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			path, err := argString(args, "path")
			if err != nil {
				return nil, err
			}
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, fmt.Errorf("list_directory: %w", err)
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			return map[string]any{"entries": names}, nil
		},
	}
}

// CreateDirectoryTool is safe: it only makes empty directories, never
// overwrites existing content.
func CreateDirectoryTool() Tool {
	return Tool{
		Name:        "create_directory",
		Description: "Create a directory, including parents.",
		Parameters:  createDirectorySchemaDoc,
		Schema:      createDirectorySchema,
		RequiresApproval: func(map[string]any) (bool, models.RiskLevel, string) {
			return false, "", ""
		},
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			path, err := argString(args, "path")
			if err != nil {
				return nil, err
			}
			if err := os.MkdirAll(path, 0o755); err != nil {
				return nil, fmt.Errorf("create_directory: %w", err)
			}
			return map[string]any{"created": path}, nil
		},
	}
}
