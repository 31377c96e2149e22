package toolregistry

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadFileNormalizesLineEndings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memo.txt")
	require.NoError(t, os.WriteFile(path, []byte("line1\r\nline2\r\n"), 0o644))

	r := New()
	r.Register(ReadFileTool())

	out, err := r.Invoke(context.Background(), "read_file", map[string]any{"path": path})
	require.NoError(t, err)
	require.Equal(t, "line1\nline2\n", out["content"])
}

func TestWriteFileRequiresApprovalAndClassifiesRisk(t *testing.T) {
	tool := WriteFileTool()
	required, risk, _ := tool.RequiresApproval(map[string]any{"path": "/etc/passwd"})
	require.True(t, required)
	require.Equal(t, "HIGH", string(risk))

	required, risk, _ = tool.RequiresApproval(map[string]any{"path": "notes.txt"})
	require.True(t, required)
	require.Equal(t, "MEDIUM", string(risk))
}

func TestExecuteCommandAllowlistBypassesGate(t *testing.T) {
	tool := ExecuteCommandTool([]*regexp.Regexp{regexp.MustCompile(`^docker ps`)})
	required, _, _ := tool.RequiresApproval(map[string]any{"command": "docker ps -a"})
	require.False(t, required)

	required, risk, _ := tool.RequiresApproval(map[string]any{"command": "rm -rf /tmp/x"})
	require.True(t, required)
	require.Equal(t, "HIGH", string(risk))
}

func TestInvokeUnknownToolErrors(t *testing.T) {
	r := New()
	_, err := r.Invoke(context.Background(), "does_not_exist", nil)
	require.Error(t, err)
}

func TestInvokeRejectsSchemaViolation(t *testing.T) {
	r := New()
	r.Register(ReadFileTool())
	_, err := r.Invoke(context.Background(), "read_file", map[string]any{})
	require.Error(t, err)
}

func TestResolveUnknownToolName(t *testing.T) {
	r := New()
	r.Register(ReadFileTool())
	_, err := r.Resolve([]string{"read_file", "nonexistent"})
	require.Error(t, err)
}
