package toolregistry

import (
	"context"
	"fmt"
	"regexp"

	execpkg "github.com/nexusorch/nexusd/internal/exec"
	"github.com/nexusorch/nexusd/internal/ledger"
	"github.com/nexusorch/nexusd/pkg/models"
)

var executeCommandSchemaDoc = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"command": map[string]any{"type": "string"},
		"cwd":     map[string]any{"type": "string"},
	},
	"required":             []any{"command"},
	"additionalProperties": false,
}
var executeCommandSchema = compileSchema("execute_command", executeCommandSchemaDoc)

// ExecuteCommandTool consults the shell allowlist persisted under
// configuration (spec §4.3): a command matching one of the allowlist
// patterns runs immediately; everything else is gated at the risk level
// ClassifyShell assigns.
func ExecuteCommandTool(allowlist []*regexp.Regexp) Tool {
	matchesAllowlist := func(command string) bool {
		for _, p := range allowlist {
			if p.MatchString(command) {
				return true
			}
		}
		return false
	}

	return Tool{
		Name:        "execute_command",
		Description: "Run a shell command as a single process and capture its output.",
		Parameters:  executeCommandSchemaDoc,
		Schema:      executeCommandSchema,
		RequiresApproval: func(args map[string]any) (bool, models.RiskLevel, string) {
			command, _ := argString(args, "command")
			if matchesAllowlist(command) {
				return false, "", ""
			}
			return true, ledger.ClassifyShell(command), fmt.Sprintf("Run '%s'", command)
		},
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			command, err := argString(args, "command")
			if err != nil {
				return nil, err
			}
			cwd, _ := argString(args, "cwd")

			res, err := execpkg.Run(ctx, command, cwd)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"exit_code": res.ExitCode,
				"stdout":    res.Stdout,
				"stderr":    res.Stderr,
				"timed_out": res.TimedOut,
			}, nil
		},
	}
}
