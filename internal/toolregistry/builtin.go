package toolregistry

import (
	"regexp"

	"github.com/slack-go/slack"

	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/internal/taskcli"
)

// Deps bundles every external collaborator the built-in tool set needs.
// Slack and TaskCLI may be nil: tools backed by an unconfigured
// collaborator are simply left unregistered, and a template referencing
// them fails Resolve with a clear "unknown tool" error rather than
// panicking deep inside a tool call.
type Deps struct {
	Store           *convstore.Store
	TaskCLI         *taskcli.Client
	Slack           *slack.Client
	SlackChannel    string
	ShellAllowlist  []*regexp.Regexp
}

// Builtin constructs a Registry with every tool named in spec §4.3 wired to
// its executor, omitting any whose collaborator in Deps is nil.
func Builtin(deps Deps) *Registry {
	r := New()
	r.Register(ReadFileTool())
	r.Register(WriteFileTool())
	r.Register(ListDirectoryTool())
	r.Register(CreateDirectoryTool())
	r.Register(ExecuteCommandTool(deps.ShellAllowlist))
	r.Register(SendMessageTool())

	if deps.TaskCLI != nil {
		r.Register(QueryTasksTool(deps.TaskCLI))
		r.Register(CreateTaskTool(deps.TaskCLI))
		r.Register(UpdateTaskTool(deps.TaskCLI))
	}
	if deps.Slack != nil {
		r.Register(SlackSendTool(deps.Slack))
		r.Register(SlackReadTool(deps.Slack, deps.SlackChannel))
	}
	if deps.Store != nil {
		r.Register(ListActiveSessionsTool(deps.Store))
		r.Register(ReadSessionTool(deps.Store))
		r.Register(EditSessionTool(deps.Store))
	}
	return r
}
