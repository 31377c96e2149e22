// Package taskcli wraps an external todo query/update CLI as a black-box
// task store (spec §1 Out of scope (c)). This package never interprets the
// CLI's output beyond capturing stdout as text — the task-CLI's behavior,
// schema, and persistence are entirely its own concern.
package taskcli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Client shells out to a configured task-CLI binary for query/create/update
// operations. Binary and base args are configured once at start-up.
type Client struct {
	Binary string
	Args   []string
}

// New returns a Client that invokes binary with the given fixed leading
// arguments on every call (e.g. a config file flag).
func New(binary string, baseArgs ...string) *Client {
	return &Client{Binary: binary, Args: baseArgs}
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	full := append(append([]string{}, c.Args...), args...)
	cmd := exec.CommandContext(ctx, c.Binary, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("taskcli: %s %v: %w: %s", c.Binary, full, err, stderr.String())
	}
	return stdout.String(), nil
}

// Query runs the task store's query sub-command with a free-form query
// string (spec §4.3 query_tasks) and returns its raw stdout.
func (c *Client) Query(ctx context.Context, query string) (string, error) {
	return c.run(ctx, "query", query)
}

// Create asks the task store to create a new work item. It only records
// the item; it never acts on it (spec §4.3 create_task).
func (c *Client) Create(ctx context.Context, title, priority string, stakeholders, tags []string, prompt string) (string, error) {
	args := []string{"create", "--title", title}
	if priority != "" {
		args = append(args, "--priority", priority)
	}
	for _, s := range stakeholders {
		args = append(args, "--stakeholder", s)
	}
	for _, t := range tags {
		args = append(args, "--tag", t)
	}
	if prompt != "" {
		args = append(args, "--prompt", prompt)
	}
	return c.run(ctx, args...)
}

// Update runs the task store's update sub-command with a free-form query
// string describing the mutation (spec §4.3 update_task).
func (c *Client) Update(ctx context.Context, query string) (string, error) {
	return c.run(ctx, "update", query)
}
