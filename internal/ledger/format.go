// Package ledger persists approval requests and discovers human decisions
// in tasks/approvals.task.md, a GitHub-flavored-markdown task list (spec
// §4.2, §6). It never interprets or executes the gated action itself.
package ledger

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nexusorch/nexusd/pkg/models"
)

// entryLine matches one ledger row:
//
//	- [ ] id=apr_1 tool_call_id=call_1 type=execute_command session=exec-001 risk=MEDIUM created=2026-07-30T10:00:00Z — Run 'docker ps'
//
// The marker cell ("[ ]", "[x]", "[!]") is the only part a human is expected
// to hand-edit; everything else is a machine field. args= carries the tool
// argument object as base64-encoded compact JSON so round-tripping never
// loses structure — argument values routinely contain spaces (a shell
// command, a file path with a space in it), and a single \S+ capture would
// otherwise stop at the first one, dropping the rest of the line from the
// match entirely. This mirrors the teacher's preference for compact inline
// metadata over a second file, adapted to survive whitespace in the payload.
var entryLine = regexp.MustCompile(`^- \[([ x!])\] id=(\S+) tool_call_id=(\S+) type=(\S+) session=(\S+) risk=(\S+) created=(\S+)(?: args=(\S+))?(?: closed=(\S+))? — (.*)$`)

func markerFor(status models.ApprovalStatus) string {
	switch status {
	case models.ApprovalApproved:
		return "x"
	case models.ApprovalRejected:
		return "!"
	default:
		return " "
	}
}

func statusForMarker(marker string) models.ApprovalStatus {
	switch marker {
	case "x":
		return models.ApprovalApproved
	case "!":
		return models.ApprovalRejected
	default:
		return models.ApprovalPending
	}
}

// parseLedger decodes the full ledger file. The parser accepts trailing
// human-added notes on indented continuation lines without losing the
// machine fields on the entry line above them (spec §6).
func parseLedger(raw []byte) ([]models.ApprovalEntry, error) {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var entries []models.ApprovalEntry
	var cur *models.ApprovalEntry
	var notes strings.Builder

	flush := func() {
		if cur == nil {
			return
		}
		cur.Notes = strings.TrimRight(notes.String(), "\n")
		entries = append(entries, *cur)
		cur = nil
		notes.Reset()
	}

	for _, line := range lines {
		if m := entryLine.FindStringSubmatch(line); m != nil {
			flush()
			e := models.ApprovalEntry{
				ID:          m[2],
				ToolCallID:  m[3],
				ToolName:    m[4],
				SessionID:   m[5],
				Risk:        models.RiskLevel(m[6]),
				Description: m[10],
				Status:      statusForMarker(m[1]),
			}
			if ts, err := time.Parse(time.RFC3339Nano, m[7]); err == nil {
				e.CreatedAt = ts
			}
			if m[8] != "" {
				if raw, err := base64.StdEncoding.DecodeString(m[8]); err == nil {
					var args map[string]any
					if err := json.Unmarshal(raw, &args); err == nil {
						e.Args = args
					}
				}
			}
			e.Closed = m[9] == "true"
			cur = &e
			continue
		}
		if cur != nil && strings.HasPrefix(line, "  ") {
			notes.WriteString(strings.TrimPrefix(line, "  "))
			notes.WriteString("\n")
		}
	}
	flush()
	return entries, nil
}

func renderLedger(entries []models.ApprovalEntry) []byte {
	var sb strings.Builder
	sb.WriteString("# Approvals\n\n")
	for _, e := range entries {
		argsJSON := base64.StdEncoding.EncodeToString([]byte("{}"))
		if len(e.Args) > 0 {
			if b, err := json.Marshal(e.Args); err == nil {
				argsJSON = base64.StdEncoding.EncodeToString(b)
			}
		}
		closed := ""
		if e.Closed {
			closed = " closed=true"
		}
		fmt.Fprintf(&sb, "- [%s] id=%s tool_call_id=%s type=%s session=%s risk=%s created=%s args=%s%s — %s\n",
			markerFor(e.Status), e.ID, e.ToolCallID, e.ToolName, e.SessionID, e.Risk,
			e.CreatedAt.UTC().Format(time.RFC3339Nano), argsJSON, closed, e.Description)
		if e.Notes != "" {
			for _, line := range strings.Split(e.Notes, "\n") {
				sb.WriteString("  ")
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
	}
	return []byte(sb.String())
}
