package ledger

import (
	"regexp"
	"strings"

	"github.com/nexusorch/nexusd/pkg/models"
)

// Risk classification patterns, grounded on the teacher's pattern-matching
// style in internal/tools/policy/approval.go's matchesPattern, specialized
// to the fixed rule table spec §4.2 defines rather than a configurable
// allow/deny list.
var (
	highShellPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\brm\s+-rf\b`),
		regexp.MustCompile(`\bsudo\b`),
		regexp.MustCompile(`\bchmod\b`),
		regexp.MustCompile(`\bchown\b`),
		regexp.MustCompile(`\b(shutdown|reboot|halt)\b`),
		regexp.MustCompile(`\bdd\s+if=`),
		regexp.MustCompile(`\bkillall\b`),
		regexp.MustCompile(`\bpkill\b`),
	}
	mediumShellPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(apt|apt-get|yum|dnf|brew|pip|npm|pip3)\s+install\b`),
		regexp.MustCompile(`\bgit\s+push\s+(--force|-f)\b`),
		regexp.MustCompile(`\bgit\s+reset\s+--hard\b`),
		regexp.MustCompile(`\b(docker|kubectl|docker-compose)\b`),
		regexp.MustCompile(`\bsystemctl\b`),
		regexp.MustCompile(`\bservice\s+\S+\s+(start|stop|restart)\b`),
	}
	criticalPathSubstrings = []string{
		"/etc/", "/boot/", ".env", "secret", "password", ".ssh/", ".aws/", ".gnupg/",
	}
)

// ClassifyShell applies spec §4.2's shell-command risk rules.
func ClassifyShell(command string) models.RiskLevel {
	for _, p := range highShellPatterns {
		if p.MatchString(command) {
			return models.RiskHigh
		}
	}
	for _, p := range mediumShellPatterns {
		if p.MatchString(command) {
			return models.RiskMedium
		}
	}
	return models.RiskLow
}

// ClassifyFileWrite applies spec §4.2's file-write risk rules.
func ClassifyFileWrite(path string) models.RiskLevel {
	lower := strings.ToLower(path)
	for _, s := range criticalPathSubstrings {
		if strings.Contains(lower, s) {
			return models.RiskHigh
		}
	}
	return models.RiskMedium
}

// ClassifyOutboundMessage is always MEDIUM per spec §4.2.
func ClassifyOutboundMessage() models.RiskLevel {
	return models.RiskMedium
}

// ClassifyDefault is the fallback for anything not covered above.
func ClassifyDefault() models.RiskLevel {
	return models.RiskLow
}
