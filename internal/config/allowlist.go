package config

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// LoadShellAllowlist reads storage/terminal-cmd-allowlist.<ext> (spec §6
// Filesystem layout): one regular expression per line, blank lines and
// lines starting with "#" ignored. A missing file is not an error — it
// means no command is pre-approved, matching ExecuteCommandTool's "nil
// allowlist" behavior of gating everything.
func LoadShellAllowlist(path string) ([]*regexp.Regexp, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open shell allowlist %s: %w", path, err)
	}
	defer f.Close()

	var patterns []*regexp.Regexp
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		re, err := regexp.Compile(line)
		if err != nil {
			return nil, fmt.Errorf("config: compile allowlist pattern %q: %w", line, err)
		}
		patterns = append(patterns, re)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: scan shell allowlist %s: %w", path, err)
	}
	return patterns, nil
}
