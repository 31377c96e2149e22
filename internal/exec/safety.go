// Package exec runs the execute_command tool's shell commands as a single
// argv (no shell interpolation) and validates each token before spawning,
// adapted from the teacher's internal/exec safety checks.
package exec

import (
	"errors"
	"regexp"
	"strings"
)

var (
	shellMetachars = regexp.MustCompile("[;&|`$<>]")
	controlChars   = regexp.MustCompile(`[\r\n]`)
	quoteChars     = regexp.MustCompile(`["']`)
	bareNameRE     = regexp.MustCompile(`^[A-Za-z0-9._+-]+$`)
	winDriveRE     = regexp.MustCompile(`^[A-Za-z]:[\\/]`)
)

var (
	ErrEmptyExecutable  = errors.New("exec: executable is empty")
	ErrControlChar      = errors.New("exec: value contains control characters")
	ErrShellMetachar    = errors.New("exec: value contains shell metacharacters")
	ErrQuoteChar        = errors.New("exec: executable contains quote characters")
	ErrOptionInjection  = errors.New("exec: executable starts with '-'")
	ErrInvalidBareName  = errors.New("exec: executable has invalid characters")
	ErrEmptyArgument    = errors.New("exec: argument is empty")
)

func looksLikePath(value string) bool {
	if value == "" {
		return false
	}
	if strings.HasPrefix(value, ".") || strings.HasPrefix(value, "~") {
		return true
	}
	if strings.ContainsAny(value, "/\\") {
		return true
	}
	return winDriveRE.MatchString(value)
}

// sanitizeExecutable validates argv[0]: no control chars, no shell
// metacharacters or quotes, and bare names must match a safe charset so a
// flag can't be smuggled in as the executable itself.
func sanitizeExecutable(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", ErrEmptyExecutable
	}
	if controlChars.MatchString(trimmed) {
		return "", ErrControlChar
	}
	if shellMetachars.MatchString(trimmed) {
		return "", ErrShellMetachar
	}
	if quoteChars.MatchString(trimmed) {
		return "", ErrQuoteChar
	}
	if looksLikePath(trimmed) {
		return trimmed, nil
	}
	if strings.HasPrefix(trimmed, "-") {
		return "", ErrOptionInjection
	}
	if !bareNameRE.MatchString(trimmed) {
		return "", ErrInvalidBareName
	}
	return trimmed, nil
}

// sanitizeArgument is looser than sanitizeExecutable: arguments may start
// with '-' and may contain quotes, since those are ordinary in real
// command lines. Control characters and shell metacharacters are still
// rejected — argv is never re-interpreted by a shell, but a stray
// metacharacter in an arg almost always means the caller meant to build a
// pipeline, which this tool does not support.
func sanitizeArgument(arg string) (string, error) {
	if arg == "" {
		return "", ErrEmptyArgument
	}
	if controlChars.MatchString(arg) {
		return "", ErrControlChar
	}
	if shellMetachars.MatchString(arg) {
		return "", ErrShellMetachar
	}
	return arg, nil
}
