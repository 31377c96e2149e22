// Package logging builds nexusd's process-wide zerolog.Logger. The teacher
// carries github.com/rs/zerolog only as an indirect dependency and logs
// through log/slog itself; nexusd exercises zerolog directly instead of
// hand-rolling a slog wrapper, since the package is already part of the
// module's dependency graph and every other nexusd package (dispatcher,
// advancer, orchestrator) already takes a zerolog.Logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a logger per config.LoggingConfig: level parsed from a name
// ("debug", "info", "warn", "error"; unknown or empty defaults to "info"),
// and pretty printing via zerolog.ConsoleWriter when requested, otherwise
// newline-delimited JSON to w.
func New(w io.Writer, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = w
	if pretty {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Default builds a logger writing to os.Stderr, the convention every
// nexusd command uses unless testing with zerolog.Nop().
func Default(level string, pretty bool) zerolog.Logger {
	return New(os.Stderr, level, pretty)
}
