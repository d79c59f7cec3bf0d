// Package logging builds the zerolog logger shared by all components.
//
// Output goes to stderr so stdout stays free for structured result
// streams. Components receive child loggers through their constructors;
// the zero zerolog.Logger is a usable no-op, which keeps tests quiet.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the root logger.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Empty means info.
	Level string
	// Format selects "console" (human-readable) or "json". Empty means console.
	Format string
	// Writer receives all log output. Nil means os.Stderr.
	Writer io.Writer
}

// Logger is the project-wide logging type.
type Logger = zerolog.Logger

// New builds the root logger from opts.
func New(opt Options) Logger {
	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	if normalizeFormat(opt.Format) == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp().Logger()
}

// Named returns a child of log tagged with a component field.
func Named(log Logger, component string) Logger {
	if component == "" {
		return log
	}
	return log.With().Str("component", component).Logger()
}

func normalizeFormat(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return "json"
	}
	return "console"
}

// parseLevel supports string-only levels; unknown strings fall back to info.
func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "", "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
