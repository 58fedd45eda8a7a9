// Package logging builds the zerolog logger shared by the server and the CLI.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options select where and how log lines are written.
type Options struct {
	// Level is a zerolog level name; unknown names mean info.
	Level string
	// Format is "json" (default) or "console".
	Format string
	Writer io.Writer
}

// New returns a timestamped logger.
func New(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Nop discards everything; tests use it.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
