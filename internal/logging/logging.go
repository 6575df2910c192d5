// Package logging wires up the process-wide structured logger. All
// components receive a child logger scoped with a "component" field instead
// of calling the global logger directly, mirroring cartographus's layered
// logging setup.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. levelName accepts zerolog's standard level
// names (debug/info/warn/error); an unrecognized value falls back to info.
// When pretty is true, output is human-readable console format (for local
// development); otherwise it is newline-delimited JSON suitable for log
// aggregation.
func New(levelName string, pretty bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Component returns a child logger tagged with the given component name,
// the pattern every package in this repo uses instead of reaching for a
// package-level logger var.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
