// Package logging bootstraps structured logging (A2): console-pretty
// output to a TTY, JSON otherwise, UTC timestamps, one derived logger
// per subsystem. Grounded on the teacher's cmd/cprotocol/main.go
// zerolog bootstrap (zerolog.TimeFieldFormat + ConsoleWriter), extended
// with a JSON-vs-pretty switch and per-component .With() loggers.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Options configures the root logger.
type Options struct {
	Level  string // "debug", "info", "warn", "error"
	Pretty bool   // force console-pretty output even off a TTY
	Output io.Writer
}

// New builds the engine's root logger. UTC timestamps (RFC3339 in JSON,
// short clock time in pretty mode); console-pretty when attached to a
// terminal or explicitly requested, compact
// JSON otherwise (the shape a log aggregator expects in production).
func New(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	pretty := opts.Pretty
	if f, ok := out.(*os.File); ok && !pretty {
		pretty = isatty.IsTerminal(f.Fd())
	}
	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the given subsystem
// name, the idiom used throughout this engine ("scheduler",
// "marketdata", "repository", ...).
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
