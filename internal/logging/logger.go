// Package logging provides structured logging for forestkv.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with forestkv-specific child-logger helpers.
type Logger struct {
	zlog zerolog.Logger
}

// Config controls how a Logger is constructed.
type Config struct {
	Level      string // debug, info, warn, error; default info
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// New creates a Logger from Config. A zero-value Config is a sane quiet
// default (info level, JSON to stdout).
func New(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zlog := zerolog.New(output).Level(level).With().
		Timestamp().
		Str("service", "forestkv").
		Logger()
	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}
	return &Logger{zlog: zlog}
}

// Noop returns a Logger that discards everything, used when Options.Logger
// is left nil so callers never need a nil check.
func Noop() *Logger {
	return &Logger{zlog: zerolog.New(io.Discard)}
}

func (l *Logger) Info() *zerolog.Event  { return l.zlog.Info() }
func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }
func (l *Logger) Warn() *zerolog.Event  { return l.zlog.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// Component returns a child logger tagged with a component name, the way
// the retrieval pack's tree_db/internal/logger.go derives DbLogger/
// GrpcLogger child loggers from the same zerolog.Logger.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// LogCommit logs a write-transaction commit with its duration and the
// number of dirty nodes flushed.
func (l *Logger) LogCommit(dur time.Duration, dirtyNodes, released int, err error) {
	ev := l.zlog.Debug()
	if err != nil {
		ev = l.zlog.Error().Err(err)
	}
	ev.Dur("duration", dur).
		Int("dirty_nodes", dirtyNodes).
		Int("released_pages", released).
		Msg("transaction commit")
}

// LogRollback logs a write-transaction rollback.
func (l *Logger) LogRollback(allocated int) {
	l.zlog.Debug().Int("allocated_pages_returned", allocated).Msg("transaction rollback")
}
