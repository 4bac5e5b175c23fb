// Package logger builds the process-wide zerolog logger and the per-component
// sub-loggers handed to services and handlers.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error; anything else means info
	Pretty bool   // human-readable console output for development
	Output io.Writer
}

// New creates a structured logger tagged with service=aiweb.
// The level is applied to the returned logger only; the zerolog global level
// is left alone so tests can build independent loggers.
func New(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "aiweb").
		Logger()
}

// ParseLevel maps a config string to a zerolog level.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a sub-logger with component=name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Nop returns a logger that discards everything; used as the default when a
// service is built without one.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
