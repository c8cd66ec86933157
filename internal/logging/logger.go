// Package logging configures the zerolog logger handed to each component.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string
	// Pretty switches from JSON lines to console output.
	Pretty bool
	Output io.Writer
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Output: os.Stderr}
}

// New builds a logger from cfg. Unlike zerolog's global logger, the result is
// meant to be passed explicitly and scoped to one run.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
