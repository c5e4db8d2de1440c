package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages can accept a logger without
// importing the third-party module directly.
type Logger = zerolog.Logger

// NewLogger builds the service logger. Development gets a console writer and
// debug level; LOG_LEVEL overrides the level in any environment.
func NewLogger(appEnv string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv, os.Getenv("LOG_LEVEL"))
}

func newLogger(out io.Writer, appEnv, levelOverride string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelOverride))); err == nil && levelOverride != "" {
		level = parsed
	}

	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "idphoto").
		Logger()
}

// NopLogger returns a logger that discards everything.
func NopLogger() *Logger {
	l := zerolog.Nop()
	return &l
}
