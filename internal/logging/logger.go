// Package logging builds the zerolog loggers used across the relay and defines
// the field names shared by every component.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
)

// Logger is an alias so callers never import zerolog just for the type.
type Logger = zerolog.Logger

// Config controls level, format and buffering of the process logger.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Default "info".
	Level string

	// Format is "json" or "text". Default "json".
	Format string

	// Async routes output through a diode ring buffer so request handlers
	// never block on stderr.
	Async bool

	// AsyncBufferSize is the ring buffer size in messages. Default 10000.
	AsyncBufferSize int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Level:           "info",
		Format:          "json",
		Async:           true,
		AsyncBufferSize: 10000,
	}
}

// NewLoggerFromConfig creates the root logger.
func NewLoggerFromConfig(config Config) Logger {
	return newLogger(config, os.Stderr)
}

func newLogger(config Config, out io.Writer) Logger {
	level := parseLevel(config.Level)

	var output io.Writer = out
	if strings.ToLower(config.Format) == "text" {
		output = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	if config.Async {
		size := config.AsyncBufferSize
		if size <= 0 {
			size = 10000
		}
		output = diode.NewWriter(output, size, 50*time.Millisecond, func(missed int) {
			// can't log through the logger here
			if missed > 0 {
				_, _ = os.Stderr.WriteString("WARN: dropped log messages due to full buffer\n")
			}
		})
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// Nop returns a disabled logger, handy for tests.
func Nop() Logger {
	return zerolog.Nop()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ForComponent returns a child logger with the component field set.
func ForComponent(logger Logger, component string) Logger {
	return logger.With().Str(FieldComponent, component).Logger()
}
