// Package logging configures structured logging with console and file output.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Dir     string // Directory for log files; empty disables file output
	Level   string // debug, info, warn, error (default: info)
	Console bool   // Also log to console
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Dir:     filepath.Join(home, ".anchorcast", "logs"),
		Level:   "info",
		Console: true,
	}
}

// New builds the root logger with a date-named log file and an optional
// console writer. Components derive their own loggers via Component.
func New(cfg Config) (zerolog.Logger, error) {
	var writers []io.Writer

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return zerolog.Nop(), fmt.Errorf("create log directory: %w", err)
		}
		name := fmt.Sprintf("anchorcast_%s.log", time.Now().Format("2006-01-02"))
		file, err := os.OpenFile(filepath.Join(cfg.Dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, file)
	}

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}

	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	logger := zerolog.New(io.MultiWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("app", "anchorcast").
		Logger()

	return logger, nil
}

// Component returns a child logger tagged with a component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
