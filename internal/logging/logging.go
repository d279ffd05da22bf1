// Package logging builds the zerolog logger shared by the GoChat binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Format selects how log lines are rendered.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Config describes the log level, output format, and optional file sink.
type Config struct {
	Level  string
	Format Format
	File   string
}

// ConfigFromEnv reads CHATROOM_LOG_LEVEL, CHATROOM_LOG_FORMAT and
// CHATROOM_LOG_FILE.
func ConfigFromEnv() Config {
	cfg := Config{
		Level:  "info",
		Format: FormatConsole,
	}
	if level := os.Getenv("CHATROOM_LOG_LEVEL"); level != "" {
		cfg.Level = level
	}
	if format := os.Getenv("CHATROOM_LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	}
	cfg.File = os.Getenv("CHATROOM_LOG_FILE")
	return cfg
}

// New creates a logger writing to stderr and, when cfg.File is set, also
// appending JSON lines to that file. The returned closer releases the file.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var console io.Writer = os.Stderr
	if cfg.Format != FormatJSON {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	var closer io.Closer = nopCloser{}
	out := console
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(console, f)
		closer = f
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
