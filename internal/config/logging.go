package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger builds the process logger and installs it as the zerolog global
// so packages that log through zerolog/log share its level and format.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	logger := newLogger(cfg, os.Stdout)
	log.Logger = logger
	return logger
}

func newLogger(cfg LoggingConfig, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "eventeye").
		Logger()
}

// parseLevel falls back to info for empty or unknown names.
func parseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
