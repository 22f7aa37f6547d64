package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"timetrack/internal/platform/config"
)

// New builds the process logger and installs it as the global zerolog logger.
func New(cfg config.Config) zerolog.Logger {
	return Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat, cfg.Environment)
}

func Setup(out io.Writer, level, format, env string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	l := zerolog.New(out).Level(parsed).With().
		Timestamp().
		Str("service", "timetrack").
		Str("env", env).
		Logger()
	log.Logger = l
	return l
}
