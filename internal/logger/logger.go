package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the process-wide logger. It discards output until Configure is
// called so library code stays quiet in tests.
var Logger = zerolog.Nop()

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Configure points the global logger at w with the given level. Pretty
// console output is used when console is true.
func Configure(level LogLevel, w io.Writer, console bool) {
	zerolog.SetGlobalLevel(parseLevel(level))

	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	Logger = zerolog.New(w).With().Timestamp().Logger()
	log.Logger = Logger
}

// OpenFile configures the logger to append to path, creating parent
// directories. The returned file must be closed by the caller.
func OpenFile(level LogLevel, path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	Configure(level, f, false)
	return f, nil
}

// LevelFromEnv reads CODEX_HISTORY_LOG_LEVEL, defaulting to info.
func LevelFromEnv() LogLevel {
	switch v := LogLevel(strings.ToLower(strings.TrimSpace(os.Getenv("CODEX_HISTORY_LOG_LEVEL")))); v {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return v
	default:
		return LevelInfo
	}
}

func parseLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
