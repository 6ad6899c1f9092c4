package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config configures the process-wide logger
type Config struct {
	Level   string // debug, info, warn, error
	Console bool   // human-readable output instead of JSON
	File    string // optional JSON log file, appended
}

var (
	mu      sync.RWMutex
	logger  = zerolog.New(os.Stderr).With().Timestamp().Logger()
	logFile *os.File
)

// Init (re)configures the global logger. DEBUG=true forces debug level.
func Init(cfg Config) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if os.Getenv("DEBUG") == "true" {
		level = zerolog.DebugLevel
	}

	var out io.Writer = os.Stderr
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		out = zerolog.MultiLevelWriter(out, f)
	}

	logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return nil
}

// SetOutput redirects logging to w at the given level (used by tests)
func SetOutput(w io.Writer, level zerolog.Level) {
	mu.Lock()
	logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	mu.Unlock()
}

// Close releases the log file, if any
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// For returns a logger tagged with the subsystem
func For(subsystem string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.With().Str("subsystem", subsystem).Logger()
}

// Info logs an informational message
func Info(subsystem, format string, args ...any) {
	l := For(subsystem)
	l.Info().Msgf(format, args...)
}

// Debug logs a debug message (only shown at debug level)
func Debug(subsystem, format string, args ...any) {
	l := For(subsystem)
	l.Debug().Msgf(format, args...)
}

// Warn logs a recoverable problem
func Warn(subsystem, format string, args ...any) {
	l := For(subsystem)
	l.Warn().Msgf(format, args...)
}

// Error logs a failure that was handled in-band
func Error(subsystem string, err error, format string, args ...any) {
	l := For(subsystem)
	l.Error().Err(err).Msgf(format, args...)
}

// Truncate truncates a string to maxLen runes and adds ellipsis
func Truncate(s string, maxLen int) string {
	// one-line logs
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
