// Package config loads Jarvis settings from the environment (and an optional .env file).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ThresholdEnv names the one setting that has no default
const ThresholdEnv = "JARVIS_COMMAND_CONFIDENCE_THRESHOLD"

// ErrMissingThreshold is returned when the command confidence threshold is unset
var ErrMissingThreshold = errors.New(ThresholdEnv + " is required")

// Context window bounds
const (
	MinContextWindow     = 1
	MaxContextWindow     = 20
	DefaultContextWindow = 10
)

// Config holds all runtime settings
type Config struct {
	// Classification
	CommandConfidenceThreshold float64
	ReplayThreshold            float64
	OllamaURL                  string
	OllamaModel                string // empty selects the offline lexicon classifier
	GrammarDir                 string

	// Conversation
	ContextWindowSize  int
	SelfLearning       bool
	DefaultPersonality string

	// Runtime
	CallTimeout      time.Duration
	ReminderInterval time.Duration
	StatePath        string
	DBDriver         string
	DownloadDir      string
	Profile          bool
	LogLevel         string

	Discord DiscordConfig
}

// DiscordConfig holds Discord connection settings
type DiscordConfig struct {
	Token     string
	ChannelID string
	OwnerID   string
}

// LoadEnvFile loads the first .env file found. A missing file is not an error.
func LoadEnvFile(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	raw := strings.TrimSpace(os.Getenv(ThresholdEnv))
	if raw == "" {
		return nil, ErrMissingThreshold
	}
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", ThresholdEnv, raw, err)
	}

	statePath := getEnv("JARVIS_STATE_PATH", "state")
	cfg := &Config{
		CommandConfidenceThreshold: threshold,
		ReplayThreshold:            getEnvFloat("JARVIS_REPLAY_THRESHOLD", 0.8),
		OllamaURL:                  getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:                os.Getenv("JARVIS_OLLAMA_MODEL"),
		GrammarDir:                 os.Getenv("JARVIS_GRAMMAR_DIR"),
		ContextWindowSize:          clampWindow(getEnvInt("JARVIS_CONTEXT_WINDOW_SIZE", DefaultContextWindow)),
		SelfLearning:               getEnvBool("JARVIS_SELF_LEARNING", true),
		DefaultPersonality:         getEnv("JARVIS_PERSONALITY", "professional"),
		CallTimeout:                getEnvDuration("JARVIS_CALL_TIMEOUT", 10*time.Second),
		ReminderInterval:           getEnvDuration("JARVIS_REMINDER_INTERVAL", time.Minute),
		StatePath:                  statePath,
		DBDriver:                   getEnv("JARVIS_DB_DRIVER", "sqlite3"),
		DownloadDir:                getEnv("JARVIS_DOWNLOAD_DIR", filepath.Join(statePath, "downloads")),
		Profile:                    getEnvBool("JARVIS_PROFILE", false),
		LogLevel:                   getEnv("JARVIS_LOG_LEVEL", "info"),
		Discord: DiscordConfig{
			Token:     os.Getenv("DISCORD_TOKEN"),
			ChannelID: os.Getenv("DISCORD_CHANNEL_ID"),
			OwnerID:   os.Getenv("DISCORD_OWNER_ID"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges
func (c *Config) Validate() error {
	if c.CommandConfidenceThreshold < 0 || c.CommandConfidenceThreshold > 1 {
		return fmt.Errorf("%s must be within [0,1], got %v", ThresholdEnv, c.CommandConfidenceThreshold)
	}
	if c.ReplayThreshold < 0 || c.ReplayThreshold > 1 {
		return fmt.Errorf("JARVIS_REPLAY_THRESHOLD must be within [0,1], got %v", c.ReplayThreshold)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("JARVIS_CALL_TIMEOUT must be positive")
	}
	switch c.DBDriver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("unsupported JARVIS_DB_DRIVER %q (want sqlite3 or sqlite)", c.DBDriver)
	}
	return nil
}

// DBPath is the SQLite database location
func (c *Config) DBPath() string {
	return filepath.Join(c.StatePath, "jarvis.db")
}

// Path joins a file name onto the state directory
func (c *Config) Path(name string) string {
	return filepath.Join(c.StatePath, name)
}

func clampWindow(n int) int {
	if n < MinContextWindow {
		return MinContextWindow
	}
	if n > MaxContextWindow {
		return MaxContextWindow
	}
	return n
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("30s") or bare milliseconds ("60000")
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}
