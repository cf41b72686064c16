package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var ErrAPIKeyMissing = errors.New("OPENAI_API_KEY environment variable is required")

const (
	DefaultMaxSessions    = 100
	DefaultSessionTimeout = 3600 * time.Second
)

type Config struct {
	APIKey         string
	BaseURL        string
	MaxSessions    int
	SessionTimeout time.Duration
	LogLevel       string
	WorkspaceRoot  string
	HistoryDBPath  string
}

// Load reads configuration from the environment. Only OPENAI_API_KEY is
// required; everything else has a default.
func Load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		APIKey:         getenv("OPENAI_API_KEY"),
		BaseURL:        getenv("OPENAI_BASE_URL"),
		MaxSessions:    DefaultMaxSessions,
		SessionTimeout: DefaultSessionTimeout,
		LogLevel:       "info",
		WorkspaceRoot:  ".",
	}

	if cfg.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}

	if v := getenv("MCP_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSessions = n
		}
	}

	if v := getenv("MCP_SESSION_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTimeout = time.Duration(n) * time.Second
		}
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := getenv("MCP_WORKSPACE_ROOT"); v != "" {
		cfg.WorkspaceRoot = v
	}

	cfg.HistoryDBPath = filepath.Join(cfg.WorkspaceRoot, "generated_images", "history.db")
	if v := getenv("MCP_HISTORY_DB"); v != "" {
		cfg.HistoryDBPath = v
	}

	return cfg, nil
}

// Getenv is the production environment source.
func Getenv(key string) string {
	return os.Getenv(key)
}
