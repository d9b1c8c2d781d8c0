// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	AllowedOrigins  []string
	DBPath          string
	ReplyDelayMin   time.Duration
	ReplyDelayMax   time.Duration
	BotSender       string
	SendBuffer      int
	LogLevel        slog.Level
	StoreTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		Port:            getEnv("PORT", "3000"),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		DBPath:          getEnv("DB_PATH", "./data/chatflow.db"),
		ReplyDelayMin:   getEnvMillis("REPLY_DELAY_MIN_MS", 1000),
		ReplyDelayMax:   getEnvMillis("REPLY_DELAY_MAX_MS", 3000),
		BotSender:       getEnv("BOT_SENDER", "other"),
		SendBuffer:      getEnvInt("CLIENT_SEND_BUFFER", 64),
		LogLevel:        level,
		StoreTimeout:    getEnvMillis("STORE_TIMEOUT_MS", 5000),
		ShutdownTimeout: getEnvMillis("SHUTDOWN_TIMEOUT_MS", 10000),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.BotSender == "" {
		return fmt.Errorf("BOT_SENDER cannot be empty")
	}
	if len(c.BotSender) > 50 {
		return fmt.Errorf("BOT_SENDER must be at most 50 characters")
	}
	if c.ReplyDelayMin < 0 {
		return fmt.Errorf("REPLY_DELAY_MIN_MS must be >= 0")
	}
	if c.ReplyDelayMax < c.ReplyDelayMin {
		return fmt.Errorf("REPLY_DELAY_MAX_MS must be >= REPLY_DELAY_MIN_MS")
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("CLIENT_SEND_BUFFER must be > 0")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT_MS must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT_MS must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func parseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q: %w", value, err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Millisecond
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
