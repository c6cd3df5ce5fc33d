// Package config provides configuration management for groupkeeper services.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds settings for the bot host and rule engine.
type Config struct {
	DatabaseURL string
	LogLevel    string
	LogFormat   string

	EventTimeout  time.Duration
	SchedEnabled  bool
	SchedInterval time.Duration

	MetricsAddr string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		DatabaseURL:   "sqlite://groupkeeper.db",
		LogLevel:      "info",
		LogFormat:     "text",
		EventTimeout:  10 * time.Second,
		SchedEnabled:  true,
		SchedInterval: time.Minute,
		MetricsAddr:   "",
	}
}

// BotToken extracts the chat platform token from the environment.
// Tokens are environment-only and never read from config files.
func BotToken() (string, error) {
	token := strings.TrimSpace(os.Getenv("GK_BOT_TOKEN"))
	if token == "" {
		return "", fmt.Errorf("GK_BOT_TOKEN is not set")
	}
	return token, nil
}
