package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching DefaultConfig
	v.SetDefault("database_url", "sqlite://groupkeeper.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("engine.event_timeout", "10s")
	v.SetDefault("sched.enabled", true)
	v.SetDefault("sched.interval", "1m")
	v.SetDefault("metrics.addr", "")

	// Bind environment variables with GK_ prefix
	v.SetEnvPrefix("GK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Security check: reject secrets in config files
	// Tokens must be environment-only per 12-factor principles
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:   v.GetString("database_url"),
		LogLevel:      v.GetString("log.level"),
		LogFormat:     v.GetString("log.format"),
		EventTimeout:  v.GetDuration("engine.event_timeout"),
		SchedEnabled:  v.GetBool("sched.enabled"),
		SchedInterval: v.GetDuration("sched.interval"),
		MetricsAddr:   v.GetString("metrics.addr"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks database URL presence, log settings, positive durations.
func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url must be set")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.EventTimeout <= 0 {
		return fmt.Errorf("engine.event_timeout must be positive, got %v", cfg.EventTimeout)
	}
	if cfg.SchedInterval <= 0 {
		return fmt.Errorf("sched.interval must be positive, got %v", cfg.SchedInterval)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("bot_token") || v.IsSet("bot.token") {
		return fmt.Errorf("bot tokens not allowed in config files (use GK_BOT_TOKEN environment variable)")
	}
	return nil
}
