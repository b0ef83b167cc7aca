// Package config loads finflow settings from the environment, optionally
// layered over a YAML file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	// Backend API consumed by the client
	APIURL     string        `yaml:"api_url" env:"FINFLOW_API_URL" env-default:"http://localhost:8080"`
	APITimeout time.Duration `yaml:"api_timeout" env:"FINFLOW_API_TIMEOUT" env-default:"15s"`
	Token      string        `yaml:"token" env:"FINFLOW_TOKEN"`

	// Client side caches and notifications
	CacheTTL        time.Duration `yaml:"cache_ttl" env:"CACHE_TTL" env-default:"5m"`
	NotifyMax       int           `yaml:"notify_max_entries" env:"NOTIFY_MAX_ENTRIES" env-default:"50"`
	NotifyDismiss   time.Duration `yaml:"notify_dismiss_after" env:"NOTIFY_DISMISS_AFTER" env-default:"5s"`
	RefreshDebounce time.Duration `yaml:"refresh_debounce" env:"REFRESH_DEBOUNCE" env-default:"250ms"`

	// AMQP relay, disabled when the URL is empty
	AMQPURL      string `yaml:"amqp_url" env:"AMQP_URL"`
	AMQPExchange string `yaml:"amqp_exchange" env:"AMQP_EXCHANGE" env-default:"finflow.updates"`

	// Logging
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"text"`

	// Dev server
	Port         string `yaml:"port" env:"PORT" env-default:"8080"`
	SQLiteDBPath string `yaml:"sqlite_db_path" env:"SQLITE_DB_PATH" env-default:"./data/finflow.db"`
}

// Load reads the environment, over CONFIG_PATH when that file is set.
func Load() (*Config, error) {
	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': must be an absolute http(s) URL", c.APIURL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	}

	if c.APITimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be positive", c.APITimeout))
	}

	if c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}

	if c.NotifyMax < 1 {
		errors = append(errors, fmt.Sprintf("invalid notification cap %d: must be at least 1", c.NotifyMax))
	}

	if c.NotifyDismiss <= 0 {
		errors = append(errors, fmt.Sprintf("invalid notification dismiss delay %v: must be positive", c.NotifyDismiss))
	}

	if c.RefreshDebounce < 0 {
		errors = append(errors, fmt.Sprintf("invalid refresh debounce %v: must not be negative", c.RefreshDebounce))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateServer checks the settings only the dev server uses. It creates
// the SQLite directory when missing.
func (c *Config) ValidateServer() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
