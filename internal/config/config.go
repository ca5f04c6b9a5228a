package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP, optional; an empty URL means syncs run inline
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Transaction provider
	Provider           string
	PlaidClientID      string
	PlaidSecret        string
	PlaidEnv           string
	ProviderFixtureDir string

	// Secrets
	VaultKey string
	AppEnv   string

	// Scheduler / worker
	SyncInterval    time.Duration
	SyncConcurrency int
	SyncStaleAfter  time.Duration

	LogLevel string

	// Backend selection
	DataBackend string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budgetpro.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgetpro"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_requests"),

		Provider:           getEnv("PROVIDER", "mock"),
		PlaidClientID:      getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:        getEnv("PLAID_SECRET", ""),
		PlaidEnv:           getEnv("PLAID_ENV", "sandbox"),
		ProviderFixtureDir: getEnv("PROVIDER_FIXTURE_DIR", ""),

		VaultKey: getEnv("VAULT_KEY", ""),
		AppEnv:   getEnv("APP_ENV", "development"),

		SyncInterval:    getEnvDuration("SYNC_INTERVAL", 24*time.Hour),
		SyncConcurrency: getEnvInt("SYNC_CONCURRENCY", 4),
		SyncStaleAfter:  getEnvDuration("SYNC_STALE_AFTER", 36*time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend: getEnv("DATA_BACKEND", "memory"),
	}

	return cfg
}

// IsProduction reports whether APP_ENV selects production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// QueueEnabled reports whether sync requests go through AMQP.
func (c *Config) QueueEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	if !contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
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
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	validProviders := []string{"mock", "plaid"}
	if !contains(validProviders, c.Provider) {
		errors = append(errors, fmt.Sprintf("invalid provider '%s': must be one of %v", c.Provider, validProviders))
	}

	if c.Provider == "plaid" {
		if c.PlaidClientID == "" || c.PlaidSecret == "" {
			errors = append(errors, "PLAID_CLIENT_ID and PLAID_SECRET are required when using plaid provider")
		}
		validEnvs := []string{"sandbox", "development", "production"}
		if !contains(validEnvs, c.PlaidEnv) {
			errors = append(errors, fmt.Sprintf("invalid plaid env '%s': must be one of %v", c.PlaidEnv, validEnvs))
		}
	}

	if c.Provider == "mock" && c.ProviderFixtureDir != "" {
		if info, err := os.Stat(c.ProviderFixtureDir); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("provider fixture directory does not exist: %s", c.ProviderFixtureDir))
		}
	}

	if c.VaultKey == "" {
		if c.IsProduction() {
			errors = append(errors, "VAULT_KEY is required in production")
		}
	} else if key, err := base64.StdEncoding.DecodeString(c.VaultKey); err != nil || len(key) != 32 {
		errors = append(errors, "invalid VAULT_KEY: must be 32 bytes, base64 encoded")
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 168 hours", c.SyncInterval))
	}

	if c.SyncConcurrency < 1 || c.SyncConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid sync concurrency %d: must be between 1 and 64", c.SyncConcurrency))
	}

	if c.SyncStaleAfter < 0 {
		errors = append(errors, fmt.Sprintf("invalid sync stale threshold %v: must not be negative", c.SyncStaleAfter))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
