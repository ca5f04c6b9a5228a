package backend

import (
	"fmt"

	"budgetpro/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	providerType := ProviderType(appConfig.Provider)
	if !providerType.IsValid() {
		return Config{}, fmt.Errorf("invalid provider in config: %s", appConfig.Provider)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		Provider:           providerType,
		PlaidClientID:      appConfig.PlaidClientID,
		PlaidSecret:        appConfig.PlaidSecret,
		PlaidEnv:           appConfig.PlaidEnv,
		ProviderFixtureDir: appConfig.ProviderFixtureDir,

		VaultKey: appConfig.VaultKey,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case MemoryBackend:
		// nothing to check
	}

	switch c.Provider {
	case PlaidProvider:
		if c.PlaidClientID == "" || c.PlaidSecret == "" {
			return fmt.Errorf("plaid client id and secret are required for plaid provider")
		}
	case MockProvider, "":
	default:
		return fmt.Errorf("invalid provider: %s", c.Provider)
	}

	if c.PublishSyncRequests && c.AMQPURL == "" {
		return fmt.Errorf("publishing sync requests requires an AMQP URL")
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
