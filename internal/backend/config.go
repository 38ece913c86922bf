package backend

import (
	"fmt"

	"choreboard/internal/config"
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

	return Config{
		Type: backendType,

		JSONBinBinID:   appConfig.JSONBinBinID,
		JSONBinAPIKey:  appConfig.JSONBinAPIKey,
		JSONBinBaseURL: appConfig.JSONBinBaseURL,

		SQLiteDBPath: appConfig.SQLiteDBPath,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s (valid: %v)", c.Type, GetBackendTypes())
	}

	switch c.Type {
	case JSONBinBackend:
		if c.JSONBinBinID == "" || c.JSONBinAPIKey == "" {
			return fmt.Errorf("JSONBin bin id and API key are required for jsonbin backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case MemoryBackend:
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{JSONBinBackend, SQLiteBackend, MemoryBackend}
}
