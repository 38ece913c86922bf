package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// JSONBin
	JSONBinBinID   string
	JSONBinAPIKey  string
	JSONBinBaseURL string

	// Database
	SQLiteDBPath string

	// Board service
	SaveDebounce         time.Duration
	ArchiveFinalizeDelay time.Duration

	// Suggestions
	AnthropicAPIKey string
	SuggestModel    string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets archive export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Reminders
	ReminderSchedule string
	TelegramToken    string
	TelegramChatID   int64

	// Logging
	LogLevel  string
	LogFormat string
}

const DefaultSuggestModel = "claude-3-5-haiku-latest"

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: getEnv("DATA_BACKEND", "jsonbin"),

		JSONBinBinID:   getEnv("JSONBIN_BIN_ID", ""),
		JSONBinAPIKey:  getEnv("JSONBIN_API_KEY", ""),
		JSONBinBaseURL: getEnv("JSONBIN_BASE_URL", "https://api.jsonbin.io/v3"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/choreboard.db"),

		SaveDebounce:         getEnvDuration("SAVE_DEBOUNCE", time.Second),
		ArchiveFinalizeDelay: getEnvDuration("ARCHIVE_FINALIZE_DELAY", 0),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		SuggestModel:    getEnv("SUGGEST_MODEL", DefaultSuggestModel),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "choreboard"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "archive_export"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Archive"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		ReminderSchedule: getEnv("REMINDER_SCHEDULE", "0 18 * * 0"),
		TelegramToken:    getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID:   getEnvInt64("TELEGRAM_CHAT_ID", 0),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate checks the structure of the configuration. Missing credentials are
// not reported here; see Missing.
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "jsonbin", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "jsonbin" {
		if parsedURL, err := url.Parse(c.JSONBinBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid JSONBin base URL '%s': %v", c.JSONBinBaseURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid JSONBin base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	}

	if c.DataBackend == "sqlite" && c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.SaveDebounce < 0 || c.SaveDebounce > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid save debounce %v: must be between 0 and 1 minute", c.SaveDebounce))
	}
	if c.ArchiveFinalizeDelay < 0 || c.ArchiveFinalizeDelay > 30*time.Second {
		errors = append(errors, fmt.Sprintf("invalid archive finalize delay %v: must be between 0 and 30 seconds", c.ArchiveFinalizeDelay))
	}

	// Validate AMQP URL if provided
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

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.ReminderSchedule != "" {
		if _, err := cron.ParseStandard(c.ReminderSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid reminder schedule '%s': %v", c.ReminderSchedule, err))
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json", "tint":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of [text json tint]", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Missing returns the environment variables the selected backend needs but
// that are unset. A non-empty result puts the board in local-only mode.
func (c *Config) Missing() []string {
	var missing []string
	switch c.DataBackend {
	case "jsonbin":
		if c.JSONBinBinID == "" {
			missing = append(missing, "JSONBIN_BIN_ID")
		}
		if c.JSONBinAPIKey == "" {
			missing = append(missing, "JSONBIN_API_KEY")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			missing = append(missing, "SQLITE_DB_PATH")
		}
	}
	return missing
}

// SheetsEnabled reports whether the archive export has a destination.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != "" && (c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != "")
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
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
