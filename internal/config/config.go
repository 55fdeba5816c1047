package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Remote ledger
	LedgerBaseURL string
	LedgerTimeout time.Duration

	// Session persistence
	SessionDBPath string

	// Views
	DashboardLimit   int
	CategoryCacheTTL time.Duration

	// AMQP change notifications (optional)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Google Sheets export (optional)
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Logging
	LogLevel string

	// Development ledger server
	DevLedgerPort string
}

func Load() *Config {
	return &Config{
		LedgerBaseURL: getEnv("LEDGER_BASE_URL", "http://localhost:5000"),
		LedgerTimeout: getEnvDuration("LEDGER_TIMEOUT", 15*time.Second),

		SessionDBPath: getEnv("SESSION_DB_PATH", defaultSessionPath()),

		DashboardLimit:   getEnvInt("DASHBOARD_LIMIT", 5),
		CategoryCacheTTL: getEnvDuration("CATEGORY_CACHE_TTL", 5*time.Minute),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "budget"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "transaction_changes"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Transactions"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		DevLedgerPort: getEnv("DEV_LEDGER_PORT", "5000"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate ledger URL
	if c.LedgerBaseURL == "" {
		errors = append(errors, "ledger base URL cannot be empty")
	} else if parsedURL, err := url.Parse(c.LedgerBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid ledger base URL '%s': %v", c.LedgerBaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid ledger base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if c.LedgerTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid ledger timeout %v: must be at least 1 second", c.LedgerTimeout))
	} else if c.LedgerTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid ledger timeout %v: must be at most 5 minutes", c.LedgerTimeout))
	}

	// Validate session database path
	if c.SessionDBPath == "" {
		errors = append(errors, "session database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SessionDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0700); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create session database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.DashboardLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid dashboard limit %d: must be at least 1", c.DashboardLimit))
	} else if c.DashboardLimit > 100 {
		errors = append(errors, fmt.Sprintf("invalid dashboard limit %d: must be at most 100", c.DashboardLimit))
	}

	if c.CategoryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid category cache TTL %v: must not be negative", c.CategoryCacheTTL))
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
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	// Sheet name is only needed when export is enabled
	if c.GoogleSpreadsheetID != "" && c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
	}

	if port, err := strconv.Atoi(c.DevLedgerPort); err != nil {
		errors = append(errors, fmt.Sprintf("invalid dev ledger port '%s': must be a number", c.DevLedgerPort))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid dev ledger port %d: must be between 1 and 65535", port))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ExportEnabled reports whether spreadsheet export is configured
func (c *Config) ExportEnabled() bool { return c.GoogleSpreadsheetID != "" }

// NotificationsEnabled reports whether change notifications are configured
func (c *Config) NotificationsEnabled() bool { return c.AMQPURL != "" }

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./data/session.db"
	}
	return filepath.Join(dir, "budget", "session.db")
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
