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
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Reminder job
	ReminderSecret            string
	ReminderWindowDays        int
	ReminderInterval          time.Duration
	ReminderDispatchLimit     int
	ReminderTrackLastNotified bool

	// Mail
	MailBackend string
	MailFrom    string

	// Gmail OAuth (mail backend "gmail")
	GmailOAuthClientFile string
	GmailOAuthTokenFile  string
	GmailOAuthClientJSON string
	GmailOAuthTokenJSON  string

	// Sessions
	SessionTTL time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/subtrack.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "subtrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "subscription_events"),

		ReminderSecret:            getEnv("REMINDER_SECRET", ""),
		ReminderWindowDays:        getEnvInt("REMINDER_WINDOW_DAYS", 7),
		ReminderInterval:          getEnvDuration("REMINDER_INTERVAL", 24*time.Hour),
		ReminderDispatchLimit:     getEnvInt("REMINDER_DISPATCH_LIMIT", 8),
		ReminderTrackLastNotified: getEnvBool("REMINDER_TRACK_LAST_NOTIFIED", false),

		MailBackend: getEnv("MAIL_BACKEND", "log"),
		MailFrom:    getEnv("MAIL_FROM", "reminders@subtrack.local"),

		GmailOAuthClientFile: getEnv("GMAIL_OAUTH_CLIENT_FILE", ""),
		GmailOAuthTokenFile:  getEnv("GMAIL_OAUTH_TOKEN_FILE", ""),
		GmailOAuthClientJSON: getEnv("GMAIL_OAUTH_CLIENT_JSON", ""),
		GmailOAuthTokenJSON:  getEnv("GMAIL_OAUTH_TOKEN_JSON", ""),

		SessionTTL: getEnvDuration("SESSION_TTL", 30*24*time.Hour),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate SQLite path
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
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

	// Validate reminder window
	if c.ReminderWindowDays < 0 {
		errors = append(errors, fmt.Sprintf("invalid reminder window %d: must be non-negative", c.ReminderWindowDays))
	} else if c.ReminderWindowDays > 365 {
		errors = append(errors, fmt.Sprintf("invalid reminder window %d: must be at most 365 days", c.ReminderWindowDays))
	}

	if c.ReminderInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid reminder interval %v: must be at least 1 minute", c.ReminderInterval))
	}

	if c.ReminderDispatchLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid reminder dispatch limit %d: must be at least 1", c.ReminderDispatchLimit))
	}

	// Validate mail backend
	validBackends := []string{"log", "gmail"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.MailBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid mail backend '%s': must be one of %v", c.MailBackend, validBackends))
	}

	// Validate Gmail configuration if backend is gmail
	if c.MailBackend == "gmail" {
		hasClientFile := c.GmailOAuthClientFile != ""
		hasClientJSON := c.GmailOAuthClientJSON != ""
		if !hasClientFile && !hasClientJSON {
			errors = append(errors, "either GMAIL_OAUTH_CLIENT_FILE or GMAIL_OAUTH_CLIENT_JSON must be provided for gmail backend")
		}

		hasTokenFile := c.GmailOAuthTokenFile != ""
		hasTokenJSON := c.GmailOAuthTokenJSON != ""
		if !hasTokenFile && !hasTokenJSON {
			errors = append(errors, "either GMAIL_OAUTH_TOKEN_FILE or GMAIL_OAUTH_TOKEN_JSON must be provided for gmail backend")
		}

		if hasClientFile {
			if _, err := os.Stat(c.GmailOAuthClientFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Gmail OAuth client file does not exist: %s", c.GmailOAuthClientFile))
			}
		}
		if hasTokenFile {
			if _, err := os.Stat(c.GmailOAuthTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Gmail OAuth token file does not exist: %s", c.GmailOAuthTokenFile))
			}
		}

		if c.MailFrom == "" {
			errors = append(errors, "MAIL_FROM cannot be empty when using gmail backend")
		}
	}

	// Validate session TTL
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
