package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort string

	// Database
	DatabaseType string
	DatabasePath string
	DatabaseURL  string

	LogLevel  string
	LogFormat string

	// Location used to decide which calendar day a practice falls on
	Timezone *time.Location

	AudioStoragePath string
	AudioBaseURL     string
	UploadMaxSize    int64

	AuthTokenSecret string
	AuthTokenIssuer string

	// Speech-to-text
	GoogleCredentialsJSON string
	SpeechLanguage        string
	SpeechEndpoint        string

	// Feedback generation
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	AlertScanInterval time.Duration

	// Email (AWS SES)
	SESRegion    string
	SESFromEmail string
	SESFromName  string
	AppBaseURL   string
	EmailDebug   bool

	UploadRateLimit  int
	UploadRateWindow time.Duration
}

// Load reads configuration from the environment (and an optional .env file) with sensible defaults.
// A variable that is set but does not parse is an error, not a silent default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	tzName := getEnv("APP_TIMEZONE", "Asia/Tokyo")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", tzName, err)
	}

	var env envReader
	cfg := &Config{
		ServerPort:            getEnv("PORT", "8080"),
		DatabaseType:          strings.ToLower(getEnv("DB_TYPE", "sqlite")),
		DatabasePath:          getEnv("DB_PATH", "./hanashite.db"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		Timezone:              loc,
		AudioStoragePath:      getEnv("AUDIO_STORAGE_PATH", "./data/audio"),
		AudioBaseURL:          getEnv("AUDIO_BASE_URL", "/audio"),
		UploadMaxSize:         env.getInt64("UPLOAD_MAX_BYTES", 10*1024*1024),
		AuthTokenSecret:       getEnv("AUTH_TOKEN_SECRET", ""),
		AuthTokenIssuer:       getEnv("AUTH_TOKEN_ISSUER", "hanashite"),
		GoogleCredentialsJSON: getEnv("GOOGLE_APPLICATION_CREDENTIALS_JSON", ""),
		SpeechLanguage:        getEnv("SPEECH_LANGUAGE", "ja-JP"),
		SpeechEndpoint:        getEnv("SPEECH_ENDPOINT", "https://speech.googleapis.com/v1/speech:recognize"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL:         getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		OutboxPollInterval:    env.getDuration("OUTBOX_POLL_INTERVAL", 5*time.Second),
		OutboxBatchSize:       env.getInt("OUTBOX_BATCH_SIZE", 50),
		OutboxMaxAttempts:     env.getInt("OUTBOX_MAX_ATTEMPTS", 10),
		AlertScanInterval:     env.getDuration("ALERT_SCAN_INTERVAL", 24*time.Hour),
		SESRegion:             getEnv("SES_REGION", "us-east-1"),
		SESFromEmail:          getEnv("SES_FROM_EMAIL", ""),
		SESFromName:           getEnv("SES_FROM_NAME", "Hanashite"),
		AppBaseURL:            getEnv("APP_BASE_URL", "http://localhost:8080"),
		EmailDebug:            env.getBool("EMAIL_DEBUG", false),
		UploadRateLimit:       env.getInt("UPLOAD_RATE_LIMIT", 20),
		UploadRateWindow:      env.getDuration("UPLOAD_RATE_WINDOW", time.Minute),
	}
	if env.err != nil {
		return nil, env.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	switch c.DatabaseType {
	case "sqlite", "sqlite3":
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for DB_TYPE=%s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("unsupported DB_TYPE: %s", c.DatabaseType)
	}

	positive := []struct {
		key string
		ok  bool
	}{
		{"OUTBOX_MAX_ATTEMPTS", c.OutboxMaxAttempts > 0},
		{"OUTBOX_BATCH_SIZE", c.OutboxBatchSize > 0},
		{"OUTBOX_POLL_INTERVAL", c.OutboxPollInterval > 0},
		{"ALERT_SCAN_INTERVAL", c.AlertScanInterval > 0},
		{"UPLOAD_RATE_LIMIT", c.UploadRateLimit > 0},
		{"UPLOAD_RATE_WINDOW", c.UploadRateWindow > 0},
		{"UPLOAD_MAX_BYTES", c.UploadMaxSize > 0},
	}
	for _, p := range positive {
		if !p.ok {
			return fmt.Errorf("%s must be positive", p.key)
		}
	}
	return nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables and keeps the first failure
type envReader struct {
	err error
}

func (r *envReader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (r *envReader) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (r *envReader) getInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (r *envReader) getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return b
}

func (r *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return d
}
