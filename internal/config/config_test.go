package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_TYPE", "")
	t.Setenv("APP_TIMEZONE", "")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone.String())
	assert.Equal(t, 10, cfg.OutboxMaxAttempts)
	assert.Equal(t, "ja-JP", cfg.SpeechLanguage)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("UPLOAD_MAX_BYTES", "2048")
	t.Setenv("EMAIL_DEBUG", "true")
	t.Setenv("UPLOAD_RATE_WINDOW", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.Timezone.String())
	assert.Equal(t, 250*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, int64(2048), cfg.UploadMaxSize)
	assert.True(t, cfg.EmailDebug)
	assert.Equal(t, 90*time.Second, cfg.UploadRateWindow)
	assert.Equal(t, 20, cfg.UploadRateLimit)
}

func TestLoadRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		msg  string
	}{
		{"unknown timezone", map[string]string{"APP_TIMEZONE": "Mars/Olympus"}, "APP_TIMEZONE"},
		{"postgres without url", map[string]string{"DB_TYPE": "postgres", "DATABASE_URL": ""}, "DATABASE_URL"},
		{"unknown db type", map[string]string{"DB_TYPE": "oracle"}, "DB_TYPE"},
		{"zero attempts", map[string]string{"OUTBOX_MAX_ATTEMPTS": "0"}, "OUTBOX_MAX_ATTEMPTS"},
		{"malformed int", map[string]string{"UPLOAD_RATE_LIMIT": "not-a-number"}, "UPLOAD_RATE_LIMIT"},
		{"malformed duration", map[string]string{"OUTBOX_POLL_INTERVAL": "five seconds"}, "OUTBOX_POLL_INTERVAL"},
		{"malformed bool", map[string]string{"EMAIL_DEBUG": "sometimes"}, "EMAIL_DEBUG"},
		{"zero scan interval", map[string]string{"ALERT_SCAN_INTERVAL": "0s"}, "ALERT_SCAN_INTERVAL"},
		{"negative rate window", map[string]string{"UPLOAD_RATE_WINDOW": "-1m"}, "UPLOAD_RATE_WINDOW"},
		{"zero rate limit", map[string]string{"UPLOAD_RATE_LIMIT": "0"}, "UPLOAD_RATE_LIMIT"},
		{"negative poll interval", map[string]string{"OUTBOX_POLL_INTERVAL": "-5s"}, "OUTBOX_POLL_INTERVAL"},
		{"zero upload size", map[string]string{"UPLOAD_MAX_BYTES": "0"}, "UPLOAD_MAX_BYTES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}
