package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidewatch/accesscore/pkg/logger"
)

func TestSanitizeQueryString(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		redacted bool
	}{
		{"empty", "", false},
		{"benign", "page=2&limit=50", false},
		{"session id", "session_id=abc123", true},
		{"token", "token=secretvalue", true},
		{"fingerprint", "fingerprint=deadbeef", true},
		{"mixed case", "SESSION=abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.redacted, logger.SanitizeQueryString(tt.query))
		})
	}
}

func TestRedactedAttr(t *testing.T) {
	prod := logger.RedactedAttr("session_id", "abc123", "production")
	assert.Equal(t, "[REDACTED]", prod.Value.String())

	dev := logger.RedactedAttr("session_id", "abc123", "development")
	assert.Equal(t, "abc123", dev.Value.String())
}
