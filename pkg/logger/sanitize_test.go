package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedEmail(t *testing.T) {
	assert.Equal(t, "u***@*******.com", SanitizedEmail("user@example.com"))
	assert.Equal(t, "a@****.io", SanitizedEmail("a@chef.io"))
	assert.Equal(t, "[invalid-email]", SanitizedEmail("not-an-email"))
	assert.Equal(t, "[invalid-email]", SanitizedEmail("@example.com"))
	assert.Equal(t, "c***@localhost", SanitizedEmail("chef@localhost"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("email=a@b.com"))
	assert.True(t, SanitizeQueryString("redirectUrl=https://x"))
	assert.True(t, SanitizeQueryString("page=2&APIKEY=k"))
	assert.True(t, SanitizeQueryString("bad=%zz"))
	assert.False(t, SanitizeQueryString("page=2"))
	assert.False(t, SanitizeQueryString("emailing=weekly"), "keys match exactly")
	assert.False(t, SanitizeQueryString(""))
}

func TestSecurityLogger_MasksEmail(t *testing.T) {
	var buf bytes.Buffer
	sl := NewSecurityLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	sl.LogLockout(context.Background(), "user@example.com", "login", 15)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "lockout", entry["event_type"])
	assert.Equal(t, "u***@*******.com", entry["email"])
	assert.Equal(t, "15", entry["lockout_minutes"])
	assert.NotContains(t, buf.String(), "user@example.com")
}

func TestSecurityLogger_PasswordResetLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewSecurityLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	sl.LogPasswordResetRequested(context.Background(), "user@example.com", "sent")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "sent", entry["outcome"])
}
