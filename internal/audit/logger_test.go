package audit

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) (map[string]json.RawMessage, Entry) {
	t.Helper()
	var wrapper map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &wrapper), buf.String())

	var entry Entry
	require.NoError(t, json.Unmarshal(wrapper["audit"], &entry))
	return wrapper, entry
}

func TestLoggerLog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithZerolog(zerolog.New(&buf))

	logger.Log(Entry{
		Action:       "event.create",
		Actor:        "user-1",
		ResourceType: "event",
		ResourceID:   "01HX12ABC123",
		IPAddress:    "192.168.1.1",
		Status:       StatusSuccess,
	})

	wrapper, entry := decodeEntry(t, &buf)
	assert.JSONEq(t, `"audit"`, string(wrapper["log_type"]))
	assert.Equal(t, "event.create", entry.Action)
	assert.Equal(t, "user-1", entry.Actor)
	assert.Equal(t, "01HX12ABC123", entry.ResourceID)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestLoggerFromRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithZerolog(zerolog.New(&buf))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "203.0.113.7:52100"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")

	logger.LogFromRequest(req, "", "user.login", "user", "", StatusFailure, map[string]string{"reason": "invalid_credentials"})

	_, entry := decodeEntry(t, &buf)
	assert.Equal(t, "anonymous", entry.Actor)
	assert.Equal(t, "203.0.113.7", entry.IPAddress)
	assert.Equal(t, StatusFailure, entry.Status)
	assert.Equal(t, "invalid_credentials", entry.Details["reason"])
}

func TestNilLoggerDiscards(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.LogFromRequest(httptest.NewRequest(http.MethodGet, "/", nil), "u", "a", "", "", StatusSuccess, nil)
	})
}
