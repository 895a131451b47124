package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated when absent", incoming: "", keep: false},
		{name: "propagated from proxy", incoming: "lb-1234", keep: true},
		{name: "oversized id replaced", incoming: strings.Repeat("x", maxRequestIDLength+1), keep: false},
		{name: "control characters replaced", incoming: "abc\x1bdef", keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fromContext string
			handler := CorrelationID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fromContext = GetRequestID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/events", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			header := rec.Header().Get("X-Request-ID")
			require.NotEmpty(t, header)
			assert.Equal(t, header, fromContext)
			if tt.keep {
				assert.Equal(t, tt.incoming, header)
			} else {
				assert.NotEqual(t, tt.incoming, header)
				assert.Len(t, header, 36)
			}
		})
	}
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	handler := CorrelationID(logger)(RequestLogging(inner))

	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req.Header.Set("X-Request-ID", "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request", entry["message"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/events", entry["path"])
	assert.EqualValues(t, http.StatusCreated, entry["status"])
	assert.EqualValues(t, len(`{"ok":true}`), entry["bytes"])
	assert.Equal(t, "req-42", entry["request_id"])
}

func TestRequestLogging_Levels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			handler := CorrelationID(zerolog.New(&buf))(RequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/verify/ABC", nil))

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
		})
	}
}

func TestRequestLogging_DefaultStatus(t *testing.T) {
	var buf bytes.Buffer
	handler := CorrelationID(zerolog.New(&buf))(RequestLogging(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, http.StatusOK, entry["status"])
}

func TestLoggerFromContext_Default(t *testing.T) {
	logger := LoggerFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.NotNil(t, logger)
	logger.Info().Msg("discarded")
}
