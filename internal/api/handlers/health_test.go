package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eventeye/server/internal/storage/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthWithMemoryStore(t *testing.T) {
	store := kv.NewMemory()
	checker := NewHealthChecker(store, "memory", nil, false, "1.0.0", "abc123")

	rec := httptest.NewRecorder()
	checker.Health().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var report HealthCheck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, "1.0.0", report.Version)
	assert.Equal(t, checkPass, report.Checks["store"].Status)
	assert.NotContains(t, report.Checks, "job_queue")
}

func TestHealthJobQueueWithoutPostgres(t *testing.T) {
	checker := NewHealthChecker(kv.NewMemory(), "memory", nil, true, "1.0.0", "abc123")

	rec := httptest.NewRecorder()
	checker.Health().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var report HealthCheck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, checkWarn, report.Checks["job_queue"].Status)
}

func TestHealthAndReadyzWithClosedStore(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Close())
	checker := NewHealthChecker(store, "memory", nil, false, "1.0.0", "abc123")

	rec := httptest.NewRecorder()
	checker.Health().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	checker.Readyz().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not_ready"}`, rec.Body.String())
}
