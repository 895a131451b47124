package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPerformHealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		statusCode     int
		responseBody   interface{}
		expectHealthy  bool
		expectExitCode int
		expectedStatus string
	}{
		{
			name:       "healthy server",
			statusCode: http.StatusOK,
			responseBody: HealthResponse{
				Status: "healthy",
				Checks: map[string]CheckResult{"store": {Status: "pass"}},
			},
			expectHealthy:  true,
			expectedStatus: "healthy",
		},
		{
			name:       "degraded server",
			statusCode: http.StatusOK,
			responseBody: HealthResponse{
				Status: "degraded",
				Checks: map[string]CheckResult{
					"store":     {Status: "pass"},
					"job_queue": {Status: "warn"},
				},
			},
			expectExitCode: 1,
			expectedStatus: "degraded",
		},
		{
			name:           "unhealthy server (503)",
			statusCode:     http.StatusServiceUnavailable,
			responseBody:   HealthResponse{Status: "unhealthy"},
			expectExitCode: 1,
			expectedStatus: "unhealthy",
		},
		{
			name:           "invalid response",
			statusCode:     http.StatusOK,
			responseBody:   "not json",
			expectExitCode: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				if str, ok := tt.responseBody.(string); ok {
					fmt.Fprint(w, str)
				} else {
					_ = json.NewEncoder(w).Encode(tt.responseBody)
				}
			}))
			defer server.Close()

			health, err := performHealthCheck(context.Background(), server.Client(), server.URL)

			if tt.expectHealthy {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			} else {
				var hcErr *healthcheckError
				if !errors.As(err, &hcErr) {
					t.Fatalf("expected healthcheckError, got %v", err)
				}
				if hcErr.code != tt.expectExitCode {
					t.Errorf("exit code = %d, want %d", hcErr.code, tt.expectExitCode)
				}
			}
			if tt.expectedStatus != "" && health.Status != tt.expectedStatus {
				t.Errorf("status = %q, want %q", health.Status, tt.expectedStatus)
			}
		})
	}
}

func TestPerformHealthCheckTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := performHealthCheck(ctx, server.Client(), server.URL); err == nil {
		t.Error("expected timeout error, got none")
	}
}

func TestHealthcheckTarget(t *testing.T) {
	orig := healthcheckURL
	defer func() { healthcheckURL = orig }()

	tests := []struct {
		name       string
		urlFlag    string
		serverPort string
		want       string
	}{
		{name: "explicit URL", urlFlag: "http://example.com/health", want: "http://example.com/health"},
		{name: "SERVER_PORT", serverPort: "9000", want: "http://localhost:9000/health"},
		{name: "default", want: "http://localhost:8080/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			healthcheckURL = tt.urlFlag
			t.Setenv("SERVER_PORT", tt.serverPort)

			if got := healthcheckTarget(); got != tt.want {
				t.Errorf("healthcheckTarget() = %q, want %q", got, tt.want)
			}
		})
	}
}
