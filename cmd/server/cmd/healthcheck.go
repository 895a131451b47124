package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	healthcheckCmd = &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

This command is used by Docker HEALTHCHECK to monitor container health.
It exits with code 0 if the server is healthy, non-zero otherwise.

Exit codes:
  0 - Server is healthy
  1 - Server is unhealthy or unreachable
  2 - Invalid response from server`,
		RunE: runHealthcheck,
	}

	// Flags
	healthcheckTimeout int
	healthcheckURL     string
)

func init() {
	healthcheckCmd.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout in seconds")
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
}

// HealthResponse matches the body of GET /health.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthcheckError carries the process exit code for a failed check.
type healthcheckError struct {
	code int
	err  error
}

func (e *healthcheckError) Error() string { return e.err.Error() }
func (e *healthcheckError) Unwrap() error { return e.err }

func runHealthcheck(cmd *cobra.Command, args []string) error {
	url := healthcheckTarget()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(healthcheckTimeout)*time.Second)
	defer cancel()

	if _, err := performHealthCheck(ctx, http.DefaultClient, url); err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		code := 1
		if hcErr, ok := err.(*healthcheckError); ok {
			code = hcErr.code
		}
		os.Exit(code)
	}
	return nil
}

// healthcheckTarget is --url, or /health on localhost at SERVER_PORT.
func healthcheckTarget() string {
	if healthcheckURL != "" {
		return healthcheckURL
	}
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}

// performHealthCheck succeeds only for a 200 response reporting "healthy".
func performHealthCheck(ctx context.Context, client *http.Client, url string) (HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HealthResponse{}, &healthcheckError{code: 1, err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return HealthResponse{}, &healthcheckError{code: 1, err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	var health HealthResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&health)

	if resp.StatusCode != http.StatusOK {
		return health, &healthcheckError{code: 1, err: fmt.Errorf("unhealthy: status %d", resp.StatusCode)}
	}
	if decodeErr != nil {
		return health, &healthcheckError{code: 2, err: fmt.Errorf("parse response: %w", decodeErr)}
	}
	if health.Status != "healthy" {
		return health, &healthcheckError{code: 1, err: fmt.Errorf("unhealthy: status=%s", health.Status)}
	}
	return health, nil
}
