package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eventeye/server/internal/metrics"
	"github.com/eventeye/server/internal/storage/kv"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	checkPass = "pass"
	checkWarn = "warn"
	checkFail = "fail"
)

// HealthCheck represents the health status of the server
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthChecker probes the store and, on PostgreSQL with jobs enabled, the
// River job table.
type HealthChecker struct {
	store       kv.Store
	backend     string
	pool        *pgxpool.Pool
	jobsEnabled bool
	version     string
	gitCommit   string
}

func NewHealthChecker(store kv.Store, backend string, pool *pgxpool.Pool, jobsEnabled bool, version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		store:       store,
		backend:     backend,
		pool:        pool,
		jobsEnabled: jobsEnabled,
		version:     version,
		gitCommit:   gitCommit,
	}
}

// Health handles GET /health with per-check results. Any failing check
// turns the response into 503.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Context().Err() != nil {
			respondHealth(w, http.StatusServiceUnavailable, "shutting_down")
			return
		}

		report := h.run(r.Context())
		status := http.StatusOK
		if report.Status == "unhealthy" {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	}
}

// Readyz handles GET /readyz: ready only when the store answers.
func (h *HealthChecker) Readyz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if result := h.checkStore(ctx); result.Status == checkFail {
			respondHealth(w, http.StatusServiceUnavailable, "not_ready")
			return
		}
		respondHealth(w, http.StatusOK, "ready")
	}
}

func (h *HealthChecker) run(ctx context.Context) HealthCheck {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	checks := map[string]CheckResult{
		"store": h.checkStore(ctx),
	}
	if h.jobsEnabled {
		checks["job_queue"] = h.checkJobQueue(ctx)
	}

	overall := "healthy"
	for name, check := range checks {
		metrics.HealthCheckStatus.WithLabelValues(name).Set(checkValue(check.Status))
		metrics.HealthCheckLatency.WithLabelValues(name).Set(float64(check.LatencyMs))
		switch {
		case check.Status == checkFail:
			overall = "unhealthy"
		case check.Status == checkWarn && overall == "healthy":
			overall = "degraded"
		}
	}
	metrics.HealthStatus.Set(overallValue(overall))

	return HealthCheck{
		Status:    overall,
		Version:   h.version,
		GitCommit: h.gitCommit,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (h *HealthChecker) checkStore(ctx context.Context) CheckResult {
	if h.store == nil {
		return CheckResult{Status: checkFail, Message: "store not initialized"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.store.Ping(pingCtx)
	latency := time.Since(start).Milliseconds()
	details := map[string]any{"backend": h.backend}

	if err != nil {
		details["error"] = err.Error()
		message := "store ping failed"
		if pingCtx.Err() == context.DeadlineExceeded {
			message = "store ping timed out after 2 seconds"
		}
		return CheckResult{Status: checkFail, Message: message, LatencyMs: latency, Details: details}
	}

	if h.pool != nil {
		stat := h.pool.Stat()
		details["max_connections"] = stat.MaxConns()
		details["total_connections"] = stat.TotalConns()
		details["idle_connections"] = stat.IdleConns()
	}
	return CheckResult{Status: checkPass, Message: "store reachable", LatencyMs: latency, Details: details}
}

// checkJobQueue warns rather than fails: certificates are still issued
// while background jobs are unavailable.
func (h *HealthChecker) checkJobQueue(ctx context.Context) CheckResult {
	if h.pool == nil {
		return CheckResult{Status: checkWarn, Message: "job queue requires the postgres backend"}
	}

	jobCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	var activeJobs int64
	err := h.pool.QueryRow(jobCtx,
		`SELECT COUNT(*) FROM river_job WHERE state = ANY($1)`,
		[]string{"available", "running", "retryable"},
	).Scan(&activeJobs)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return CheckResult{
			Status:    checkWarn,
			Message:   "job queue not queryable",
			LatencyMs: latency,
			Details: map[string]any{
				"error":       err.Error(),
				"remediation": "run `server migrate up` to create the River tables",
			},
		}
	}
	return CheckResult{
		Status:    checkPass,
		Message:   "River job queue operational",
		LatencyMs: latency,
		Details:   map[string]any{"active_jobs": activeJobs},
	}
}

func checkValue(status string) float64 {
	switch status {
	case checkPass:
		return 2
	case checkWarn:
		return 1
	default:
		return 0
	}
}

func overallValue(status string) float64 {
	switch status {
	case "healthy":
		return 2
	case "degraded":
		return 1
	default:
		return 0
	}
}

// Healthz is the liveness probe; it never touches dependencies.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ok")
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func respondHealth(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: value})
}
