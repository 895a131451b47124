package handlers

import (
	"net/http"
	"time"

	"github.com/eventeye/server/internal/domain/stats"
)

// StatsHandler reports dashboard totals along with build information.
type StatsHandler struct {
	stats     *stats.Service
	version   string
	gitCommit string
	startTime time.Time
	env       string
}

func NewStatsHandler(service *stats.Service, version, gitCommit string, startTime time.Time, env string) *StatsHandler {
	return &StatsHandler{
		stats:     service,
		version:   version,
		gitCommit: gitCommit,
		startTime: startTime,
		env:       env,
	}
}

type StatsResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	Uptime    int64  `json:"uptime_seconds"`

	stats.Stats

	Timestamp string `json:"timestamp"`
}

// GetStats handles GET /stats.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	totals, err := h.stats.Compute(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.env)
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Version:   h.version,
		GitCommit: h.gitCommit,
		Uptime:    int64(time.Since(h.startTime).Seconds()),
		Stats:     totals,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
