package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

// BuildInfo is stamped into the binary through ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

func (b BuildInfo) withDefaults() BuildInfo {
	if b.Version == "" {
		b.Version = "dev"
	}
	if b.GitCommit == "" {
		b.GitCommit = "unknown"
	}
	if b.BuildDate == "" {
		b.BuildDate = "unknown"
	}
	return b
}

type versionResponse struct {
	BuildInfo
	GoVersion     string `json:"go_version"`
	StoreBackend  string `json:"store_backend"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// VersionHandler reports the build, the active store backend and how long
// the process has been serving.
func VersionHandler(info BuildInfo, backend string, started time.Time) http.Handler {
	info = info.withDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := versionResponse{
			BuildInfo:     info,
			GoVersion:     runtime.Version(),
			StoreBackend:  backend,
			UptimeSeconds: int64(time.Since(started).Seconds()),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
}
