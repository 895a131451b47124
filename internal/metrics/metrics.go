package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eventeye"

// Registry is the registry served on /metrics.
var Registry = prometheus.NewRegistry()

// AppInfo is always 1; the build is described by its labels.
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// HealthStatus: 0 = unhealthy, 1 = degraded, 2 = healthy
var HealthStatus = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_status",
		Help:      "Overall server health status (0=unhealthy, 1=degraded, 2=healthy)",
	},
)

// HealthCheckStatus: 0 = fail, 1 = warn, 2 = pass
var HealthCheckStatus = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_check_status",
		Help:      "Individual health check status (0=fail, 1=warn, 2=pass)",
	},
	[]string{"check"},
)

var HealthCheckLatency = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_check_latency_ms",
		Help:      "Health check latency in milliseconds",
	},
	[]string{"check"},
)

var initOnce sync.Once

// Init registers the runtime collectors and publishes build information.
// Calls after the first are no-ops.
func Init(version, commit, buildDate string) {
	initOnce.Do(func() {
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
	})
}
