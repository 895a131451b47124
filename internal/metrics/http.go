package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Byte buckets from 128B to 2MB; issuance batches top out at 1MB.
var sizeBuckets = prometheus.ExponentialBuckets(128, 4, 8)

var (
	HTTPRequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time spent serving HTTP requests",
			Buckets:   []float64{.002, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served",
		},
	)

	HTTPBodyBytes = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_body_bytes",
			Help:      "Declared request body size and written response size",
			Buckets:   sizeBuckets,
		},
		[]string{"route", "direction"},
	)
)

// responseWriter remembers the status code and counts bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

func (rw *responseWriter) status() int {
	if rw.statusCode == 0 {
		return http.StatusOK
	}
	return rw.statusCode
}

// HTTPMiddleware observes every request under a bounded route label so
// verification codes and event ids never become label values.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HTTPRequestsInFlight.Inc()
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w}

		defer func() {
			HTTPRequestsInFlight.Dec()
			route := normalizePath(r.URL.Path)

			HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status())).Inc()
			HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			if r.ContentLength > 0 {
				HTTPBodyBytes.WithLabelValues(route, "in").Observe(float64(r.ContentLength))
			}
			HTTPBodyBytes.WithLabelValues(route, "out").Observe(float64(rw.bytesWritten))
		}()

		next.ServeHTTP(rw, r)
	})
}

// normalizePath keeps the first path segment and collapses every later one
// into {param}. Routes carry at most one parameter under a static root.
func normalizePath(path string) string {
	rest, ok := strings.CutPrefix(path, "/")
	if !ok {
		return path
	}
	root, tail, nested := strings.Cut(rest, "/")
	if !nested {
		return path
	}
	var b strings.Builder
	b.WriteString("/" + root)
	for _, seg := range strings.Split(tail, "/") {
		b.WriteByte('/')
		if seg != "" {
			b.WriteString("{param}")
		}
	}
	return b.String()
}
