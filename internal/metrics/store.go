package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store metrics
var (
	StoreOperationDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Key-value store operation duration in seconds",
			// Buckets: 100us, 500us, 1ms, 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"backend", "operation"},
	)

	StoreErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total number of key-value store errors",
		},
		[]string{"backend", "operation", "error_type"},
	)

	DBConnectionsOpen = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Total number of open database connections",
		},
	)

	DBConnectionsInUse = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_in_use",
			Help:      "Number of database connections currently in use (acquired)",
		},
	)

	DBConnectionsIdle = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
	)
)

// RecordStoreOperation observes one store call. ignore lists errors that are
// expected results rather than failures, such as a missing key.
//
//	start := time.Now()
//	value, err := next.Get(ctx, key)
//	metrics.RecordStoreOperation("redis", "get", start, err, kv.ErrNotFound)
func RecordStoreOperation(backend, operation string, start time.Time, err error, ignore ...error) {
	StoreOperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}
	for _, expected := range ignore {
		if errors.Is(err, expected) {
			return
		}
	}

	errorType := "store_error"
	switch {
	case errors.Is(err, context.Canceled):
		errorType = "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		errorType = "timeout"
	}
	StoreErrors.WithLabelValues(backend, operation, errorType).Inc()
}

// PoolCollector samples pgx pool statistics on an interval.
type PoolCollector struct {
	pool     *pgxpool.Pool
	stopChan chan struct{}
}

func NewPoolCollector(pool *pgxpool.Pool) *PoolCollector {
	return &PoolCollector{
		pool:     pool,
		stopChan: make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called.
func (c *PoolCollector) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *PoolCollector) Stop() {
	close(c.stopChan)
}

func (c *PoolCollector) collect() {
	if c.pool == nil {
		return
	}
	stat := c.pool.Stat()
	DBConnectionsOpen.Set(float64(stat.TotalConns()))
	DBConnectionsInUse.Set(float64(stat.AcquiredConns()))
	DBConnectionsIdle.Set(float64(stat.IdleConns()))
}
