package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Certificate lifecycle metrics
var (
	CertificatesIssued = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_issued_total",
			Help:      "Total number of certificates committed with a verification record",
		},
	)

	IssuanceFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issuance_failures_total",
			Help:      "Total number of participants that did not receive a certificate",
		},
		[]string{"reason"}, // reason: rejected|code_exhausted|store_unavailable|partial_write|error
	)

	IssuanceBatchSize = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "issuance_batch_size",
			Help:      "Number of participants per issuance request",
			Buckets:   []float64{1, 5, 10, 50, 100, 250, 500, 1000},
		},
	)

	CodeCollisions = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_collisions_total",
			Help:      "Total number of generated verification codes that were already taken",
		},
	)

	Verifications = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Total number of verification lookups",
		},
		[]string{"result"}, // result: valid|not_found|error
	)

	Notifications = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of participant notifications attempted",
		},
		[]string{"result"}, // result: sent|queued|skipped|failed
	)

	RepairedCertificates = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repair_certificates_total",
			Help:      "Certificates handled by the verification repair pass",
		},
		[]string{"result"}, // result: repaired|skipped|failed
	)
)
