package update

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal      *prometheus.CounterVec
	operationDuration    *prometheus.HistogramVec
	keyCacheTotal        *prometheus.CounterVec
	rateLimitWaitSeconds prometheus.Histogram
	batchesTotal         *prometheus.CounterVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// Metrics records batch activity. A nil *Metrics, or one used before
// InitMetrics, records nothing.
type Metrics struct{}

// NewMetrics creates a Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// InitMetrics registers the collectors with the default registry. It is
// called once at startup when --metrics-file is set.
func InitMetrics() {
	metricsOnce.Do(func() {
		operationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghsecrets_operations_total",
				Help: "Secret update operations by outcome and error kind",
			},
			[]string{"outcome", "kind"},
		)

		operationDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ghsecrets_operation_duration_seconds",
				Help:    "Duration of secret update operations in seconds, excluding confirmation",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"},
		)

		keyCacheTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghsecrets_public_key_cache_total",
				Help: "Public key lookups by result (hit or miss)",
			},
			[]string{"result"},
		)

		rateLimitWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ghsecrets_rate_limit_wait_seconds",
				Help:    "Time spent waiting for the GitHub rate limit window to reset",
				Buckets: []float64{1, 10, 60, 300, 900},
			},
		)

		batchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghsecrets_batches_total",
				Help: "Batch rounds by kind (initial or retry) and whether they were aborted",
			},
			[]string{"round", "aborted"},
		)

		metricsRegistered = true
	})
}

// RecordOperation records a finished operation
func (m *Metrics) RecordOperation(result OperationResult) {
	if m == nil || !metricsRegistered {
		return
	}

	kind := ""
	if result.Err != nil {
		kind = result.Err.Kind.String()
	}
	operationsTotal.WithLabelValues(result.Outcome.String(), kind).Inc()
	operationDuration.WithLabelValues(result.Outcome.String()).Observe(result.Duration.Seconds())
}

// RecordKeyCache records a public key lookup
func (m *Metrics) RecordKeyCache(hit bool) {
	if m == nil || !metricsRegistered {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	keyCacheTotal.WithLabelValues(result).Inc()
}

// RecordRateLimitWait records a limiter suspension
func (m *Metrics) RecordRateLimitWait(d time.Duration) {
	if m == nil || !metricsRegistered {
		return
	}
	rateLimitWaitSeconds.Observe(d.Seconds())
}

// RecordBatch records a completed round
func (m *Metrics) RecordBatch(retry, aborted bool) {
	if m == nil || !metricsRegistered {
		return
	}
	round := "initial"
	if retry {
		round = "retry"
	}
	abortedLabel := "false"
	if aborted {
		abortedLabel = "true"
	}
	batchesTotal.WithLabelValues(round, abortedLabel).Inc()
}

// GetOperationsTotal returns the operations counter for testing
func GetOperationsTotal() *prometheus.CounterVec {
	return operationsTotal
}

// GetKeyCacheTotal returns the key cache counter for testing
func GetKeyCacheTotal() *prometheus.CounterVec {
	return keyCacheTotal
}

// GetBatchesTotal returns the batch counter for testing
func GetBatchesTotal() *prometheus.CounterVec {
	return batchesTotal
}

// IsMetricsRegistered returns whether metrics have been initialized
func IsMetricsRegistered() bool {
	return metricsRegistered
}
