package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remoteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dutyroster_remote_requests_total",
		Help: "Total number of remote schedule API calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	remoteRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dutyroster_remote_request_duration_seconds",
		Help:    "Histogram of remote schedule API call latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dutyroster_batches_total",
		Help: "Total number of batch edit actions by action and outcome.",
	}, []string{"action", "outcome"})

	batchDatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dutyroster_batch_dates_total",
		Help: "Total number of dates submitted through batch edits.",
	}, []string{"action"})

	forcedLogoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dutyroster_forced_logouts_total",
		Help: "Total number of sessions torn down by expiry detection or 401 responses.",
	})

	remindersSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dutyroster_reminders_sent_total",
		Help: "Total number of reminder webhook deliveries by outcome.",
	}, []string{"outcome"})

	cacheDegraded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dutyroster_cache_degraded",
		Help: "1 when the cache is serving the durable mirror snapshot instead of remote state.",
	})
)

// ObserveRemoteCall records one remote API call.
func ObserveRemoteCall(operation, outcome string, duration time.Duration) {
	remoteRequestsTotal.WithLabelValues(operation, outcome).Inc()
	remoteRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveBatch records one completed batch action covering n dates.
func ObserveBatch(action, outcome string, n int) {
	batchesTotal.WithLabelValues(action, outcome).Inc()
	batchDatesTotal.WithLabelValues(action).Add(float64(n))
}

// ForcedLogout records a session teardown that the user did not request.
func ForcedLogout() {
	forcedLogoutsTotal.Inc()
}

// ReminderSent records one reminder delivery attempt.
func ReminderSent(outcome string) {
	remindersSentTotal.WithLabelValues(outcome).Inc()
}

// SetCacheDegraded publishes the cache's degraded flag.
func SetCacheDegraded(degraded bool) {
	if degraded {
		cacheDegraded.Set(1)
		return
	}
	cacheDegraded.Set(0)
}
