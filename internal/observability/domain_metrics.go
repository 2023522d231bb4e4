package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	querySubmissionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querydesk_query_submissions_total",
			Help: "Total number of queries submitted to the remote engine.",
		},
	)
	queryOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querydesk_query_outcomes_total",
			Help: "Total query outcomes by kind (success or error kind).",
		},
		[]string{"outcome"},
	)
	queryPollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querydesk_query_polls_total",
			Help: "Total number of status polls issued against the remote engine.",
		},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querydesk_query_duration_seconds",
			Help:    "End-to-end query orchestration latency, submission to outcome.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)
	queryBytesScanned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querydesk_query_bytes_scanned",
			Help:    "Bytes scanned by the remote engine per successful query.",
			Buckets: prometheus.ExponentialBuckets(1024, 8, 10),
		},
	)
	queryTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querydesk_query_timeouts_total",
			Help: "Total queries abandoned locally after the wall-clock budget elapsed.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		querySubmissionsTotal,
		queryOutcomesTotal,
		queryPollsTotal,
		queryDurationSeconds,
		queryBytesScanned,
		queryTimeoutsTotal,
	)
}

func ObserveQuerySubmission() {
	querySubmissionsTotal.Inc()
}

func ObserveQueryPoll() {
	queryPollsTotal.Inc()
}

func ObserveQueryOutcome(outcome string, elapsed time.Duration) {
	queryOutcomesTotal.WithLabelValues(outcome).Inc()
	queryDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveQueryBytesScanned(bytes int64) {
	if bytes < 0 {
		return
	}
	queryBytesScanned.Observe(float64(bytes))
}

func IncrementQueryTimeout() {
	queryTimeoutsTotal.Inc()
}
