package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the agent-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	queriesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agent_layer",
			Subsystem: "queries",
			Name:      "inflight_sessions",
			Help:      "Current number of query sessions being executed.",
		},
	)

	queryExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent_layer",
			Subsystem: "queries",
			Name:      "executions_total",
			Help:      "Total number of query sessions executed.",
		},
		[]string{"query_type", "status"},
	)

	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agent_layer",
			Subsystem: "queries",
			Name:      "session_duration_seconds",
			Help:      "Duration of query sessions end to end.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"query_type"},
	)

	proofsIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent_layer",
			Subsystem: "proofs",
			Name:      "issued_total",
			Help:      "Total number of commitment proofs issued.",
		},
		[]string{"proof_type"},
	)

	proofVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent_layer",
			Subsystem: "proofs",
			Name:      "verifications_total",
			Help:      "Total number of proof verifications by outcome.",
		},
		[]string{"status"},
	)

	decryptFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agent_layer",
			Subsystem: "vault",
			Name:      "decrypt_failures_total",
			Help:      "Total number of payload decryptions rejected on integrity checks.",
		},
	)

	parseSkippedLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent_layer",
			Subsystem: "parser",
			Name:      "skipped_lines_total",
			Help:      "Total number of unparseable variant lines skipped.",
		},
		[]string{"format"},
	)
)

func init() {
	Registry.MustRegister(
		queriesInFlight,
		queryExecutions,
		queryDuration,
		proofsIssued,
		proofVerifications,
		decryptFailures,
		parseSkippedLines,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// QuerySessionStarted marks a session as in flight and returns a done
// function recording its outcome.
func QuerySessionStarted(queryType string) func(status string, duration time.Duration) {
	queriesInFlight.Inc()
	return func(status string, duration time.Duration) {
		queriesInFlight.Dec()
		if duration <= 0 {
			duration = time.Millisecond
		}
		queryExecutions.WithLabelValues(queryType, status).Inc()
		queryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
	}
}

// RecordProofIssued counts an issued commitment proof.
func RecordProofIssued(proofType string) {
	proofsIssued.WithLabelValues(proofType).Inc()
}

// RecordProofVerification counts a proof verification outcome.
func RecordProofVerification(status string) {
	proofVerifications.WithLabelValues(status).Inc()
}

// RecordDecryptFailure counts a payload rejected by the integrity checks.
func RecordDecryptFailure() {
	decryptFailures.Inc()
}

// RecordParseSkipped counts lines a variant parse could not decode.
func RecordParseSkipped(format string, count int) {
	if count <= 0 {
		return
	}
	parseSkippedLines.WithLabelValues(format).Add(float64(count))
}
