package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess          = "success"
	OutcomeEmptyInput       = "empty_input"
	OutcomeLimitExceeded    = "limit_exceeded"
	OutcomeMalformed        = "malformed_response"
	OutcomeCompletionFailed = "completion_failed"
)

// Registry holds every collector the service exposes on /metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		DiagnosesTotal,
		CompletionDuration,
		ActiveSessions,
	)
}

// DiagnosesTotal counts diagnosis requests by outcome.
var DiagnosesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "biasmeter_diagnoses_total",
		Help: "Diagnosis requests by outcome",
	},
	[]string{"outcome"},
)

var CompletionDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "biasmeter_completion_duration_seconds",
		Help:    "Latency of the completion call in seconds",
		Buckets: prometheus.DefBuckets,
	},
)

var ActiveSessions = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "biasmeter_active_sessions",
		Help: "Sessions currently held in memory",
	},
)
