// Package metrics exposes the Prometheus collectors of the session engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mpt"

// Turn outcomes.
const (
	OutcomeOK           = "ok"
	OutcomePartial      = "partial"
	OutcomeEmpty        = "empty"
	OutcomeDisconnected = "disconnected"
	OutcomeRejected     = "rejected"
)

// Generation failure phases.
const (
	PhasePreStream = "pre_stream"
	PhaseMidStream = "mid_stream"
)

var (
	// turns counts chat turns by outcome.
	turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "turns_total",
		Help:      "Chat turns by outcome",
	}, []string{"outcome"})

	// transitions counts stage transitions by the stage entered.
	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "stage_transitions_total",
		Help:      "Stage transitions by destination stage",
	}, []string{"stage"})

	generationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "generation_errors_total",
		Help:      "Generation failures by phase",
	}, []string{"phase"})

	generationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "generation_seconds",
		Help:      "Time from request to end of the generated stream",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64, 90},
	}, []string{"outcome"})

	firstFragmentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "first_fragment_seconds",
		Help:      "Time to the first generated fragment",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
	})

	liveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "live",
		Help:      "Sessions currently held in memory",
	})

	evictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "evictions_total",
		Help:      "Evicted sessions by reason",
	}, []string{"reason"})
)

// RecordTurn counts a finished turn.
func RecordTurn(outcome string) {
	turns.WithLabelValues(outcome).Inc()
}

// RecordTransition counts a transition into stage id.
func RecordTransition(stage string) {
	transitions.WithLabelValues(stage).Inc()
}

// RecordGenerationError counts a generation failure.
func RecordGenerationError(phase string) {
	generationErrors.WithLabelValues(phase).Inc()
}

// ObserveGeneration records the total duration of a generation.
func ObserveGeneration(outcome string, d time.Duration) {
	generationLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveFirstFragment records the time to the first fragment.
func ObserveFirstFragment(d time.Duration) {
	firstFragmentLatency.Observe(d.Seconds())
}

// SetLiveSessions sets the live-session gauge.
func SetLiveSessions(n int) {
	liveSessions.Set(float64(n))
}

// RecordEviction counts an evicted session.
func RecordEviction(reason string) {
	evictions.WithLabelValues(reason).Inc()
}
