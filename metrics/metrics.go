// Package metrics exposes Prometheus instrumentation for librarian runs.
//
// A nil *Collector is valid and records nothing, so the agent can call it
// unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "librarian"

// Generation outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeUpstream  = "upstream_error"
	OutcomeMalformed = "malformed"
	OutcomeSchema    = "schema_violation"
)

// Run outcomes.
const (
	RunAnswered  = "answered"
	RunExhausted = "max_rounds"
	RunAborted   = "aborted"
)

// Collector groups the counters and histograms recorded during a run.
type Collector struct {
	generations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	drops       *prometheus.CounterVec
	rounds      prometheus.Counter
	runs        *prometheus.CounterVec
}

// New registers the librarian metrics with reg. A nil reg creates
// unregistered collectors, which is handy in tests.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_calls_total",
			Help:      "Generation service calls by stage and outcome.",
		}, []string{"stage", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of generation service calls by stage.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"stage"}),
		drops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advisory_drops_total",
			Help:      "Batch items dropped after exhausting their retry budget.",
		}, []string{"stage"}),
		rounds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_rounds_total",
			Help:      "Completed retrieval rounds.",
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by outcome.",
		}, []string{"outcome"}),
	}
}

func (c *Collector) ObserveGeneration(stage, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.generations.WithLabelValues(stage, outcome).Inc()
	c.latency.WithLabelValues(stage).Observe(d.Seconds())
}

func (c *Collector) ObserveDrop(stage string) {
	if c == nil {
		return
	}
	c.drops.WithLabelValues(stage).Inc()
}

func (c *Collector) ObserveRound() {
	if c == nil {
		return
	}
	c.rounds.Inc()
}

func (c *Collector) ObserveRun(outcome string) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(outcome).Inc()
}
