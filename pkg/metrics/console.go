package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Push event outcomes.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeDropped   = "dropped"
	OutcomeInvalid   = "invalid"
)

// GatewayMetrics records latency of calls to the order backend.
type GatewayMetrics struct {
	duration *prometheus.HistogramVec
}

// NewGatewayMetrics registers the gateway histogram on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Duration of order backend requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "code"})
	reg.MustRegister(duration)
	return &GatewayMetrics{duration: duration}
}

// Observe records one request. A zero status code means the request never got a response.
func (g *GatewayMetrics) Observe(operation string, statusCode int, took time.Duration) {
	if g == nil || g.duration == nil {
		return
	}
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	g.duration.WithLabelValues(normalizeLabel(operation), code).Observe(took.Seconds())
}

// PushMetrics counts live events by name and outcome.
type PushMetrics struct {
	events *prometheus.CounterVec
}

func NewPushMetrics(reg prometheus.Registerer) *PushMetrics {
	if reg == nil {
		return &PushMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_events_total",
		Help: "Live update events received, by event name and outcome.",
	}, []string{"event", "outcome"})
	reg.MustRegister(events)
	return &PushMetrics{events: events}
}

func (p *PushMetrics) Inc(event, outcome string) {
	if p == nil || p.events == nil {
		return
	}
	p.events.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}

// RefreshMetrics counts triggers and the refreshes they were coalesced into.
type RefreshMetrics struct {
	triggers *prometheus.CounterVec
	runs     *prometheus.CounterVec
}

func NewRefreshMetrics(reg prometheus.Registerer) *RefreshMetrics {
	if reg == nil {
		return &RefreshMetrics{}
	}
	triggers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refresh_triggers_total",
		Help: "Refresh requests received by a coalescer.",
	}, []string{"queue"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refresh_runs_total",
		Help: "Refreshes actually executed after coalescing.",
	}, []string{"queue"})
	reg.MustRegister(triggers, runs)
	return &RefreshMetrics{triggers: triggers, runs: runs}
}

func (r *RefreshMetrics) IncTrigger(queue string) {
	if r == nil || r.triggers == nil {
		return
	}
	r.triggers.WithLabelValues(normalizeLabel(queue)).Inc()
}

func (r *RefreshMetrics) IncRun(queue string) {
	if r == nil || r.runs == nil {
		return
	}
	r.runs.WithLabelValues(normalizeLabel(queue)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
