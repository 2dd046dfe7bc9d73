// Package telemetry holds the Prometheus metrics the streaming core emits
// (SPEC_FULL §4.J). A nil *Registry records nothing, so a Client built
// without metrics wiring pays no cost.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every metric tvstream registers.
type Registry struct {
	Connections       *prometheus.CounterVec
	Frames            *prometheus.CounterVec
	Heartbeats        prometheus.Counter
	HandshakeDuration prometheus.Histogram
	DemuxEvents       *prometheus.CounterVec
	BackfillDuration  prometheus.Histogram
	ValidatorAttempts *prometheus.CounterVec
}

// NewRegistry builds a Registry and registers its collectors on reg. Passing
// a fresh prometheus.NewRegistry() keeps tvstream's metrics isolated from
// the default global registry.
func NewRegistry(reg *prometheus.Registry) *Registry {
	r := &Registry{
		Connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tvstream_connections_total",
				Help: "WebSocket dial attempts by result.",
			},
			[]string{"result"},
		),
		Frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tvstream_frames_total",
				Help: "Length-framed messages by direction.",
			},
			[]string{"direction"},
		),
		Heartbeats: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tvstream_heartbeats_total",
				Help: "Heartbeat frames echoed back to the server.",
			},
		),
		HandshakeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tvstream_handshake_duration_seconds",
				Help:    "Time from connect to the opening and add-symbol sequences completing.",
				Buckets: prometheus.DefBuckets,
			},
		),
		DemuxEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tvstream_demux_events_total",
				Help: "Decoded envelopes by verb.",
			},
			[]string{"verb"},
		),
		BackfillDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tvstream_backfill_duration_seconds",
				Help:    "Wall-clock time for FetchHistoricalCandles.",
				Buckets: prometheus.DefBuckets,
			},
		),
		ValidatorAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tvstream_validator_attempts_total",
				Help: "Symbol validator HTTP attempts by outcome.",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(r.Connections, r.Frames, r.Heartbeats, r.HandshakeDuration, r.DemuxEvents, r.BackfillDuration, r.ValidatorAttempts)
	}
	return r
}

// Every method below is nil-receiver safe, so a Client built with a nil
// *Registry can record through it unconditionally.

func (r *Registry) IncConnections(result string) {
	if r == nil {
		return
	}
	r.Connections.WithLabelValues(result).Inc()
}

func (r *Registry) IncFrames(direction string) {
	if r == nil {
		return
	}
	r.Frames.WithLabelValues(direction).Inc()
}

func (r *Registry) IncHeartbeats() {
	if r == nil {
		return
	}
	r.Heartbeats.Inc()
}

func (r *Registry) ObserveHandshake(seconds float64) {
	if r == nil {
		return
	}
	r.HandshakeDuration.Observe(seconds)
}

func (r *Registry) IncDemuxEvent(verb string) {
	if r == nil {
		return
	}
	r.DemuxEvents.WithLabelValues(verb).Inc()
}

func (r *Registry) ObserveBackfill(seconds float64) {
	if r == nil {
		return
	}
	r.BackfillDuration.Observe(seconds)
}

func (r *Registry) IncValidatorAttempt(outcome string) {
	if r == nil {
		return
	}
	r.ValidatorAttempts.WithLabelValues(outcome).Inc()
}
