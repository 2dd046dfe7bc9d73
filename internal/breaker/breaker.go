// Package breaker wraps a single named operation in a circuit breaker, used
// to stop hammering the symbol-validator endpoint once it looks down
// (SPEC_FULL §4.K).
package breaker

import (
	"time"

	cb "github.com/sony/gobreaker"
)

// Breaker guards one external call behind trip/reset policy: opens after 3
// consecutive failures, or once at least 20 requests have been counted in
// the current 60s interval and more than 5% of them failed.
type Breaker struct {
	cb *cb.CircuitBreaker
}

// New constructs a Breaker identified by name.
func New(name string) *Breaker {
	settings := cb.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts cb.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
	}
	return &Breaker{cb: cb.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker, short-circuiting with cb.ErrOpenState
// when the breaker is open.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return b.cb.Execute(fn)
}

// State returns the breaker's current state name (closed/half-open/open).
func (b *Breaker) State() string {
	return b.cb.State().String()
}
