// Package validator implements the symbol pre-flight check of spec §4.H:
// an HTTPS GET against the upstream symbol-lookup endpoint, retried with
// exponential backoff and guarded by a circuit breaker and per-host rate
// limiter (SPEC_FULL §4.K).
package validator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketfeed/tvstream/internal/breaker"
	"github.com/marketfeed/tvstream/internal/ratelimit"
	"github.com/marketfeed/tvstream/internal/telemetry"
)

// Result is the outcome of validating one symbol.
type Result int

const (
	Invalid Result = iota
	OK
)

// Options configures a Validator. Attempts and BaseDelay drive the manual
// exponential-backoff loop; the breaker/limiter are orthogonal concerns
// layered on top (SPEC_FULL §4.K).
type Options struct {
	Endpoint  string
	Attempts  int
	BaseDelay time.Duration
	UserAgent string
	Metrics   *telemetry.Registry
	Logger    zerolog.Logger
}

// Validator checks symbols against the upstream HTTPS endpoint.
type Validator struct {
	opts    Options
	client  *http.Client
	breaker *breaker.Breaker
	limiter *ratelimit.Limiter
	host    string
}

// New constructs a Validator. It fails fast if Endpoint does not parse.
func New(opts Options) (*Validator, error) {
	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("validator: invalid endpoint %q: %w", opts.Endpoint, err)
	}
	return &Validator{
		opts: opts,
		client: &http.Client{
			Timeout: 10 * time.Second,
			// A 301 is classified as OK itself, so redirects are not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		breaker: breaker.New("symbol-validator"),
		limiter: ratelimit.New(5, 5),
		host:    u.Host,
	}, nil
}

// Validate issues the HTTPS GET for one symbol, making at most Attempts
// attempts with exponential backoff (BaseDelay * 2^(n-1) before the n-th
// retry). Status 200/301 is OK, 404 is Invalid, anything else is transient
// and retried.
func (v *Validator) Validate(ctx context.Context, symbol string) (Result, error) {
	var lastErr error

	for attempt := 0; attempt < v.opts.Attempts; attempt++ {
		if attempt > 0 {
			delay := v.opts.BaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Invalid, ctx.Err()
			}
		}

		if err := v.limiter.Wait(ctx, v.host); err != nil {
			return Invalid, fmt.Errorf("validator: rate limit wait: %w", err)
		}

		result, outcome, err := v.attempt(ctx, symbol)
		v.opts.Metrics.IncValidatorAttempt(outcome)
		if err == nil {
			return result, nil
		}
		lastErr = err
		v.opts.Logger.Debug().Err(err).Str("symbol", symbol).Int("attempt", attempt+1).Msg("symbol validator attempt failed")
	}

	return Invalid, fmt.Errorf("validator: exhausted %d attempts for %s: %w", v.opts.Attempts, symbol, lastErr)
}

// attempt runs one HTTP round-trip through the circuit breaker, returning
// the metrics outcome label alongside the result so Validate can record it
// even on a breaker short-circuit.
func (v *Validator) attempt(ctx context.Context, symbol string) (Result, string, error) {
	raw, err := v.breaker.Execute(func() (interface{}, error) {
		return v.doRequest(ctx, symbol)
	})
	if err != nil {
		return Invalid, "transient", err
	}
	status := raw.(int)

	switch status {
	case http.StatusOK, http.StatusMovedPermanently:
		return OK, "ok", nil
	case http.StatusNotFound:
		return Invalid, "invalid", nil
	default:
		return Invalid, "transient", fmt.Errorf("validator: unexpected status %d", status)
	}
}

func (v *Validator) doRequest(ctx context.Context, symbol string) (int, error) {
	reqURL := v.opts.Endpoint + "?symbol=" + url.QueryEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("validator: build request: %w", err)
	}
	req.Header.Set("User-Agent", v.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("validator: request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// ValidateAll validates each symbol in symbols and reports OK iff every one
// succeeds, per §4.H's multi-symbol form.
func (v *Validator) ValidateAll(ctx context.Context, symbols []string) (Result, error) {
	for _, s := range symbols {
		result, err := v.Validate(ctx, s)
		if err != nil {
			return Invalid, err
		}
		if result != OK {
			return Invalid, nil
		}
	}
	return OK, nil
}
