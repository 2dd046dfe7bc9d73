// Package tvstream is a client library for a proprietary WebSocket-based
// market-data service: it streams real-time and historical candles, quote
// snapshots, and multi-symbol tickers over a length-framed, JSON-over-
// WebSocket protocol with distinct "quote" and "chart" sessions.
package tvstream

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/marketfeed/tvstream/internal/config"
	"github.com/marketfeed/tvstream/internal/demux"
	"github.com/marketfeed/tvstream/internal/handshake"
	"github.com/marketfeed/tvstream/internal/telemetry"
	"github.com/marketfeed/tvstream/internal/transport"
	"github.com/marketfeed/tvstream/internal/validator"
)

// Client composes the frame codec, transport, handshake driver, and
// demultiplexer (components A-F) into the public operations of §4.G. One
// Client may back any number of concurrent streaming/backfill calls; each
// call owns its own Transport, per §3.3's Transport lifecycle.
type Client struct {
	opts      config.Options
	metrics   *telemetry.Registry
	logger    zerolog.Logger
	validator *validator.Validator
}

// NewClient validates opts (filling defaults per §6.3) and builds a Client.
// A nil prometheus.Registry disables metrics: the Client keeps a nil
// *telemetry.Registry, whose recording calls are no-ops.
func NewClient(opts config.Options, reg *prometheus.Registry, logger zerolog.Logger) (*Client, error) {
	opts, err := config.Validate(opts)
	if err != nil {
		return nil, err
	}
	var metrics *telemetry.Registry
	if reg != nil {
		metrics = telemetry.NewRegistry(reg)
	}

	v, err := validator.New(validator.Options{
		Endpoint:  opts.SymbolValidatorURL,
		Attempts:  opts.ValidatorAttempts,
		BaseDelay: opts.ValidatorBaseDelay,
		UserAgent: opts.UserAgent,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{opts: opts, metrics: metrics, logger: logger, validator: v}, nil
}

// pumpEvent carries one demux.Event down the ordered event channel a
// subscription reads from, or a terminal fatal error in its place. Exactly
// one fatal event, if any, is the last value sent before the channel closes.
type pumpEvent struct {
	demux.Event
	fatal error
}

// pump is the sole consumer of a Transport's Inbound() channel: it demuxes
// every envelope and republishes it in arrival order, preserving §5's
// "inbound event order exposed to the facade equals order parsed" guarantee.
func pump(tr *transport.Transport, metrics *telemetry.Registry) <-chan pumpEvent {
	out := make(chan pumpEvent, 64)
	go func() {
		defer close(out)
		for env := range tr.Inbound() {
			evt, _ := demux.Demux(env, metrics)
			if evt.ProtocolError != nil {
				out <- pumpEvent{Event: evt, fatal: &ProtocolError{Code: evt.ProtocolError.Code, Message: evt.ProtocolError.Message}}
				return
			}
			out <- pumpEvent{Event: evt}
		}
		if err := tr.Err(); err != nil {
			out <- pumpEvent{fatal: fmt.Errorf("%w: %v", ErrConnectionClosed, err)}
		}
	}()
	return out
}

func (c *Client) connect(ctx context.Context) (*transport.Transport, error) {
	return transport.Connect(ctx, transport.Options{
		Endpoint:     c.opts.Endpoint,
		UserAgent:    c.opts.UserAgent,
		PingInterval: c.opts.PingInterval,
		PingTimeout:  c.opts.PingTimeout,
		CloseTimeout: c.opts.CloseTimeout,
		Metrics:      c.metrics,
		Logger:       c.logger,
	})
}

// openChartSubscription validates symbol and interval, dials a Transport,
// and runs the full chart+quote opening sequence plus the add-symbol
// sub-sequence (§4.E steps 1-12). On any failure the Transport, if opened,
// is closed before returning.
func (c *Client) openChartSubscription(ctx context.Context, symbol string, interval Interval, barCount int) (*transport.Transport, handshake.Subscription, error) {
	if err := c.validateSymbol(ctx, symbol); err != nil {
		return nil, handshake.Subscription{}, err
	}

	tr, err := c.connect(ctx)
	if err != nil {
		return nil, handshake.Subscription{}, err
	}

	handshakeStart := time.Now()

	sessions := handshake.NewSessions()
	if err := handshake.Open(tr.Send, sessions); err != nil {
		tr.Close()
		return nil, handshake.Subscription{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	sub := handshake.NewSubscription(sessions, symbol, string(interval), barCount)
	if err := handshake.AddSymbol(tr.Send, sub, c.opts.VolumeStudyID); err != nil {
		tr.Close()
		return nil, handshake.Subscription{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	c.metrics.ObserveHandshake(time.Since(handshakeStart).Seconds())
	return tr, sub, nil
}

func (c *Client) openQuoteSubscription(ctx context.Context, symbol string) (*transport.Transport, handshake.Sessions, error) {
	if err := c.validateSymbol(ctx, symbol); err != nil {
		return nil, handshake.Sessions{}, err
	}

	tr, err := c.connect(ctx)
	if err != nil {
		return nil, handshake.Sessions{}, err
	}

	handshakeStart := time.Now()

	sessions := handshake.NewSessions()
	if err := handshake.Open(tr.Send, sessions); err != nil {
		tr.Close()
		return nil, handshake.Sessions{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	if err := handshake.AddQuoteOnlySymbol(tr.Send, sessions.Quote, symbol); err != nil {
		tr.Close()
		return nil, handshake.Sessions{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	c.metrics.ObserveHandshake(time.Since(handshakeStart).Seconds())
	return tr, sessions, nil
}

func (c *Client) openTickerSubscription(ctx context.Context, symbols []string) (*transport.Transport, handshake.Sessions, error) {
	result, err := c.validator.ValidateAll(ctx, symbols)
	if err != nil {
		return nil, handshake.Sessions{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if result != validator.OK {
		return nil, handshake.Sessions{}, fmt.Errorf("%w: %v", ErrInvalidSymbol, symbols)
	}

	tr, err := c.connect(ctx)
	if err != nil {
		return nil, handshake.Sessions{}, err
	}

	handshakeStart := time.Now()

	sessions := handshake.NewSessions()
	if err := handshake.Open(tr.Send, sessions); err != nil {
		tr.Close()
		return nil, handshake.Sessions{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	if err := handshake.AddTickerSymbols(tr.Send, sessions.Quote, symbols); err != nil {
		tr.Close()
		return nil, handshake.Sessions{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	c.metrics.ObserveHandshake(time.Since(handshakeStart).Seconds())
	return tr, sessions, nil
}

func (c *Client) validateSymbol(ctx context.Context, symbol string) error {
	result, err := c.validator.Validate(ctx, symbol)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if result != validator.OK {
		return fmt.Errorf("%w: %s", ErrInvalidSymbol, symbol)
	}
	return nil
}

// CandleStream is the lazy sequence of Candle values returned by
// StreamCandles. Candles() is closed when the stream reaches CLOSED or
// FAILED; Err() reports the terminal cause, if any, once closed.
type CandleStream struct {
	tr        *transport.Transport
	candles   chan Candle
	state     int32
	mu        sync.Mutex
	finalErr  error
	closeOnce sync.Once
}

func (s *CandleStream) Candles() <-chan Candle { return s.candles }

func (s *CandleStream) State() State { return State(atomic.LoadInt32(&s.state)) }

func (s *CandleStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalErr
}

// Close is idempotent. It writes a close frame, bounded by the Transport's
// configured CloseTimeout (default 10s), and then releases the socket; no
// separate one-second bound applies.
func (s *CandleStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.tr.Close()
	})
	return nil
}

func (s *CandleStream) setErr(err error) {
	s.mu.Lock()
	if s.finalErr == nil {
		s.finalErr = err
	}
	s.mu.Unlock()
}

// StreamCandles opens a chart+quote subscription for symbol/interval and
// returns a lazy sequence of Candle: historical backfill bars first (from
// timescale_update), then live bars as they arrive (from du), per §4.G.
func (c *Client) StreamCandles(ctx context.Context, symbol string, interval string, barCount int) (*CandleStream, error) {
	iv, err := ValidateInterval(interval)
	if err != nil {
		return nil, err
	}

	tr, sub, err := c.openChartSubscription(ctx, symbol, iv, barCount)
	if err != nil {
		return nil, err
	}

	s := &CandleStream{tr: tr, candles: make(chan Candle, 64)}
	atomic.StoreInt32(&s.state, int32(StateStreaming))

	go func() {
		defer close(s.candles)
		for evt := range pump(tr, c.metrics) {
			if evt.fatal != nil {
				s.setErr(evt.fatal)
				atomic.StoreInt32(&s.state, int32(StateFailed))
				tr.Close()
				return
			}
			if evt.Series == nil || evt.Series.SeriesKey != sub.SeriesKey {
				continue
			}
			for _, dc := range evt.Series.Candles {
				select {
				case s.candles <- candleFromDemux(dc):
				case <-ctx.Done():
					tr.Close()
					return
				}
			}
		}
		atomic.CompareAndSwapInt32(&s.state, int32(StateStreaming), int32(StateClosed))
	}()

	return s, nil
}

func candleFromDemux(c demux.Candle) Candle {
	return Candle{
		Timestamp: int64(c.Timestamp),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

// FetchHistoricalCandles runs the same subscription as StreamCandles but
// collects bars synchronously until the first series_completed has been
// observed and at least one Candle has been collected, within the
// configured historical timeout (default 30s). The returned slice is
// deduplicated (last-write-wins by timestamp) and sorted ascending.
func (c *Client) FetchHistoricalCandles(ctx context.Context, symbol string, interval string, barCount int) ([]Candle, error) {
	start := time.Now()
	defer func() { c.metrics.ObserveBackfill(time.Since(start).Seconds()) }()

	iv, err := ValidateInterval(interval)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.HistoricalTimeout)
	defer cancel()

	tr, sub, err := c.openChartSubscription(ctx, symbol, iv, barCount)
	if err != nil {
		return nil, err
	}
	defer tr.Close()

	events := pump(tr, c.metrics)
	collected := map[int64]Candle{}
	seriesCompleted := false

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return finalizeHistorical(collected, seriesCompleted)
			}
			if evt.fatal != nil {
				return nil, evt.fatal
			}
			if evt.Series != nil && evt.Series.SeriesKey == sub.SeriesKey {
				for _, dc := range evt.Series.Candles {
					cndl := candleFromDemux(dc)
					collected[cndl.Timestamp] = cndl
				}
			}
			if evt.SeriesCompleted != nil {
				seriesCompleted = true
			}
			if seriesCompleted && len(collected) > 0 {
				return sortedCandles(collected), nil
			}
		case <-ctx.Done():
			if len(collected) == 0 {
				return nil, ErrNoData
			}
			return nil, ErrTimeout
		}
	}
}

func finalizeHistorical(collected map[int64]Candle, seriesCompleted bool) ([]Candle, error) {
	if len(collected) == 0 {
		return nil, ErrNoData
	}
	if !seriesCompleted {
		return nil, ErrTimeout
	}
	return sortedCandles(collected), nil
}

func sortedCandles(collected map[int64]Candle) []Candle {
	out := make([]Candle, 0, len(collected))
	for _, c := range collected {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
