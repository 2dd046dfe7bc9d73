package tvstream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/marketfeed/tvstream/internal/demux"
	"github.com/marketfeed/tvstream/internal/transport"
)

// QuoteStream is the lazy sequence of QuoteSnapshot values returned by
// StreamQuotes. It uses only the quote-side subscription; du/timescale_update
// envelopes never arrive since no chart series is created.
type QuoteStream struct {
	tr        *transport.Transport
	quotes    chan QuoteSnapshot
	state     int32
	mu        sync.Mutex
	finalErr  error
	closeOnce sync.Once
}

func (s *QuoteStream) Quotes() <-chan QuoteSnapshot { return s.quotes }

func (s *QuoteStream) State() State { return State(atomic.LoadInt32(&s.state)) }

func (s *QuoteStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalErr
}

func (s *QuoteStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.tr.Close()
	})
	return nil
}

func (s *QuoteStream) setErr(err error) {
	s.mu.Lock()
	if s.finalErr == nil {
		s.finalErr = err
	}
	s.mu.Unlock()
}

// StreamQuotes opens a quote-only subscription for symbol and returns a
// lazy sequence of QuoteSnapshot projected from qsd envelopes, per §4.G.
func (c *Client) StreamQuotes(ctx context.Context, symbol string) (*QuoteStream, error) {
	tr, _, err := c.openQuoteSubscription(ctx, symbol)
	if err != nil {
		return nil, err
	}

	s := &QuoteStream{tr: tr, quotes: make(chan QuoteSnapshot, 64)}
	atomic.StoreInt32(&s.state, int32(StateStreaming))

	go func() {
		defer close(s.quotes)
		for evt := range pump(tr, c.metrics) {
			if evt.fatal != nil {
				s.setErr(evt.fatal)
				atomic.StoreInt32(&s.state, int32(StateFailed))
				tr.Close()
				return
			}
			if evt.Quote == nil {
				continue
			}
			select {
			case s.quotes <- quoteFromDemux(evt.Quote):
			case <-ctx.Done():
				tr.Close()
				return
			}
		}
		atomic.CompareAndSwapInt32(&s.state, int32(StateStreaming), int32(StateClosed))
	}()

	return s, nil
}

func quoteFromDemux(q *demux.QuoteUpdate) QuoteSnapshot {
	snap := QuoteSnapshot{Symbol: q.Symbol, Fields: q.Fields}
	if v, ok := floatField(q.Fields, "lp"); ok {
		snap.CurrentPrice = &v
	}
	if v, ok := floatField(q.Fields, "ch"); ok {
		snap.Change = &v
	}
	if v, ok := floatField(q.Fields, "chp"); ok {
		snap.ChangePercent = &v
	}
	if v, ok := floatField(q.Fields, "volume"); ok {
		snap.Volume = &v
	}
	if v, ok := floatField(q.Fields, "lp_time"); ok {
		snap.LastTradeTime = &v
	}
	return snap
}

func floatField(fields map[string]interface{}, key string) (float64, bool) {
	if fields == nil {
		return 0, false
	}
	v, ok := fields[key].(float64)
	return v, ok
}

// TickerStream is the lazy sequence of raw envelopes returned by
// StreamLatestTradeInfo, the multi-symbol ticker form of §4.E/§4.G.
type TickerStream struct {
	tr        *transport.Transport
	events    chan RawEvent
	state     int32
	mu        sync.Mutex
	finalErr  error
	closeOnce sync.Once
}

func (s *TickerStream) Events() <-chan RawEvent { return s.events }

func (s *TickerStream) State() State { return State(atomic.LoadInt32(&s.state)) }

func (s *TickerStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalErr
}

func (s *TickerStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.tr.Close()
	})
	return nil
}

// StreamLatestTradeInfo opens the multi-symbol ticker form (no chart
// series) and returns the raw decoded envelopes; callers project
// QuoteSnapshot themselves, or via quoteFromDemux-equivalent logic, since
// the core makes no assumption about which fields a ticker consumer wants.
func (c *Client) StreamLatestTradeInfo(ctx context.Context, symbols []string) (*TickerStream, error) {
	tr, _, err := c.openTickerSubscription(ctx, symbols)
	if err != nil {
		return nil, err
	}

	s := &TickerStream{tr: tr, events: make(chan RawEvent, 64)}
	atomic.StoreInt32(&s.state, int32(StateStreaming))

	go func() {
		defer close(s.events)
		for evt := range pump(tr, c.metrics) {
			if evt.fatal != nil {
				s.mu.Lock()
				if s.finalErr == nil {
					s.finalErr = evt.fatal
				}
				s.mu.Unlock()
				atomic.StoreInt32(&s.state, int32(StateFailed))
				tr.Close()
				return
			}
			select {
			case s.events <- RawEvent{Method: evt.Raw.Method, Params: evt.Raw.Params}:
			case <-ctx.Done():
				tr.Close()
				return
			}
		}
		atomic.CompareAndSwapInt32(&s.state, int32(StateStreaming), int32(StateClosed))
	}()

	return s, nil
}
