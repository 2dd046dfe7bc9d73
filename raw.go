package tvstream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/marketfeed/tvstream/internal/transport"
)

// RawStream is the unprojected lazy sequence of decoded envelopes returned
// by StreamRaw, bypassing the demultiplexer's verb projection entirely.
// Used for debugging and integration per §4.G.
type RawStream struct {
	tr        *transport.Transport
	events    chan RawEvent
	state     int32
	mu        sync.Mutex
	finalErr  error
	closeOnce sync.Once
}

func (s *RawStream) Events() <-chan RawEvent { return s.events }

func (s *RawStream) State() State { return State(atomic.LoadInt32(&s.state)) }

func (s *RawStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalErr
}

func (s *RawStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.tr.Close()
	})
	return nil
}

// StreamRaw opens a chart+quote subscription for symbol/interval, exactly
// like StreamCandles, but yields every decoded envelope verbatim instead of
// projecting candles.
func (c *Client) StreamRaw(ctx context.Context, symbol string, interval string, barCount int) (*RawStream, error) {
	iv, err := ValidateInterval(interval)
	if err != nil {
		return nil, err
	}

	tr, _, err := c.openChartSubscription(ctx, symbol, iv, barCount)
	if err != nil {
		return nil, err
	}

	s := &RawStream{tr: tr, events: make(chan RawEvent, 64)}
	atomic.StoreInt32(&s.state, int32(StateStreaming))

	go func() {
		defer close(s.events)
		for env := range tr.Inbound() {
			select {
			case s.events <- RawEvent{Method: env.Method, Params: env.Params}:
			case <-ctx.Done():
				tr.Close()
				return
			}
		}
		if err := tr.Err(); err != nil {
			s.mu.Lock()
			s.finalErr = err
			s.mu.Unlock()
			atomic.StoreInt32(&s.state, int32(StateFailed))
			return
		}
		atomic.CompareAndSwapInt32(&s.state, int32(StateStreaming), int32(StateClosed))
	}()

	return s, nil
}
