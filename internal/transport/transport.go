// Package transport owns a single WebSocket connection to the upstream
// market-data service: framing, the single-writer invariant, heartbeat
// echo, and an inbound event channel (SPEC_FULL §4.D).
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/marketfeed/tvstream/internal/frame"
	"github.com/marketfeed/tvstream/internal/telemetry"
)

// Envelope is a decoded {"m":...,"p":[...]} frame payload.
type Envelope struct {
	Method string
	Params []interface{}
}

// Options configures Connect. All fields have sensible defaults applied by
// the facade before Connect is called; Connect itself does not default
// anything so it stays easy to unit test.
type Options struct {
	Endpoint     string
	UserAgent    string
	PingInterval time.Duration
	PingTimeout  time.Duration
	CloseTimeout time.Duration
	Metrics      *telemetry.Registry
	Logger       zerolog.Logger
}

// Transport owns one WebSocket. Exactly one writer mutates the socket at a
// time (writeMu); a single background goroutine is the sole reader and
// feeds decoded, non-heartbeat envelopes to Inbound().
type Transport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	inbound chan Envelope

	closeOnce sync.Once
	closed    chan struct{}

	mu       sync.Mutex
	finalErr error

	opts Options
}

// Connect dials the upstream endpoint with the pinned header set (Origin,
// User-Agent, Accept-Encoding) and permessage-deflate enabled, then starts
// the read loop and ping loop.
func Connect(ctx context.Context, opts Options) (*Transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 30 * time.Second,
		EnableCompression: true,
	}

	header := http.Header{}
	header.Set("Origin", "https://www.tradingview.com")
	header.Set("User-Agent", opts.UserAgent)
	header.Set("Accept-Encoding", "gzip, deflate, br, zstd")

	conn, _, err := dialer.DialContext(ctx, opts.Endpoint, header)
	if err != nil {
		opts.Metrics.IncConnections("failure")
		return nil, fmt.Errorf("%w: dial %s: %v", errTransport, opts.Endpoint, err)
	}
	opts.Metrics.IncConnections("success")

	t := &Transport{
		conn:    conn,
		inbound: make(chan Envelope, 64),
		closed:  make(chan struct{}),
		opts:    opts,
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(opts.PingTimeout + opts.PingInterval))
	})
	_ = conn.SetReadDeadline(time.Now().Add(opts.PingTimeout + opts.PingInterval))

	go t.readLoop()
	go t.pingLoop()

	return t, nil
}

// Inbound returns the channel of decoded, non-heartbeat envelopes. It is
// closed when the Transport closes (on caller Close(), server close, or a
// keep-alive failure); a closed channel with no error on Err() means a
// clean shutdown.
func (t *Transport) Inbound() <-chan Envelope {
	return t.inbound
}

// Err returns the terminal error that caused the Transport to stop
// reading, if any. Safe to call after Inbound() is closed.
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finalErr
}

// Send builds the envelope, frames it, and writes it through the single
// writer lock.
func (t *Transport) Send(method string, params []interface{}) error {
	select {
	case <-t.closed:
		return fmt.Errorf("%w: send %s", errNotConnected, method)
	default:
	}

	payload, err := json.Marshal(struct {
		M string        `json:"m"`
		P []interface{} `json:"p"`
	}{M: method, P: params})
	if err != nil {
		return fmt.Errorf("%w: marshal envelope for %s: %v", errTransport, method, err)
	}
	return t.writeFramed(payload)
}

func (t *Transport) writeFramed(payload []byte) error {
	framed := frame.Encode(payload)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	select {
	case <-t.closed:
		return fmt.Errorf("%w: write", errNotConnected)
	default:
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return fmt.Errorf("%w: set write deadline: %v", errTransport, err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, framed); err != nil {
		return fmt.Errorf("%w: write message: %v", errTransport, err)
	}
	t.opts.Metrics.IncFrames("out")
	return nil
}

// readLoop is the sole sender to inbound, so it is also the only goroutine
// allowed to close it: closing here, after the read loop has fully exited,
// guarantees no send-on-closed-channel race with handlePayload's select.
func (t *Transport) readLoop() {
	defer close(t.inbound)
	defer t.shutdown(nil)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.shutdown(fmt.Errorf("%w: %v", errConnectionClosed, err))
			return
		}

		r := frame.NewReader(bytes.NewReader(data))
		for {
			payload, err := r.Next()
			if err != nil {
				break
			}
			t.opts.Metrics.IncFrames("in")
			t.handlePayload(payload)
		}
	}
}

func (t *Transport) handlePayload(payload []byte) {
	if frame.IsHeartbeat(payload) {
		t.opts.Metrics.IncHeartbeats()
		if err := t.writeFramed(payload); err != nil {
			t.opts.Logger.Debug().Err(err).Msg("failed to echo heartbeat")
		}
		return
	}

	var env struct {
		M string        `json:"m"`
		P []interface{} `json:"p"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		t.opts.Logger.Debug().Err(err).Bytes("payload", payload).Msg("dropping unparseable frame")
		return
	}

	select {
	case t.inbound <- Envelope{Method: env.M, Params: env.P}:
	case <-t.closed:
	}
}

func (t *Transport) pingLoop() {
	ticker := time.NewTicker(t.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			_ = t.conn.SetWriteDeadline(time.Now().Add(t.opts.PingTimeout))
			err := t.conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()
			if err != nil {
				t.shutdown(fmt.Errorf("%w: ping: %v", errConnectionClosed, err))
				return
			}
		}
	}
}

// shutdown signals every goroutine to stop (close(t.closed)) and releases
// the socket. It never closes inbound: only readLoop, the sole sender, does
// that, once it has actually stopped running (see readLoop's defers).
func (t *Transport) shutdown(err error) {
	t.closeOnce.Do(func() {
		if err != nil {
			t.mu.Lock()
			t.finalErr = err
			t.mu.Unlock()
		}
		close(t.closed)
		_ = t.conn.Close()
	})
}

// Close is idempotent: it releases the underlying WebSocket regardless of
// which goroutine observes failure first, within the configured close
// timeout.
func (t *Transport) Close() error {
	deadline := time.Now().Add(t.opts.CloseTimeout)
	t.writeMu.Lock()
	_ = t.conn.SetWriteDeadline(deadline)
	_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()

	t.shutdown(nil)
	return nil
}
