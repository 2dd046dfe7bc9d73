// Package demux projects decoded {"m":...,"p":[...]} envelopes from the
// Transport into the typed events of SPEC_FULL §4.F. It is independent of
// handshake progress: envelopes are parsed and emitted in arrival order
// regardless of what step the driver is on.
package demux

import (
	"encoding/json"
	"fmt"

	"github.com/marketfeed/tvstream/internal/telemetry"
	"github.com/marketfeed/tvstream/internal/transport"
)

// Verbs recognized by the demultiplexer.
const (
	VerbDU              = "du"
	VerbTimescaleUpdate = "timescale_update"
	VerbQSD             = "qsd"
	VerbQuoteCompleted  = "quote_completed"
	VerbSeriesLoading   = "series_loading"
	VerbSeriesCompleted = "series_completed"
	VerbProtocolError   = "protocol_error"
)

// SeriesUpdate carries the candles one du/timescale_update envelope held for
// a single series key.
type SeriesUpdate struct {
	SeriesKey string
	Candles   []Candle
	Historical bool // true for timescale_update, false for live du
}

// Candle is one OHLCV bar exactly as projected off the wire (§4.F table).
type Candle struct {
	Timestamp float64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// QuoteUpdate is a qsd envelope projected to its symbol and numeric fields.
type QuoteUpdate struct {
	Symbol string
	Fields map[string]interface{}
}

// QuoteCompleted marks that the server has accepted a quote-side
// subscription for one symbol.
type QuoteCompleted struct {
	Symbol string
}

// SeriesLoading and SeriesCompleted mark chart-side readiness transitions;
// neither carries a payload.
type SeriesLoading struct{}
type SeriesCompleted struct{}

// Event is the sum type emitted by Demux. For a recognized verb that
// projects, exactly one of the typed fields is non-nil, matching the verb
// that produced it; Raw is always populated so a raw consumer (such as
// StreamLatestTradeInfo) can see everything.
type Event struct {
	Raw             transport.Envelope
	Series          *SeriesUpdate
	Quote           *QuoteUpdate
	QuoteCompleted  *QuoteCompleted
	SeriesLoading   *SeriesLoading
	SeriesCompleted *SeriesCompleted
	ProtocolError   *ProtocolError
}

// ProtocolError mirrors a protocol_error envelope; it is fatal for the
// Transport that received it.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("tvstream: protocol error: %s", e.Message)
	}
	return fmt.Sprintf("tvstream: protocol error [%s]: %s", e.Code, e.Message)
}

// Demux projects one decoded envelope into an Event. ok is false for verbs
// the core does not recognize and for recognized verbs whose params do not
// project; in both cases the returned Event still carries env in Raw.
func Demux(env transport.Envelope, metrics *telemetry.Registry) (Event, bool) {
	metrics.IncDemuxEvent(env.Method)

	evt := Event{Raw: env}

	switch env.Method {
	case VerbDU:
		su, err := projectSeriesUpdate(env.Params, false)
		if err != nil {
			return evt, false
		}
		evt.Series = su
		return evt, true

	case VerbTimescaleUpdate:
		su, err := projectSeriesUpdate(env.Params, true)
		if err != nil {
			return evt, false
		}
		evt.Series = su
		return evt, true

	case VerbQSD:
		qu, err := projectQuoteUpdate(env.Params)
		if err != nil {
			return evt, false
		}
		evt.Quote = qu
		return evt, true

	case VerbQuoteCompleted:
		symbol, ok := symbolFromParams(env.Params)
		if !ok {
			return evt, false
		}
		evt.QuoteCompleted = &QuoteCompleted{Symbol: symbol}
		return evt, true

	case VerbSeriesLoading:
		evt.SeriesLoading = &SeriesLoading{}
		return evt, true

	case VerbSeriesCompleted:
		evt.SeriesCompleted = &SeriesCompleted{}
		return evt, true

	case VerbProtocolError:
		pe := projectProtocolError(env.Params)
		evt.ProtocolError = pe
		return evt, true

	default:
		return evt, false
	}
}

// projectSeriesUpdate extracts the candles of one series key in p[1], per the
// du/timescale_update row of §4.F: the first key (in map iteration order)
// whose body carries an "s" item list. When p[1] holds several such keys,
// only one of them is projected and which one is not defined. The series key
// a caller cares about is filtered by the facade, not here.
func projectSeriesUpdate(params []interface{}, historical bool) (*SeriesUpdate, error) {
	if len(params) < 2 {
		return nil, fmt.Errorf("demux: series update: want at least 2 params, got %d", len(params))
	}
	seriesMap, ok := params[1].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("demux: series update: p[1] is not an object")
	}

	// The core only ever opens one series per Transport (sds_1), but the
	// wire can in principle carry others; return the first key with an item
	// list rather than hardcoding "sds_1" here.
	for key, raw := range seriesMap {
		seriesBody, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		itemsRaw, ok := seriesBody["s"].([]interface{})
		if !ok {
			continue
		}

		candles := make([]Candle, 0, len(itemsRaw))
		for _, itemRaw := range itemsRaw {
			item, ok := itemRaw.(map[string]interface{})
			if !ok {
				continue
			}
			vRaw, ok := item["v"].([]interface{})
			if !ok {
				continue
			}
			c, err := candleFromV(vRaw)
			if err != nil {
				continue
			}
			candles = append(candles, c)
		}

		return &SeriesUpdate{SeriesKey: key, Candles: candles, Historical: historical}, nil
	}

	return nil, fmt.Errorf("demux: series update: no recognizable series body")
}

// candleFromV maps a v array to a Candle per §4.F: v[0..4] are
// timestamp/open/high/low/close; v[5] is volume, defaulted to 0 when the
// array is shorter (volume-free markets).
func candleFromV(v []interface{}) (Candle, error) {
	if len(v) < 5 {
		return Candle{}, fmt.Errorf("demux: candle: v has %d elements, want at least 5", len(v))
	}
	nums := make([]float64, 6)
	for i := 0; i < len(v) && i < 6; i++ {
		f, ok := toFloat(v[i])
		if !ok {
			return Candle{}, fmt.Errorf("demux: candle: v[%d] is not numeric", i)
		}
		nums[i] = f
	}
	return Candle{
		Timestamp: nums[0],
		Open:      nums[1],
		High:      nums[2],
		Low:       nums[3],
		Close:     nums[4],
		Volume:    nums[5],
	}, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// projectQuoteUpdate extracts symbol and field map from a qsd envelope:
// symbol = p[1].n, fields = p[1].v.
func projectQuoteUpdate(params []interface{}) (*QuoteUpdate, error) {
	if len(params) < 2 {
		return nil, fmt.Errorf("demux: qsd: want at least 2 params, got %d", len(params))
	}
	body, ok := params[1].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("demux: qsd: p[1] is not an object")
	}
	symbol, _ := body["n"].(string)
	fields, _ := body["v"].(map[string]interface{})
	return &QuoteUpdate{Symbol: symbol, Fields: fields}, nil
}

func symbolFromParams(params []interface{}) (string, bool) {
	if len(params) < 2 {
		return "", false
	}
	symbol, ok := params[1].(string)
	return symbol, ok
}

func projectProtocolError(params []interface{}) *ProtocolError {
	pe := &ProtocolError{}
	if len(params) == 0 {
		return pe
	}
	if body, ok := params[0].(map[string]interface{}); ok {
		if code, ok := body["code"].(string); ok {
			pe.Code = code
		}
		if msg, ok := body["message"].(string); ok {
			pe.Message = msg
		}
		return pe
	}
	if msg, ok := params[0].(string); ok {
		pe.Message = msg
	}
	return pe
}
