package tvstream

// Candle is one OHLCV bar. Timestamp is epoch seconds. Volume is zero for
// markets without volume data, never an absent field.
type Candle struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// QuoteSnapshot is a point-in-time price/metadata snapshot for one symbol.
// Optional fields use pointers so that "absent" and "zero" are distinguishable.
type QuoteSnapshot struct {
	Symbol         string
	CurrentPrice   *float64
	Change         *float64
	ChangePercent  *float64
	Volume         *float64
	LastTradeTime  *float64
	Fields         map[string]interface{}
}

// SeriesUpdate aggregates the candles carried by a single inbound du or
// timescale_update envelope, keyed by the series key the server tagged them
// with.
type SeriesUpdate struct {
	SessionID string
	Series    map[string][]Candle
}

// RawEvent is an unprojected, decoded JSON envelope, exposed to callers of
// StreamRaw and to any verb the demultiplexer does not recognize.
type RawEvent struct {
	Method string
	Params []interface{}
}
