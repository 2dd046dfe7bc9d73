// Package handshake drives the fixed opening sequence and the per-symbol
// add-symbol sub-sequence against an injected send function, decoupling the
// protocol steps from any live Transport so they can be tested with a
// recording fake (SPEC_FULL §9's "callable-based DI" note).
package handshake

import (
	"fmt"

	"github.com/marketfeed/tvstream/internal/protocol"
	"github.com/marketfeed/tvstream/internal/session"
)

// Sender is the seam between the driver and a live Transport: build the
// envelope, frame it, write it. Implemented by *transport.Transport.Send.
type Sender func(method string, params []interface{}) error

// Sessions holds the two session identifiers minted for one Transport. They
// never change once Open returns successfully.
type Sessions struct {
	Chart string
	Quote string
}

// NewSessions mints a fresh chart/quote session pair.
func NewSessions() Sessions {
	return Sessions{
		Chart: session.New("cs_"),
		Quote: session.New("qs_"),
	}
}

// Open runs the fixed six-step opening sequence (§4.E steps 1-6): auth,
// locale, create chart session, create quote session, set quote fields,
// hibernate. Any send failure here is fatal for the Transport.
func Open(send Sender, s Sessions) error {
	type step struct {
		name   string
		method string
		params []interface{}
	}

	authMethod, authParams := protocol.SetAuthToken()
	localeMethod, localeParams := protocol.SetLocale()
	chartMethod, chartParams := protocol.ChartCreateSession(s.Chart)
	quoteMethod, quoteParams := protocol.QuoteCreateSession(s.Quote)
	fieldsMethod, fieldsParams := protocol.QuoteSetFields(s.Quote)
	hibernateMethod, hibernateParams := protocol.QuoteHibernateAll(s.Quote)

	steps := []step{
		{"set_auth_token", authMethod, authParams},
		{"set_locale", localeMethod, localeParams},
		{"chart_create_session", chartMethod, chartParams},
		{"quote_create_session", quoteMethod, quoteParams},
		{"quote_set_fields", fieldsMethod, fieldsParams},
		{"quote_hibernate_all", hibernateMethod, hibernateParams},
	}

	for _, s := range steps {
		if err := send(s.method, s.params); err != nil {
			return fmt.Errorf("handshake: opening step %s: %w", s.name, err)
		}
	}
	return nil
}

// Subscription identifies one chart-series subscription's derived keys.
type Subscription struct {
	Sessions
	Symbol    string
	Interval  string
	BarCount  int
	SeriesKey string // sds_1
	SymbolKey string // sds_sym_1
}

// NewSubscription derives the fixed series/symbol keys for one subscription.
// The core only ever opens one series per Transport, so the keys are fixed
// literals rather than counters.
func NewSubscription(s Sessions, symbol, interval string, barCount int) Subscription {
	return Subscription{
		Sessions:  s,
		Symbol:    symbol,
		Interval:  interval,
		BarCount:  barCount,
		SeriesKey: "sds_1",
		SymbolKey: "sds_sym_1",
	}
}

// AddSymbol runs the add-symbol sub-sequence (§4.E steps 7-12): quote
// add-symbol, resolve, create series, quote fast-symbol, create the volume
// study, and re-hibernate. volumeStudyID is configurable per SPEC_FULL §9.1.
func AddSymbol(send Sender, sub Subscription, volumeStudyID string) error {
	method, params := protocol.QuoteAddSymbols(sub.Quote, sub.Symbol)
	if err := send(method, params); err != nil {
		return fmt.Errorf("handshake: quote_add_symbols: %w", err)
	}

	method, params = protocol.ResolveSymbol(sub.Chart, sub.SymbolKey, sub.Symbol)
	if err := send(method, params); err != nil {
		return fmt.Errorf("handshake: resolve_symbol: %w", err)
	}

	method, params = protocol.CreateSeries(sub.Chart, sub.SeriesKey, sub.SymbolKey, sub.Interval, sub.BarCount)
	if err := send(method, params); err != nil {
		return fmt.Errorf("handshake: create_series: %w", err)
	}

	method, params = protocol.QuoteFastSymbols(sub.Quote, sub.Symbol)
	if err := send(method, params); err != nil {
		return fmt.Errorf("handshake: quote_fast_symbols: %w", err)
	}

	method, params = protocol.CreateStudy(sub.Chart, sub.SeriesKey, volumeStudyID)
	if err := send(method, params); err != nil {
		return fmt.Errorf("handshake: create_study: %w", err)
	}

	// Best-effort: spec marks the second quote_hibernate_all as not known to
	// be strictly required, so its send error is discarded: neither returned
	// nor logged.
	rehibernate(send, sub.Quote)
	return nil
}

// AddQuoteOnlySymbol runs the quote-side-only subscription used by
// StreamQuotes: add-symbol, fast-symbol, hibernate, with no chart series.
func AddQuoteOnlySymbol(send Sender, quoteSession, symbol string) error {
	method, params := protocol.QuoteAddSymbols(quoteSession, symbol)
	if err := send(method, params); err != nil {
		return fmt.Errorf("handshake: quote_add_symbols: %w", err)
	}

	method, params = protocol.QuoteFastSymbols(quoteSession, symbol)
	if err := send(method, params); err != nil {
		return fmt.Errorf("handshake: quote_fast_symbols: %w", err)
	}

	rehibernate(send, quoteSession)
	return nil
}

// AddTickerSymbols runs the multi-symbol ticker form (§4.E): extended
// add-symbol per symbol, then one batched fast-symbol call, then hibernate.
// No chart series is created.
func AddTickerSymbols(send Sender, quoteSession string, symbols []string) error {
	for _, sym := range symbols {
		method, params := protocol.QuoteAddSymbolsTicker(quoteSession, sym)
		if err := send(method, params); err != nil {
			return fmt.Errorf("handshake: quote_add_symbols(ticker) for %s: %w", sym, err)
		}
	}

	method, params := protocol.QuoteFastSymbols(quoteSession, symbols...)
	if err := send(method, params); err != nil {
		return fmt.Errorf("handshake: quote_fast_symbols(batched): %w", err)
	}

	rehibernate(send, quoteSession)
	return nil
}

func rehibernate(send Sender, quoteSession string) {
	method, params := protocol.QuoteHibernateAll(quoteSession)
	_ = send(method, params)
}
