// Package protocol builds the method/params pairs for each verb the
// upstream market-data service expects, matching the exact parameter order
// of §4.C. Callers combine a (method, params) pair with Build to get the
// compact {"m":<verb>,"p":[...]} wire form, field order m before p.
package protocol

import "encoding/json"

// Envelope is the JSON-over-WebSocket message shape.
type Envelope struct {
	Method string        `json:"m"`
	Params []interface{} `json:"p"`
}

// Build marshals a method/params pair to its compact wire form.
func Build(method string, params []interface{}) ([]byte, error) {
	return json.Marshal(Envelope{Method: method, Params: params})
}

// Verbs used by the handshake and subscription driver.
const (
	VerbSetAuthToken       = "set_auth_token"
	VerbSetLocale          = "set_locale"
	VerbChartCreateSession = "chart_create_session"
	VerbQuoteCreateSession = "quote_create_session"
	VerbQuoteSetFields     = "quote_set_fields"
	VerbQuoteAddSymbols    = "quote_add_symbols"
	VerbQuoteFastSymbols   = "quote_fast_symbols"
	VerbQuoteHibernateAll  = "quote_hibernate_all"
	VerbResolveSymbol      = "resolve_symbol"
	VerbCreateSeries       = "create_series"
	VerbCreateStudy        = "create_study"
)

// UnauthorizedToken is the placeholder auth token sent as the very first
// outbound frame; this client never performs authenticated access.
const UnauthorizedToken = "unauthorized_user_token"

// DefaultVolumeStudyID is the pinned study identifier for the server-side
// "volume" study. Upstream may change this string; Options.VolumeStudyID
// overrides it per spec's "treat as configurable constant" guidance.
const DefaultVolumeStudyID = "Volume@tv-basicstudies-241"

// SetAuthToken returns the method/params pair for set_auth_token.
func SetAuthToken() (string, []interface{}) {
	return VerbSetAuthToken, []interface{}{UnauthorizedToken}
}

// SetLocale returns the method/params pair for set_locale (fixed en/US).
func SetLocale() (string, []interface{}) {
	return VerbSetLocale, []interface{}{"en", "US"}
}

// ChartCreateSession returns the method/params pair for chart_create_session.
func ChartCreateSession(chartSession string) (string, []interface{}) {
	return VerbChartCreateSession, []interface{}{chartSession, ""}
}

// QuoteCreateSession returns the method/params pair for quote_create_session.
func QuoteCreateSession(quoteSession string) (string, []interface{}) {
	return VerbQuoteCreateSession, []interface{}{quoteSession}
}

// QuoteSetFields returns the method/params pair for quote_set_fields with
// the fixed 28-field list (§4.C); the list is never mutated at runtime.
func QuoteSetFields(quoteSession string) (string, []interface{}) {
	params := make([]interface{}, 0, len(QuoteFields)+1)
	params = append(params, quoteSession)
	for _, f := range QuoteFields {
		params = append(params, f)
	}
	return VerbQuoteSetFields, params
}

// QuoteHibernateAll returns the method/params pair for quote_hibernate_all.
func QuoteHibernateAll(quoteSession string) (string, []interface{}) {
	return VerbQuoteHibernateAll, []interface{}{quoteSession}
}

// symbolJSON is the JSON-string-of-a-JSON-object parameter the server
// expects for add/resolve-symbol calls.
type symbolJSON struct {
	Adjustment string `json:"adjustment"`
	Symbol     string `json:"symbol"`
	CurrencyID string `json:"currency-id,omitempty"`
	Session    string `json:"session,omitempty"`
}

func marshalSymbolJSON(symbol string, extended bool) string {
	sj := symbolJSON{Adjustment: "splits", Symbol: symbol}
	if extended {
		sj.CurrencyID = "USD"
		sj.Session = "regular"
	}
	b, err := json.Marshal(sj)
	if err != nil {
		// symbolJSON has no types that can fail to marshal (plain strings).
		panic("protocol: unreachable symbolJSON marshal failure: " + err.Error())
	}
	return string(b)
}

// QuoteAddSymbols returns the method/params pair for quote_add_symbols, chart
// form (no currency-id/session).
func QuoteAddSymbols(quoteSession, symbol string) (string, []interface{}) {
	return VerbQuoteAddSymbols, []interface{}{quoteSession, marshalSymbolJSON(symbol, false)}
}

// QuoteAddSymbolsTicker returns the method/params pair for quote_add_symbols,
// multi-symbol ticker form, with currency-id and session set.
func QuoteAddSymbolsTicker(quoteSession, symbol string) (string, []interface{}) {
	return VerbQuoteAddSymbols, []interface{}{quoteSession, marshalSymbolJSON(symbol, true)}
}

// QuoteFastSymbols returns the method/params pair for quote_fast_symbols
// over one or more symbols.
func QuoteFastSymbols(quoteSession string, symbols ...string) (string, []interface{}) {
	params := make([]interface{}, 0, len(symbols)+1)
	params = append(params, quoteSession)
	for _, s := range symbols {
		params = append(params, s)
	}
	return VerbQuoteFastSymbols, params
}

// ResolveSymbol returns the method/params pair for resolve_symbol on the
// chart side of a subscription.
func ResolveSymbol(chartSession, symbolKey, symbol string) (string, []interface{}) {
	return VerbResolveSymbol, []interface{}{chartSession, symbolKey, "=" + marshalSymbolJSON(symbol, false)}
}

// CreateSeries returns the method/params pair for create_series.
func CreateSeries(chartSession, seriesKey, symbolKey, interval string, barCount int) (string, []interface{}) {
	return VerbCreateSeries, []interface{}{chartSession, seriesKey, "s1", symbolKey, interval, barCount, ""}
}

// CreateStudy returns the method/params pair for create_study, requesting
// the volume study for a series.
func CreateStudy(chartSession, seriesKey, studyID string) (string, []interface{}) {
	return VerbCreateStudy, []interface{}{chartSession, "st1", "st1", seriesKey, studyID, map[string]interface{}{}}
}

// QuoteFields is the fixed, ordered set of quote field identifiers sent in
// quote_set_fields. Order and membership are pinned for wire compatibility
// (spec §9 open question); callers must not mutate the returned slice.
var QuoteFields = []string{
	"base-currency-logoid",
	"ch",
	"chp",
	"currency-logoid",
	"currency_code",
	"current_session",
	"description",
	"exchange",
	"format",
	"fractional",
	"is_tradable",
	"language",
	"local_description",
	"logoid",
	"lp",
	"lp_time",
	"minmov",
	"minmove2",
	"original_name",
	"pricescale",
	"pro_name",
	"short_name",
	"type",
	"update_mode",
	"volume",
	"ask",
	"bid",
	"fundamentals",
}
