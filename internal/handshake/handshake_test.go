package handshake

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	method string
	params []interface{}
}

func recorder() (Sender, *[]recordedCall) {
	calls := &[]recordedCall{}
	return func(method string, params []interface{}) error {
		*calls = append(*calls, recordedCall{method, params})
		return nil
	}, calls
}

func TestOpenSendsFixedSixStepSequence(t *testing.T) {
	send, calls := recorder()
	s := Sessions{Chart: "cs_aaaaaaaaaaaa", Quote: "qs_bbbbbbbbbbbb"}

	require.NoError(t, Open(send, s))

	methods := make([]string, len(*calls))
	for i, c := range *calls {
		methods[i] = c.method
	}
	require.Equal(t, []string{
		"set_auth_token",
		"set_locale",
		"chart_create_session",
		"quote_create_session",
		"quote_set_fields",
		"quote_hibernate_all",
	}, methods)

	require.Equal(t, []interface{}{s.Chart, ""}, (*calls)[2].params)
	require.Equal(t, []interface{}{s.Quote}, (*calls)[3].params)
}

func TestOpenStopsOnFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	send := func(method string, params []interface{}) error {
		attempts++
		if method == "chart_create_session" {
			return boom
		}
		return nil
	}

	err := Open(send, NewSessions())
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, attempts)
}

func TestAddSymbolSequenceOrderAndKeys(t *testing.T) {
	send, calls := recorder()
	sub := NewSubscription(Sessions{Chart: "cs_a", Quote: "qs_b"}, "BINANCE:BTCUSDT", "1", 10)

	require.NoError(t, AddSymbol(send, sub, "Volume@tv-basicstudies-241"))

	methods := make([]string, len(*calls))
	for i, c := range *calls {
		methods[i] = c.method
	}
	require.Equal(t, []string{
		"quote_add_symbols",
		"resolve_symbol",
		"create_series",
		"quote_fast_symbols",
		"create_study",
		"quote_hibernate_all",
	}, methods)

	require.Equal(t, []interface{}{"cs_a", "sds_1", "s1", "sds_sym_1", "1", 10, ""}, (*calls)[2].params)
}

func TestAddSymbolRehibernateFailureIsNotFatal(t *testing.T) {
	send := func(method string, params []interface{}) error {
		if method == "quote_hibernate_all" {
			return errors.New("hibernate failed")
		}
		return nil
	}
	sub := NewSubscription(NewSessions(), "NASDAQ:AAPL", "1D", 300)
	require.NoError(t, AddSymbol(send, sub, "Volume@tv-basicstudies-241"))
}

func TestAddQuoteOnlySymbolHasNoChartSteps(t *testing.T) {
	send, calls := recorder()
	require.NoError(t, AddQuoteOnlySymbol(send, "qs_b", "NASDAQ:AAPL"))

	for _, c := range *calls {
		require.NotEqual(t, "create_series", c.method)
		require.NotEqual(t, "resolve_symbol", c.method)
	}
	require.Equal(t, "quote_hibernate_all", (*calls)[len(*calls)-1].method)
}

func TestAddTickerSymbolsBatchesFastSymbols(t *testing.T) {
	send, calls := recorder()
	symbols := []string{"NASDAQ:AAPL", "NASDAQ:MSFT", "BINANCE:ETHUSDT"}

	require.NoError(t, AddTickerSymbols(send, "qs_b", symbols))

	addCount := 0
	for _, c := range *calls {
		if c.method == "quote_add_symbols" {
			addCount++
		}
	}
	require.Equal(t, len(symbols), addCount)

	var fast *recordedCall
	for i := range *calls {
		if (*calls)[i].method == "quote_fast_symbols" {
			fast = &(*calls)[i]
		}
	}
	require.NotNil(t, fast)
	require.Equal(t, []interface{}{"qs_b", "NASDAQ:AAPL", "NASDAQ:MSFT", "BINANCE:ETHUSDT"}, fast.params)
}
