package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpeningSequenceBytes(t *testing.T) {
	chartSession := "cs_aaaaaaaaaaaa"
	quoteSession := "qs_bbbbbbbbbbbb"

	b1, err := Build(SetAuthToken())
	require.NoError(t, err)
	require.Equal(t, `{"m":"set_auth_token","p":["unauthorized_user_token"]}`, string(b1))

	b2, err := Build(SetLocale())
	require.NoError(t, err)
	require.Equal(t, `{"m":"set_locale","p":["en","US"]}`, string(b2))

	b3, err := Build(ChartCreateSession(chartSession))
	require.NoError(t, err)
	require.Equal(t, `{"m":"chart_create_session","p":["cs_aaaaaaaaaaaa",""]}`, string(b3))

	b4, err := Build(QuoteCreateSession(quoteSession))
	require.NoError(t, err)
	require.Equal(t, `{"m":"quote_create_session","p":["qs_bbbbbbbbbbbb"]}`, string(b4))

	b5, err := Build(QuoteSetFields(quoteSession))
	require.NoError(t, err)
	require.Equal(t, `{"m":"quote_set_fields","p":["qs_bbbbbbbbbbbb","base-currency-logoid","ch","chp","currency-logoid","currency_code","current_session","description","exchange","format","fractional","is_tradable","language","local_description","logoid","lp","lp_time","minmov","minmove2","original_name","pricescale","pro_name","short_name","type","update_mode","volume","ask","bid","fundamentals"]}`, string(b5))

	b6, err := Build(QuoteHibernateAll(quoteSession))
	require.NoError(t, err)
	require.Equal(t, `{"m":"quote_hibernate_all","p":["qs_bbbbbbbbbbbb"]}`, string(b6))
}

func TestAddSymbolSequence(t *testing.T) {
	quoteSession := "qs_bbbbbbbbbbbb"
	chartSession := "cs_aaaaaaaaaaaa"
	symbol := "BINANCE:BTCUSDT"

	add, err := Build(QuoteAddSymbols(quoteSession, symbol))
	require.NoError(t, err)
	require.Equal(t, `{"m":"quote_add_symbols","p":["qs_bbbbbbbbbbbb","{\"adjustment\":\"splits\",\"symbol\":\"BINANCE:BTCUSDT\"}"]}`, string(add))

	resolve, err := Build(ResolveSymbol(chartSession, "sds_sym_1", symbol))
	require.NoError(t, err)
	require.Equal(t, `{"m":"resolve_symbol","p":["cs_aaaaaaaaaaaa","sds_sym_1","={\"adjustment\":\"splits\",\"symbol\":\"BINANCE:BTCUSDT\"}"]}`, string(resolve))

	series, err := Build(CreateSeries(chartSession, "sds_1", "sds_sym_1", "1", 10))
	require.NoError(t, err)
	require.Equal(t, `{"m":"create_series","p":["cs_aaaaaaaaaaaa","sds_1","s1","sds_sym_1","1",10,""]}`, string(series))

	fast, err := Build(QuoteFastSymbols(quoteSession, symbol))
	require.NoError(t, err)
	require.Equal(t, `{"m":"quote_fast_symbols","p":["qs_bbbbbbbbbbbb","BINANCE:BTCUSDT"]}`, string(fast))
}

func TestQuoteAddSymbolsTickerForm(t *testing.T) {
	b, err := Build(QuoteAddSymbolsTicker("qs_x", "NASDAQ:AAPL"))
	require.NoError(t, err)
	require.Equal(t, `{"m":"quote_add_symbols","p":["qs_x","{\"adjustment\":\"splits\",\"symbol\":\"NASDAQ:AAPL\",\"currency-id\":\"USD\",\"session\":\"regular\"}"]}`, string(b))
}

func TestCreateStudy(t *testing.T) {
	b, err := Build(CreateStudy("cs_aaaaaaaaaaaa", "sds_1", DefaultVolumeStudyID))
	require.NoError(t, err)
	require.Equal(t, `{"m":"create_study","p":["cs_aaaaaaaaaaaa","st1","st1","sds_1","Volume@tv-basicstudies-241",{}]}`, string(b))
}

func TestQuoteFieldsCount(t *testing.T) {
	require.Len(t, QuoteFields, 28)
}
