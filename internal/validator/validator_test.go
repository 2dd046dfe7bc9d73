package validator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testOptions(endpoint string) Options {
	return Options{
		Endpoint:  endpoint,
		Attempts:  3,
		BaseDelay: time.Millisecond,
		UserAgent: "tvstream-test",
	}
}

func TestValidateOKOnStatus200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v, err := New(testOptions(srv.URL))
	require.NoError(t, err)

	result, err := v.Validate(context.Background(), "BINANCE:BTCUSDT")
	require.NoError(t, err)
	require.Equal(t, OK, result)
}

func TestValidateInvalidOnStatus404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	v, err := New(testOptions(srv.URL))
	require.NoError(t, err)

	result, err := v.Validate(context.Background(), "BOGUS:NOPE")
	require.NoError(t, err)
	require.Equal(t, Invalid, result)
}

func TestValidateRetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v, err := New(testOptions(srv.URL))
	require.NoError(t, err)

	result, err := v.Validate(context.Background(), "BINANCE:BTCUSDT")
	require.NoError(t, err)
	require.Equal(t, OK, result)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestValidateExhaustsAttemptsOnPersistentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	v, err := New(testOptions(srv.URL))
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), "BINANCE:BTCUSDT")
	require.Error(t, err)
}

func TestValidateAllRequiresEverySymbolOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "BOGUS:NOPE" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v, err := New(testOptions(srv.URL))
	require.NoError(t, err)

	result, err := v.ValidateAll(context.Background(), []string{"BINANCE:BTCUSDT", "BOGUS:NOPE"})
	require.NoError(t, err)
	require.Equal(t, Invalid, result)
}
