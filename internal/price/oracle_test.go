package price

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOracle(url string, opts Options) *Oracle {
	opts.FeedURL = url
	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second
	}
	return NewOracle(opts)
}

func TestFetchPrice_MantleAlias(t *testing.T) {
	var gotSymbol, gotQuote string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("fsym")
		gotQuote = r.URL.Query().Get("tsyms")
		w.Write([]byte(`{"USDT":0.61}`))
	}))
	defer srv.Close()

	o := newTestOracle(srv.URL, Options{})
	p, err := o.FetchPrice(context.Background(), "MNT")
	require.NoError(t, err)

	assert.Equal(t, "MANTLE", gotSymbol, "MNT must be dispatched as MANTLE")
	assert.Equal(t, "USDT", gotQuote)
	assert.True(t, p.Equal(decimal.RequireFromString("0.61")))
}

func TestFetchPrice_UppercasesSymbol(t *testing.T) {
	var gotSymbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("fsym")
		w.Write([]byte(`{"USDT":1800}`))
	}))
	defer srv.Close()

	p, err := newTestOracle(srv.URL, Options{}).FetchPrice(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, "ETH", gotSymbol)
	assert.Equal(t, "1800", p.String())
}

func TestFetchPrice_RetriesUntilOK(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		case 3:
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Write([]byte(`{"USDT":12.5}`))
		}
	}))
	defer srv.Close()

	p, err := newTestOracle(srv.URL, Options{}).FetchPrice(context.Background(), "AVAX")
	require.NoError(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls), "every non-200 answer is retried")
	assert.Equal(t, "12.5", p.String())
}

func TestFetchPrice_CancellationStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestOracle(srv.URL, Options{Backoff: 10 * time.Millisecond}).FetchPrice(ctx, "ETH")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetchPrice_NonNumericIsZero(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"string price", `{"USDT":"n/a"}`},
		{"missing field", `{"Response":"Error","Message":"no pair"}`},
		{"not json", `<html>oops</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			var flagged string
			o := newTestOracle(srv.URL, Options{OnZeroPrice: func(s string) { flagged = s }})
			p, err := o.FetchPrice(context.Background(), "CELO")
			require.NoError(t, err)
			assert.True(t, p.IsZero())
			assert.Equal(t, "CELO", flagged)
		})
	}
}

func TestFetchPrice_Cache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"USDT":"2500.10"}`))
	}))
	defer srv.Close()

	o := newTestOracle(srv.URL, Options{CacheTTL: time.Minute})
	for i := 0; i < 3; i++ {
		p, err := o.FetchPrice(context.Background(), "ETH")
		require.NoError(t, err)
		assert.Equal(t, "2500.1", p.String())
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchPrice_ZeroIsNotCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write([]byte(`{"USDT":0}`))
			return
		}
		w.Write([]byte(`{"USDT":1800}`))
	}))
	defer srv.Close()

	o := newTestOracle(srv.URL, Options{CacheTTL: time.Minute})

	p, err := o.FetchPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.True(t, p.IsZero())

	p, err = o.FetchPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, "1800", p.String())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNormalizeSymbol_CustomAlias(t *testing.T) {
	o := NewOracle(Options{Aliases: map[string]string{"xdai": "dai"}})
	assert.Equal(t, "DAI", o.NormalizeSymbol("xDAI"))
	assert.Equal(t, "MANTLE", o.NormalizeSymbol("mnt"))
	assert.Equal(t, "BNB", o.NormalizeSymbol(" bnb "))
}
