// Copyright (c) 2025 BVK Chaitanya

package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testOptions(baseURL string) *Options {
	return &Options{
		BaseURL:           baseURL,
		MaxAttempts:       3,
		RetryInterval:     time.Millisecond,
		MaxRetryInterval:  5 * time.Millisecond,
		RequestsPerMinute: 60000,
		RequestBurst:      10,
	}
}

func TestSimplePrices(t *testing.T) {
	ctx := context.Background()

	const body = `{
  "bitcoin": {"usd": 43250.5, "usd_24h_change": 2.345, "usd_24h_vol": 1000, "usd_market_cap": 850000000},
  "ethereum": {"usd": 2250.25, "usd_24h_change": null, "usd_market_cap": 270000000}
}`

	var gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/simple/price" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("x-cg-demo-api-key")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	c, err := New(&Credentials{APIKey: "secret"}, testOptions(srv.URL+"/api/v3"))
	if err != nil {
		t.Fatal(err)
	}

	prices, err := c.SimplePrices(ctx, []string{"bitcoin", "ethereum", "litecoin"}, "USD")
	if err != nil {
		t.Fatal(err)
	}
	if gotKey != "secret" {
		t.Fatalf("want api key header %q, got %q", "secret", gotKey)
	}
	want := "ids=bitcoin%2Cethereum%2Clitecoin&include_24hr_change=true&include_24hr_vol=true&include_market_cap=true&vs_currencies=usd"
	if gotQuery != want {
		t.Fatalf("want query %q, got %q", want, gotQuery)
	}

	if len(prices) != 2 {
		t.Fatalf("want 2 results, got %d", len(prices))
	}
	if _, ok := prices["litecoin"]; ok {
		t.Fatalf("unknown coin must be absent in the result")
	}

	btc := prices["bitcoin"]
	if !btc.Price.Valid || !btc.Price.Decimal.Equal(decimal.RequireFromString("43250.5")) {
		t.Fatalf("unexpected bitcoin price %v", btc.Price)
	}
	if !btc.Change24h.Valid || btc.Change24h.Decimal.String() != "2.345" {
		t.Fatalf("unexpected bitcoin change %v", btc.Change24h)
	}
	if !btc.MarketCap.Valid || btc.MarketCap.Decimal.IntPart() != 850000000 {
		t.Fatalf("unexpected bitcoin market cap %v", btc.MarketCap)
	}

	eth := prices["ethereum"]
	if eth.Change24h.Valid {
		t.Fatalf("null change must be invalid, got %v", eth.Change24h)
	}
	if eth.Volume24h.Valid {
		t.Fatalf("missing volume must be invalid, got %v", eth.Volume24h)
	}
}

func TestSimplePricesRetry(t *testing.T) {
	ctx := context.Background()

	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch count.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			fmt.Fprint(w, `{"bitcoin": {"usd": 1, "usd_24h_change": 0, "usd_market_cap": 1}}`)
		}
	}))
	defer srv.Close()

	c, err := New(nil, testOptions(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.SimplePrices(ctx, []string{"bitcoin"}, "usd"); err != nil {
		t.Fatal(err)
	}
	if n := count.Load(); n != 3 {
		t.Fatalf("want 3 attempts, got %d", n)
	}
}

func TestSimplePricesRetryDiscardsPartialResult(t *testing.T) {
	ctx := context.Background()

	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if count.Add(1) == 1 {
			// Decoding fails after ethereum is already decoded.
			fmt.Fprint(w, `{"ethereum": {"usd": 1, "usd_24h_change": 0, "usd_market_cap": 1}, "bitcoin": {"usd": "bad"}}`)
			return
		}
		fmt.Fprint(w, `{"bitcoin": {"usd": 2, "usd_24h_change": 0, "usd_market_cap": 2}}`)
	}))
	defer srv.Close()

	c, err := New(nil, testOptions(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	prices, err := c.SimplePrices(ctx, []string{"bitcoin", "ethereum"}, "usd")
	if err != nil {
		t.Fatal(err)
	}
	if n := count.Load(); n != 2 {
		t.Fatalf("want 2 attempts, got %d", n)
	}
	if len(prices) != 1 {
		t.Fatalf("want only the coins from the last response, got %d", len(prices))
	}
	if _, ok := prices["ethereum"]; ok {
		t.Fatalf("ethereum from the failed attempt must not be in the result")
	}
	if p := prices["bitcoin"]; p == nil || !p.Price.Valid || !p.Price.Decimal.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("want bitcoin price 2 from the last response, got %+v", p)
	}
}

func TestSimplePricesGiveUp(t *testing.T) {
	ctx := context.Background()

	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(nil, testOptions(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.SimplePrices(ctx, []string{"bitcoin"}, "usd")
	var serr *StatusError
	if !errors.As(err, &serr) || serr.StatusCode != http.StatusBadGateway {
		t.Fatalf("want status error 502, got %v", err)
	}
	if n := count.Load(); n != 3 {
		t.Fatalf("want 3 attempts, got %d", n)
	}
}

func TestSimplePricesNoRetry(t *testing.T) {
	ctx := context.Background()

	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := New(nil, testOptions(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.SimplePrices(ctx, []string{"bitcoin"}, "usd")
	var serr *StatusError
	if !errors.As(err, &serr) || serr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want status error 401, got %v", err)
	}
	if serr.Body != "invalid api key" {
		t.Fatalf("want response body in the error, got %q", serr.Body)
	}
	if n := count.Load(); n != 1 {
		t.Fatalf("want 1 attempt, got %d", n)
	}
}

func TestSimplePricesCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.MaxAttempts = 10
	opts.RetryInterval = time.Second
	opts.MaxRetryInterval = time.Second
	c, err := New(nil, opts)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	s := time.Now()
	if _, err := c.SimplePrices(ctx, []string{"bitcoin"}, "usd"); err == nil {
		t.Fatalf("want error on context timeout")
	}
	if d := time.Since(s); d > 900*time.Millisecond {
		t.Fatalf("retry loop did not stop on context timeout (took %s)", d)
	}
}

func TestOptions(t *testing.T) {
	opts := new(Options)
	opts.setDefaults(&Credentials{APIKey: "x", Pro: true})
	if opts.BaseURL != ProURL {
		t.Fatalf("want pro url for pro credentials, got %q", opts.BaseURL)
	}
	if err := opts.Check(); err != nil {
		t.Fatal(err)
	}

	if _, err := New(nil, &Options{BaseURL: "ftp://example.com"}); err == nil {
		t.Fatalf("want error for non-http base url")
	}
	if _, err := New(nil, &Options{RetryInterval: time.Minute, MaxRetryInterval: time.Second}); err == nil {
		t.Fatalf("want error for retry interval larger than the max")
	}
}
