// Copyright (c) 2025 BVK Chaitanya

// Package coingecko implements a client for the CoinGecko public market-data
// REST api.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/bvk/pricebot/ctxutil"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

type Client struct {
	opts Options

	creds *Credentials

	baseURL *url.URL

	client *http.Client

	limiter *rate.Limiter
}

// StatusError is returned when the server responds with an unsuccessful http
// status code.
type StatusError struct {
	StatusCode int
	Body       string

	retryAfter time.Duration
}

func (e *StatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("coingecko: http status %d", e.StatusCode)
	}
	return fmt.Sprintf("coingecko: http status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// SimplePrice holds the market data for one coin in one currency. Fields are
// invalid when the server response has them as null or doesn't have them.
type SimplePrice struct {
	Price     decimal.NullDecimal
	Change24h decimal.NullDecimal
	Volume24h decimal.NullDecimal
	MarketCap decimal.NullDecimal
}

// New creates a client. Credentials are optional and can be nil.
func New(creds *Credentials, opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults(creds)
	if err := opts.Check(); err != nil {
		return nil, err
	}
	if creds != nil && len(creds.APIKey) == 0 {
		creds = nil
	}

	baseURL, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	every := time.Minute / time.Duration(opts.RequestsPerMinute)
	c := &Client{
		opts:    *opts,
		creds:   creds,
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   opts.HttpClientTimeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Every(every), opts.RequestBurst),
	}
	return c, nil
}

// SimplePrices returns current price, 24 hour change, 24 hour volume and the
// market cap for the input coin ids in the input currency (ex: "usd"). Coins
// unknown to the server are absent in the result.
func (c *Client) SimplePrices(ctx context.Context, ids []string, currency string) (map[string]*SimplePrice, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("coin ids cannot be empty: %w", os.ErrInvalid)
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if len(currency) == 0 {
		return nil, fmt.Errorf("currency cannot be empty: %w", os.ErrInvalid)
	}

	values := make(url.Values)
	values.Set("ids", strings.Join(ids, ","))
	values.Set("vs_currencies", currency)
	values.Set("include_24hr_change", "true")
	values.Set("include_24hr_vol", "true")
	values.Set("include_market_cap", "true")

	resp, err := getJSON[map[string]map[string]decimal.NullDecimal](ctx, c, "/simple/price", values)
	if err != nil {
		return nil, fmt.Errorf("could not get simple prices: %w", err)
	}

	result := make(map[string]*SimplePrice, len(*resp))
	for id, fields := range *resp {
		result[id] = &SimplePrice{
			Price:     fields[currency],
			Change24h: fields[currency+"_24h_change"],
			Volume24h: fields[currency+"_24h_vol"],
			MarketCap: fields[currency+"_market_cap"],
		}
	}
	return result, nil
}

type pingResponse struct {
	GeckoSays string `json:"gecko_says"`
}

// Ping checks that the server is reachable and the api key, if any, is
// accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := getJSON[pingResponse](ctx, c, "/ping", nil); err != nil {
		return fmt.Errorf("could not ping: %w", err)
	}
	return nil
}

// getJSON decodes every attempt into a fresh value, so a failed attempt
// never leaks into the result.
func getJSON[T any](ctx context.Context, c *Client, subpath string, values url.Values) (*T, error) {
	addrURL := *c.baseURL
	addrURL.Path = path.Join(addrURL.Path, subpath)
	addrURL.RawQuery = values.Encode()

	var result *T
	attempt := 0
	get := func() error {
		attempt++
		v := new(T)
		err := c.doGet(ctx, &addrURL, v)
		if err == nil {
			result = v
			return nil
		}
		if ctx.Err() != nil {
			return ctxutil.Permanent(err)
		}
		var serr *StatusError
		if errors.As(err, &serr) {
			if !serr.temporary() {
				return ctxutil.Permanent(err)
			}
			err = ctxutil.RetryAfter(err, serr.retryAfter)
		}
		if attempt < c.opts.MaxAttempts {
			slog.Warn("coingecko request failed (will retry)", "path", subpath, "attempt", attempt, "err", err)
		}
		return err
	}

	err := ctxutil.RetryBackoff(ctx, c.opts.MaxAttempts, c.opts.RetryInterval, c.opts.MaxRetryInterval, get)
	if err != nil {
		if attempt == c.opts.MaxAttempts && ctx.Err() == nil {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) doGet(ctx context.Context, addrURL *url.URL, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addrURL.String(), nil)
	if err != nil {
		slog.Error("could not create http get request with context", "url", addrURL, "err", err)
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if c.creds != nil {
		req.Header.Set(c.creds.header(), c.creds.APIKey)
	}

	s := time.Now()
	resp, err := c.client.Do(req)
	if d := time.Since(s); d > c.opts.HttpClientTimeout {
		slog.Warn(fmt.Sprintf("get request took %s which is more than the http client timeout %s", d, c.opts.HttpClientTimeout))
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		serr := &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
		if x := resp.Header.Get("Retry-After"); len(x) != 0 {
			if v, err := strconv.Atoi(x); err == nil && v > 0 {
				serr.retryAfter = time.Duration(v) * time.Second
			}
		}
		return serr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("could not decode json response: %w", err)
	}
	return nil
}
