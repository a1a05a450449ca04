// Copyright (c) 2025 BVK Chaitanya

package coingecko

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

const (
	PublicURL = "https://api.coingecko.com/api/v3"
	ProURL    = "https://pro-api.coingecko.com/api/v3"
)

type Options struct {
	// BaseURL for the REST api. Defaults to PublicURL or ProURL based on the
	// credentials.
	BaseURL string

	// UserAgent header value for the http requests.
	UserAgent string

	// Timeout to use for each HTTP request.
	HttpClientTimeout time.Duration

	// MaxAttempts is the maximum number of tries for a request that fails with
	// a transport error, a 5xx status or a 429 status.
	MaxAttempts int

	// RetryInterval is the initial wait time between the attempts. It is
	// doubled after each failed attempt.
	RetryInterval time.Duration

	// MaxRetryInterval caps the wait time between the attempts, including the
	// server suggested Retry-After durations.
	MaxRetryInterval time.Duration

	// RequestsPerMinute limits the request rate from this client.
	RequestsPerMinute int

	// RequestBurst is the max number of requests allowed back-to-back.
	RequestBurst int
}

func (v *Options) setDefaults(creds *Credentials) {
	if len(v.BaseURL) == 0 {
		v.BaseURL = PublicURL
		if creds != nil && creds.Pro {
			v.BaseURL = ProURL
		}
	}
	if len(v.UserAgent) == 0 {
		v.UserAgent = "pricebot/1.0"
	}
	if v.HttpClientTimeout == 0 {
		v.HttpClientTimeout = 10 * time.Second
	}
	if v.MaxAttempts == 0 {
		v.MaxAttempts = 3
	}
	if v.RetryInterval == 0 {
		v.RetryInterval = time.Second
	}
	if v.MaxRetryInterval == 0 {
		v.MaxRetryInterval = 8 * time.Second
	}
	if v.RequestsPerMinute == 0 {
		v.RequestsPerMinute = 30
	}
	if v.RequestBurst == 0 {
		v.RequestBurst = 5
	}
}

// Check validates the options.
func (v *Options) Check() error {
	u, err := url.Parse(v.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", v.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url %q must be a http or https url: %w", v.BaseURL, os.ErrInvalid)
	}
	if v.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be positive: %w", os.ErrInvalid)
	}
	if v.RetryInterval < 0 || v.MaxRetryInterval < v.RetryInterval {
		return fmt.Errorf("retry intervals must satisfy 0 <= initial <= max: %w", os.ErrInvalid)
	}
	if v.RequestsPerMinute < 1 || v.RequestBurst < 1 {
		return fmt.Errorf("request rate and burst must be positive: %w", os.ErrInvalid)
	}
	return nil
}

// Credentials hold the optional CoinGecko API key.
type Credentials struct {
	APIKey string `json:"key"`

	// Pro is true for paid plan keys, which use a different host and header.
	Pro bool `json:"pro,omitempty"`
}

func (v *Credentials) header() string {
	if v.Pro {
		return "x-cg-pro-api-key"
	}
	return "x-cg-demo-api-key"
}
