// Copyright (c) 2025 BVK Chaitanya

// Package pricefeed fetches market data for all assets in an asset table with
// a single provider request and validates that the response is complete.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bvk/pricebot/asset"
	"github.com/bvk/pricebot/coingecko"
	"github.com/shopspring/decimal"
)

// ErrIncomplete is returned when the provider response is missing an asset or
// a required field of an asset.
var ErrIncomplete = errors.New("incomplete price data")

// Provider is the market-data source. It is implemented by coingecko.Client.
type Provider interface {
	SimplePrices(ctx context.Context, ids []string, currency string) (map[string]*coingecko.SimplePrice, error)
}

// Snapshot holds the market data for one asset at fetch time.
type Snapshot struct {
	Asset asset.Asset

	Price     decimal.Decimal
	Change24h decimal.Decimal
	Volume24h decimal.Decimal
	MarketCap decimal.Decimal
}

// Snapshots holds the result of one fetch. Items are in the asset table order.
type Snapshots struct {
	FetchTime time.Time
	Currency  string

	Items []*Snapshot
}

type Feed struct {
	table *asset.Table

	provider Provider

	currency string

	now func() time.Time
}

// New creates a feed for the assets in the table. Currency defaults to "usd".
func New(table *asset.Table, provider Provider, currency string) (*Feed, error) {
	if table == nil || table.Len() == 0 {
		return nil, fmt.Errorf("asset table cannot be empty: %w", os.ErrInvalid)
	}
	if provider == nil {
		return nil, fmt.Errorf("price provider cannot be nil: %w", os.ErrInvalid)
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if len(currency) == 0 {
		currency = "usd"
	}
	f := &Feed{
		table:    table,
		provider: provider,
		currency: currency,
		now:      time.Now,
	}
	return f, nil
}

func (f *Feed) Table() *asset.Table {
	return f.table
}

func (f *Feed) Currency() string {
	return f.currency
}

// Fetch requests the latest market data for all assets. Any provider error or
// incomplete response fails the whole fetch; partial results are never
// returned.
func (f *Feed) Fetch(ctx context.Context) (*Snapshots, error) {
	at := f.now()
	prices, err := f.provider.SimplePrices(ctx, f.table.IDs(), f.currency)
	if err != nil {
		slog.Error("could not fetch prices", "currency", f.currency, "err", err)
		return nil, fmt.Errorf("could not fetch prices: %w", err)
	}
	snaps, err := f.build(at, prices)
	if err != nil {
		slog.Error("could not use the fetched prices", "currency", f.currency, "err", err)
		return nil, err
	}
	return snaps, nil
}

func (f *Feed) build(at time.Time, prices map[string]*coingecko.SimplePrice) (*Snapshots, error) {
	snaps := &Snapshots{
		FetchTime: at,
		Currency:  f.currency,
		Items:     make([]*Snapshot, 0, f.table.Len()),
	}
	for _, a := range f.table.Assets() {
		p, ok := prices[a.ID]
		if !ok || p == nil {
			return nil, fmt.Errorf("asset %q is missing: %w", a.ID, ErrIncomplete)
		}
		if !p.Price.Valid {
			return nil, fmt.Errorf("asset %q has no price: %w", a.ID, ErrIncomplete)
		}
		if !p.Change24h.Valid {
			return nil, fmt.Errorf("asset %q has no 24h change: %w", a.ID, ErrIncomplete)
		}
		if !p.MarketCap.Valid {
			return nil, fmt.Errorf("asset %q has no market cap: %w", a.ID, ErrIncomplete)
		}
		// Volume is not displayed, so it is optional.
		snaps.Items = append(snaps.Items, &Snapshot{
			Asset:     a,
			Price:     p.Price.Decimal,
			Change24h: p.Change24h.Decimal,
			Volume24h: p.Volume24h.Decimal,
			MarketCap: p.MarketCap.Decimal,
		})
	}
	return snaps, nil
}
