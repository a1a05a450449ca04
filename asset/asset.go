// Copyright (c) 2025 BVK Chaitanya

// Package asset defines the fixed, ordered set of crypto assets tracked by the
// bot. Table order is the canonical order for fetching and formatting.
package asset

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

type Asset struct {
	// ID is the price provider's asset id, e.g. "bitcoin".
	ID string `yaml:"id"`

	// Symbol is the display symbol, e.g. "BTC".
	Symbol string `yaml:"symbol"`

	// TradingSymbol is the exchange trading pair, e.g. "BTCUSDT".
	TradingSymbol string `yaml:"trading_symbol"`
}

func (a *Asset) Check() error {
	if len(a.ID) == 0 {
		return fmt.Errorf("asset id cannot be empty")
	}
	if strings.ContainsAny(a.ID, ", /") {
		return fmt.Errorf("asset id %q has invalid characters", a.ID)
	}
	if len(a.Symbol) == 0 {
		return fmt.Errorf("asset %q: symbol cannot be empty", a.ID)
	}
	if len(a.TradingSymbol) == 0 {
		return fmt.Errorf("asset %q: trading symbol cannot be empty", a.ID)
	}
	return nil
}

// Table is an immutable, ordered list of assets.
type Table struct {
	assets []Asset
	index  map[string]int
}

var defaultAssets = []Asset{
	{ID: "bitcoin", Symbol: "BTC", TradingSymbol: "BTCUSDT"},
	{ID: "ethereum", Symbol: "ETH", TradingSymbol: "ETHUSDT"},
	{ID: "binancecoin", Symbol: "BNB", TradingSymbol: "BNBUSDT"},
	{ID: "ripple", Symbol: "XRP", TradingSymbol: "XRPUSDT"},
	{ID: "cardano", Symbol: "ADA", TradingSymbol: "ADAUSDT"},
	{ID: "solana", Symbol: "SOL", TradingSymbol: "SOLUSDT"},
	{ID: "polkadot", Symbol: "DOT", TradingSymbol: "DOTUSDT"},
	{ID: "dogecoin", Symbol: "DOGE", TradingSymbol: "DOGEUSDT"},
	{ID: "avalanche-2", Symbol: "AVAX", TradingSymbol: "AVAXUSDT"},
	{ID: "tron", Symbol: "TRX", TradingSymbol: "TRXUSDT"},
}

// Default returns the built-in table of ten assets.
func Default() *Table {
	t, err := NewTable(defaultAssets)
	if err != nil {
		panic(err)
	}
	return t
}

// NewTable creates a table with the input assets in the same order. Assets
// must be valid and their ids must be unique.
func NewTable(assets []Asset) (*Table, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("asset table cannot be empty: %w", os.ErrInvalid)
	}
	t := &Table{
		assets: slices.Clone(assets),
		index:  make(map[string]int, len(assets)),
	}
	for i := range t.assets {
		a := &t.assets[i]
		if err := a.Check(); err != nil {
			return nil, fmt.Errorf("asset %d: %w", i, err)
		}
		if _, ok := t.index[a.ID]; ok {
			return nil, fmt.Errorf("asset id %q is repeated: %w", a.ID, os.ErrExist)
		}
		t.index[a.ID] = i
	}
	return t, nil
}

// LoadFile reads a table from a yaml file of the form:
//
//	assets:
//	  - id: bitcoin
//	    symbol: BTC
//	    trading_symbol: BTCUSDT
func LoadFile(fpath string) (*Table, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, fmt.Errorf("could not read assets file: %w", err)
	}
	var file struct {
		Assets []Asset `yaml:"assets"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("could not parse assets file %q: %w", fpath, err)
	}
	t, err := NewTable(file.Assets)
	if err != nil {
		return nil, fmt.Errorf("invalid assets file %q: %w", fpath, err)
	}
	return t, nil
}

func (t *Table) Len() int {
	return len(t.assets)
}

// Assets returns a copy of all assets in the table order.
func (t *Table) Assets() []Asset {
	return slices.Clone(t.assets)
}

// IDs returns the asset ids in the table order.
func (t *Table) IDs() []string {
	ids := make([]string, 0, len(t.assets))
	for _, a := range t.assets {
		ids = append(ids, a.ID)
	}
	return ids
}

// Lookup returns the asset with the given id.
func (t *Table) Lookup(id string) (Asset, bool) {
	i, ok := t.index[id]
	if !ok {
		return Asset{}, false
	}
	return t.assets[i], true
}
