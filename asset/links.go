// Copyright (c) 2025 BVK Chaitanya

package asset

import "net/url"

type Link struct {
	Name string
	URL  string
}

// ChartLinks returns the TradingView, Binance and CoinGecko pages for the
// asset, in that order.
func ChartLinks(a Asset) []Link {
	return []Link{
		{
			Name: "TradingView",
			URL:  "https://www.tradingview.com/chart/?symbol=BINANCE:" + url.QueryEscape(a.TradingSymbol),
		},
		{
			Name: "Binance",
			URL:  "https://www.binance.com/en/trade/" + url.PathEscape(a.TradingSymbol),
		},
		{
			Name: "CoinGecko",
			URL:  "https://www.coingecko.com/en/coins/" + url.PathEscape(a.ID),
		},
	}
}
