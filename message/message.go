// Copyright (c) 2025 BVK Chaitanya

// Package message formats price snapshots into Telegram HTML messages.
package message

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/bvk/pricebot/asset"
	"github.com/bvk/pricebot/pricefeed"
	"github.com/shopspring/decimal"
)

const (
	Header = "🚀 CRYPTO MARKET UPDATE 🚀"
	Footer = "#crypto #bitcoin #ethereum"

	TimeLayout = "2006-01-02 15:04:05"
)

var currencySymbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"jpy": "¥",
	"inr": "₹",
}

// Format returns the channel message for the snapshots. Assets appear in the
// snapshots order. Output depends only on the inputs.
func Format(snaps *pricefeed.Snapshots, at time.Time) string {
	symbol := CurrencySymbol(snaps.Currency)

	var sb strings.Builder
	sb.WriteString(Header)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "🕒 %s UTC\n\n", at.UTC().Format(TimeLayout))

	for _, s := range snaps.Items {
		glyph := "🟢"
		if s.Change24h.IsNegative() {
			glyph = "🔴"
		}
		fmt.Fprintf(&sb, "%s %s\n", glyph, html.EscapeString(s.Asset.Symbol))
		fmt.Fprintf(&sb, "💵 Price: %s\n", html.EscapeString(Money(s.Price, symbol, 2)))
		fmt.Fprintf(&sb, "📈 24h Change: %s\n", Percent(s.Change24h))
		fmt.Fprintf(&sb, "💰 Market Cap: %s\n", html.EscapeString(Money(s.MarketCap, symbol, 0)))
		sb.WriteString("📊 Charts:\n")
		for _, link := range asset.ChartLinks(s.Asset) {
			fmt.Fprintf(&sb, "• <a href=\"%s\">%s</a>\n", html.EscapeString(link.URL), html.EscapeString(link.Name))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(Footer)
	return sb.String()
}

// Unavailable returns the notice sent when price data could not be fetched.
func Unavailable(at time.Time, err error) string {
	var sb strings.Builder
	sb.WriteString("⚠️ Price data is temporarily unavailable.\n\n")
	fmt.Fprintf(&sb, "🕒 %s UTC", at.UTC().Format(TimeLayout))
	if err != nil {
		fmt.Fprintf(&sb, "\n\nError: %s", html.EscapeString(err.Error()))
	}
	return sb.String()
}

// CurrencySymbol returns the display prefix for a currency code.
func CurrencySymbol(currency string) string {
	currency = strings.ToLower(currency)
	if s, ok := currencySymbols[currency]; ok {
		return s
	}
	return strings.ToUpper(currency) + " "
}

// Money formats v with the given number of decimal places, comma thousands
// separators and the currency symbol prefix, e.g. "$43,250.50". Values are
// rounded half away from zero.
func Money(v decimal.Decimal, symbol string, places int32) string {
	r := v.Round(places)
	digits := Group(r.Abs().StringFixed(places))
	if r.IsNegative() {
		return "-" + symbol + digits
	}
	return symbol + digits
}

// Percent formats v with two decimal places and a percent suffix.
func Percent(v decimal.Decimal) string {
	return v.StringFixed(2) + "%"
}

// Group inserts comma separators into the integer part of a non-negative
// decimal number string.
func Group(s string) string {
	ipart, fpart, hasDot := strings.Cut(s, ".")
	if len(ipart) <= 3 {
		return s
	}

	var sb strings.Builder
	first := len(ipart) % 3
	if first > 0 {
		sb.WriteString(ipart[:first])
	}
	for i := first; i < len(ipart); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(ipart[i : i+3])
	}
	if hasDot {
		sb.WriteByte('.')
		sb.WriteString(fpart)
	}
	return sb.String()
}
