// Copyright (c) 2025 BVK Chaitanya

package message

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bvk/pricebot/asset"
	"github.com/bvk/pricebot/pricefeed"
	"github.com/shopspring/decimal"
)

var testTime = time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

func snapshot(a asset.Asset, price, change, mcap string) *pricefeed.Snapshot {
	return &pricefeed.Snapshot{
		Asset:     a,
		Price:     decimal.RequireFromString(price),
		Change24h: decimal.RequireFromString(change),
		MarketCap: decimal.RequireFromString(mcap),
	}
}

func TestFormatExact(t *testing.T) {
	btc, _ := asset.Default().Lookup("bitcoin")
	snaps := &pricefeed.Snapshots{
		Currency: "usd",
		Items:    []*pricefeed.Snapshot{snapshot(btc, "43250.5", "2.345", "850000000")},
	}

	want := "🚀 CRYPTO MARKET UPDATE 🚀\n" +
		"\n" +
		"🕒 2024-01-02 15:04:05 UTC\n" +
		"\n" +
		"🟢 BTC\n" +
		"💵 Price: $43,250.50\n" +
		"📈 24h Change: 2.35%\n" +
		"💰 Market Cap: $850,000,000\n" +
		"📊 Charts:\n" +
		"• <a href=\"https://www.tradingview.com/chart/?symbol=BINANCE:BTCUSDT\">TradingView</a>\n" +
		"• <a href=\"https://www.binance.com/en/trade/BTCUSDT\">Binance</a>\n" +
		"• <a href=\"https://www.coingecko.com/en/coins/bitcoin\">CoinGecko</a>\n" +
		"\n" +
		"\n" +
		"#crypto #bitcoin #ethereum"

	got := Format(snaps, testTime)
	if got != want {
		t.Fatalf("unexpected message:\nwant:\n%s\ngot:\n%s", want, got)
	}

	// Same input gives the same output.
	if again := Format(snaps, testTime); again != got {
		t.Fatalf("format is not deterministic")
	}

	// Timestamp is always in UTC.
	ist := time.FixedZone("IST", 5*3600+1800)
	if local := Format(snaps, testTime.In(ist)); local != got {
		t.Fatalf("timestamp must be converted to utc")
	}
}

func TestFormatGlyph(t *testing.T) {
	eth, _ := asset.Default().Lookup("ethereum")

	tests := []struct {
		change string
		glyph  string
	}{
		{"0.00", "🟢 ETH"},
		{"0", "🟢 ETH"},
		{"1.5", "🟢 ETH"},
		{"-0.01", "🔴 ETH"},
		{"-12.75", "🔴 ETH"},
	}
	for _, test := range tests {
		snaps := &pricefeed.Snapshots{
			Currency: "usd",
			Items:    []*pricefeed.Snapshot{snapshot(eth, "2000", test.change, "1")},
		}
		msg := Format(snaps, testTime)
		if !strings.Contains(msg, test.glyph+"\n") {
			t.Errorf("change %s: want %q in the message, got:\n%s", test.change, test.glyph, msg)
		}
	}
}

func TestFormatAllAssets(t *testing.T) {
	table := asset.Default()
	snaps := &pricefeed.Snapshots{Currency: "usd"}
	for _, a := range table.Assets() {
		snaps.Items = append(snaps.Items, snapshot(a, "1.5", "-0.5", "1000000"))
	}

	msg := Format(snaps, testTime)
	if n := strings.Count(msg, "💵 Price: "); n != 10 {
		t.Fatalf("want 10 asset blocks, got %d", n)
	}
	if n := strings.Count(msg, "• <a href="); n != 30 {
		t.Fatalf("want 30 links, got %d", n)
	}

	// Blocks appear in the table order.
	last := -1
	for _, a := range table.Assets() {
		i := strings.Index(msg, "🔴 "+a.Symbol+"\n")
		if i < 0 {
			t.Fatalf("asset %s is missing in the message", a.Symbol)
		}
		if i <= last {
			t.Fatalf("asset %s is out of order", a.Symbol)
		}
		last = i
	}
	if !strings.HasSuffix(msg, "\n"+Footer) {
		t.Fatalf("message must end with the hashtags")
	}
}

func TestNumbers(t *testing.T) {
	d := decimal.RequireFromString

	tests := []struct {
		got, want string
	}{
		{Money(d("43250.5"), "$", 2), "$43,250.50"},
		{Money(d("850000000"), "$", 0), "$850,000,000"},
		{Money(d("850000000.5"), "$", 0), "$850,000,001"},
		{Money(d("0.004"), "$", 2), "$0.00"},
		{Money(d("0.005"), "$", 2), "$0.01"},
		{Money(d("999.995"), "$", 2), "$1,000.00"},
		{Money(d("-1234.5"), "$", 2), "-$1,234.50"},
		{Money(d("-0.001"), "$", 2), "$0.00"},
		{Money(d("12"), "EUR ", 2), "EUR 12.00"},
		{Percent(d("2.345")), "2.35%"},
		{Percent(d("-2.345")), "-2.35%"},
		{Percent(d("0")), "0.00%"},
		{Percent(d("100")), "100.00%"},
		{Group("1234567.891"), "1,234,567.891"},
		{Group("123"), "123"},
		{Group("123456"), "123,456"},
	}
	for i, test := range tests {
		if test.got != test.want {
			t.Errorf("%d: want %q, got %q", i, test.want, test.got)
		}
	}

	if s := CurrencySymbol("USD"); s != "$" {
		t.Errorf("want $ for usd, got %q", s)
	}
	if s := CurrencySymbol("chf"); s != "CHF " {
		t.Errorf("want CHF prefix, got %q", s)
	}
}

func TestUnavailable(t *testing.T) {
	msg := Unavailable(testTime, errors.New("status 500: <html>"))
	want := "⚠️ Price data is temporarily unavailable.\n\n🕒 2024-01-02 15:04:05 UTC\n\nError: status 500: &lt;html&gt;"
	if msg != want {
		t.Fatalf("want %q, got %q", want, msg)
	}

	if msg := Unavailable(testTime, nil); strings.Contains(msg, "Error") {
		t.Fatalf("nil error must not be printed, got %q", msg)
	}
}
