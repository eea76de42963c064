package provider

import (
	"fmt"
	"strconv"
	"strings"
)

// TickerMeta is curated reference data per well-known ticker: the sector
// the driver tables key off, the typical per-window swing, and the
// long-run fraction of positive windows.
type TickerMeta struct {
	Sector         string
	BaseVolatility float64
	UpRate         float64
}

var tickerMeta = map[string]TickerMeta{
	"NVDA":  {Sector: "Technology", BaseVolatility: 0.12, UpRate: 0.68},
	"AAPL":  {Sector: "Technology", BaseVolatility: 0.06, UpRate: 0.62},
	"MSFT":  {Sector: "Technology", BaseVolatility: 0.05, UpRate: 0.64},
	"GOOGL": {Sector: "Communication Services", BaseVolatility: 0.07, UpRate: 0.58},
	"AMZN":  {Sector: "Consumer Discretionary", BaseVolatility: 0.08, UpRate: 0.60},
	"META":  {Sector: "Communication Services", BaseVolatility: 0.10, UpRate: 0.55},
	"TSLA":  {Sector: "Consumer Discretionary", BaseVolatility: 0.18, UpRate: 0.52},
	"SPY":   {Sector: "Broad Market", BaseVolatility: 0.04, UpRate: 0.65},
	"QQQ":   {Sector: "Technology", BaseVolatility: 0.06, UpRate: 0.63},
	"AMD":   {Sector: "Technology", BaseVolatility: 0.14, UpRate: 0.56},
}

// DefaultMeta covers any symbol the curated table does not know.
var DefaultMeta = TickerMeta{Sector: "Broad Market", BaseVolatility: 0.08, UpRate: 0.55}

// MetaFor returns the curated metadata for a symbol, falling back to
// DefaultMeta for unlisted tickers.
func MetaFor(symbol string) TickerMeta {
	if m, ok := tickerMeta[NormalizeSymbol(symbol)]; ok {
		return m
	}
	return DefaultMeta
}

// FormatMarketCap humanizes a market cap the way the client renders it:
// trillions, billions and millions to two decimals, smaller values with
// thousands separators, absent values as "N/A".
func FormatMarketCap(marketCap int64) string {
	if marketCap <= 0 {
		return "N/A"
	}
	v := float64(marketCap)
	switch {
	case v >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	default:
		return groupThousands(marketCap)
	}
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
