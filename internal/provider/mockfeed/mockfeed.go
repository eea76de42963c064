// Package mockfeed provides deterministic fetch strategies for every data
// kind. Payloads derive from the symbol (and period) alone, so identical
// requests produce identical data with no network access — the property the
// test suite and mock mode both rely on.
package mockfeed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketdata/internal/provider"
)

// newsNamespace seeds the deterministic SHA1 UUIDs for news items.
var newsNamespace = uuid.MustParse("9f2c1b36-5a8e-4d7b-9c3d-6e1f0a2b4c5d")

// curated holds hand-picked bases for well-known tickers; anything else
// derives its numbers from a hash of the symbol. Funds carry no market
// cap, so theirs stays zero.
type curated struct {
	price, prev, high, low, w52h, w52l float64
	cap                                int64
}

var curatedQuotes = map[string]curated{
	"AAPL": {185.0, 183.5, 186.2, 184.1, 231.25, 138.75, 2_890_000_000_000},
	"NVDA": {485.0, 478.0, 490.5, 476.3, 520.0, 220.0, 1_220_000_000_000},
	"MSFT": {375.0, 373.1, 377.8, 371.9, 430.82, 309.45, 2_780_000_000_000},
	"SPY":  {475.0, 473.2, 476.8, 472.5, 495.0, 410.0, 0},
	"QQQ":  {405.0, 402.5, 407.3, 401.2, 430.0, 340.0, 0},
	"TSLA": {245.0, 248.0, 252.0, 243.5, 290.0, 150.0, 780_000_000_000},
}

// pointCounts is how many bars each period yields, mirroring typical
// trading-session counts.
var pointCounts = map[string]int{
	"1D": 78,
	"1W": 35,
	"1M": 22,
	"3M": 65,
	"6M": 130,
	"1Y": 252,
	"3Y": 756,
	"5Y": 260,
}

// Generator produces mock market data anchored at a fixed end date.
type Generator struct {
	anchor time.Time
}

// New returns a Generator anchored at today's midnight UTC.
func New() *Generator {
	return NewWithAnchor(time.Now().UTC().Truncate(24 * time.Hour))
}

// NewWithAnchor pins the generator's end date; tests use this to make
// history dates fully reproducible.
func NewWithAnchor(anchor time.Time) *Generator {
	return &Generator{anchor: anchor.UTC()}
}

// FetchPrice returns a quote snapshot derived from the symbol.
func (g *Generator) FetchPrice(_ context.Context, symbol string) (provider.PriceData, error) {
	h := seed(symbol)

	q, ok := curatedQuotes[symbol]
	if !ok {
		base := 50 + float64(h%45001)/100 // 50.00 .. 500.00
		q = curated{
			price: base,
			prev:  base * 0.99,
			high:  base * 1.02,
			low:   base * 0.98,
			w52h:  base * 1.25,
			w52l:  base * 0.75,
			cap:   100_000_000_000 + int64(h%2_900_000_000)*1000,
		}
	}

	change := q.price - q.prev
	return provider.PriceData{
		CurrentPrice:  round2(q.price),
		PreviousClose: round2(q.prev),
		Change:        round2(change),
		ChangePercent: round2(change / q.prev * 100),
		DayHigh:       round2(q.high),
		DayLow:        round2(q.low),
		Week52High:    round2(q.w52h),
		Week52Low:     round2(q.w52l),
		Volume:        1_000_000 + int64(h%49_000_000),
		MarketCap:     q.cap,
	}, nil
}

// FetchHistory returns a seeded random-walk OHLCV series. The walk is a
// function of (symbol, period) only; dates count back from the anchor in
// steps of the period's bar interval, so intraday periods yield intraday
// timestamps.
func (g *Generator) FetchHistory(_ context.Context, symbol, period string) (provider.HistoryData, error) {
	period = provider.NormalizePeriod(period)
	n := pointCounts[period]
	_, interval := provider.PeriodRange(period)
	step := barStep(interval)

	rng := rand.New(rand.NewSource(int64(seed(symbol + ":" + period))))

	// The walk's step size and drift come from the ticker's curated
	// volatility and long-run up-rate, so TSLA mock history swings harder
	// than MSFT's.
	meta := provider.MetaFor(symbol)
	sigma := meta.BaseVolatility / 6
	drift := (meta.UpRate - 0.5) * 0.002

	base := 100 + rng.Float64()*400
	points := make([]provider.HistoryPoint, 0, n)
	price := base
	for i := 0; i < n; i++ {
		if i > 0 {
			price *= 1 + rng.NormFloat64()*sigma + drift
		}
		c := round2(price)
		o := round2(c * (1 - rng.Float64()*0.01))
		hi := round2(math.Max(o, c) * (1 + rng.Float64()*0.01))
		lo := round2(math.Min(o, c) * (1 - rng.Float64()*0.01))

		points = append(points, provider.HistoryPoint{
			Date:   g.anchor.Add(-time.Duration(n-1-i) * step),
			Open:   o,
			High:   hi,
			Low:    lo,
			Close:  c,
			Volume: 1_000_000 + rng.Int63n(49_000_000),
		})
	}

	return provider.HistoryData{
		Period:   period,
		Interval: interval,
		Points:   points,
	}, nil
}

var headlines = []string{
	"Company reports quarterly earnings",
	"Analysts maintain outlook on stock",
	"Sector sees mixed trading activity",
	"Market volatility continues amid economic data",
	"Investors watch Fed policy developments",
}

var newsSources = []string{"Reuters", "Bloomberg", "MarketWatch", "CNBC"}

// FetchNews returns templated placeholder articles. An empty symbol yields
// general market headlines.
func (g *Generator) FetchNews(_ context.Context, symbol string) (provider.NewsData, error) {
	items := make([]provider.NewsItem, 0, len(headlines))
	for i, title := range headlines {
		if symbol != "" {
			title = strings.ReplaceAll(title, "Company", symbol)
			title = strings.ReplaceAll(title, "stock", symbol+" stock")
		}
		items = append(items, provider.NewsItem{
			ID:    uuid.NewSHA1(newsNamespace, []byte(fmt.Sprintf("%s|%s", symbol, title))).String(),
			Title: title,
			Summary: "Market analysis and commentary on recent developments. " +
				"Investors continue to monitor key indicators.",
			Source:      newsSources[i%len(newsSources)],
			PublishedAt: g.anchor.Add(-time.Duration(i+1) * 6 * time.Hour),
			Sentiment:   "neutral",
		})
	}
	return provider.NewsData{Items: items}, nil
}

// FetchCatalysts returns the fixed upcoming-events calendar, anchored at
// 13:00 UTC of the generator's anchor day and sorted by date.
func (g *Generator) FetchCatalysts(_ context.Context) (provider.CatalystData, error) {
	base := g.anchor.Add(13 * time.Hour)
	return provider.CatalystData{Events: []provider.CatalystEvent{
		{Type: provider.CatalystEarnings, Ticker: "UNH", Date: base.AddDate(0, 0, 1), Confidence: provider.ConfidenceHigh},
		{Type: provider.CatalystDividend, Ticker: "AAPL", Date: base.AddDate(0, 0, 2), Confidence: provider.ConfidenceMedium},
		{Type: provider.CatalystSector, Ticker: "XLK", Date: base.AddDate(0, 0, 4), Confidence: provider.ConfidenceMedium},
		{Type: provider.CatalystSplit, Ticker: "NVDA", Date: base.AddDate(0, 0, 5), Confidence: provider.ConfidenceMedium},
		{Type: provider.CatalystFed, Date: base.AddDate(0, 0, 9), Confidence: provider.ConfidenceHigh},
		{Type: provider.CatalystCPI, Date: base.AddDate(0, 0, 12), Confidence: provider.ConfidenceHigh},
		{Type: provider.CatalystPPI, Date: base.AddDate(0, 0, 13), Confidence: provider.ConfidenceMedium},
	}}, nil
}

// barStep is the spacing between consecutive bars for a chart interval.
func barStep(interval string) time.Duration {
	switch interval {
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1wk":
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

func seed(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
