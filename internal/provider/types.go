package provider

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Source identifiers stamped on every result.
const (
	SourceMock  = "mock"
	SourceYahoo = "yahoo"
)

// PriceData is the canonical quote snapshot. Every consumer of current
// price data gets this exact shape, with provenance attached.
type PriceData struct {
	Ticker        string    `json:"ticker"`
	CurrentPrice  float64   `json:"currentPrice"`
	PreviousClose float64   `json:"previousClose"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	DayHigh       float64   `json:"dayHigh"`
	DayLow        float64   `json:"dayLow"`
	Week52High    float64   `json:"week52High"`
	Week52Low     float64   `json:"week52Low"`
	Volume        int64     `json:"volume"`
	MarketCap     int64     `json:"marketCap,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"`
}

// MarshalJSON rides the humanized market cap along with the raw value so
// the client never reformats it. Absent caps (funds, unknown symbols)
// omit both fields.
func (p PriceData) MarshalJSON() ([]byte, error) {
	type alias PriceData
	var formatted string
	if p.MarketCap > 0 {
		formatted = FormatMarketCap(p.MarketCap)
	}
	return json.Marshal(struct {
		alias
		MarketCapFormatted string `json:"marketCapFormatted,omitempty"`
	}{
		alias:              alias(p),
		MarketCapFormatted: formatted,
	})
}

// HistoryPoint is a single OHLCV bar.
type HistoryPoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// HistoryData is the canonical price history shape. Points are chronological
// ascending. The derived start/end/change figures are computed from the
// points on demand and are never stored apart from them.
type HistoryData struct {
	Ticker    string         `json:"ticker"`
	Period    string         `json:"period"`
	Interval  string         `json:"interval"`
	Points    []HistoryPoint `json:"points"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
}

func (h HistoryData) StartPrice() float64 {
	if len(h.Points) == 0 {
		return 0
	}
	return h.Points[0].Close
}

func (h HistoryData) EndPrice() float64 {
	if len(h.Points) == 0 {
		return 0
	}
	return h.Points[len(h.Points)-1].Close
}

func (h HistoryData) Change() float64 {
	return round2(h.EndPrice() - h.StartPrice())
}

func (h HistoryData) ChangePercent() float64 {
	start := h.StartPrice()
	if start == 0 {
		return 0
	}
	return round2(h.Change() / start * 100)
}

// Closes returns the close series for analysis.
func (h HistoryData) Closes() []float64 {
	out := make([]float64, len(h.Points))
	for i, p := range h.Points {
		out[i] = p.Close
	}
	return out
}

// Validate checks the point-sequence invariants: strictly ascending dates
// with no duplicates, and low <= open,close <= high on every bar. Violating
// input is rejected, never silently reordered.
func (h HistoryData) Validate() error {
	for i, p := range h.Points {
		if i > 0 && !h.Points[i-1].Date.Before(p.Date) {
			return &MalformedHistoryError{
				Ticker: h.Ticker,
				Reason: fmt.Sprintf("points out of order at index %d: %s not after %s",
					i, p.Date.Format(time.RFC3339), h.Points[i-1].Date.Format(time.RFC3339)),
			}
		}
		if p.Low > p.Open || p.Low > p.Close || p.High < p.Open || p.High < p.Close || p.Low > p.High {
			return &MalformedHistoryError{
				Ticker: h.Ticker,
				Reason: fmt.Sprintf("bar at index %d violates low <= open,close <= high", i),
			}
		}
	}
	return nil
}

// MarshalJSON includes the derived fields so the API layer can serialize
// HistoryData verbatim, exactly as consumers expect.
func (h HistoryData) MarshalJSON() ([]byte, error) {
	type alias HistoryData
	return json.Marshal(struct {
		alias
		StartPrice    float64 `json:"startPrice"`
		EndPrice      float64 `json:"endPrice"`
		Change        float64 `json:"change"`
		ChangePercent float64 `json:"changePercent"`
	}{
		alias:         alias(h),
		StartPrice:    h.StartPrice(),
		EndPrice:      h.EndPrice(),
		Change:        h.Change(),
		ChangePercent: h.ChangePercent(),
	})
}

// NewsItem is a single article.
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt"`
	URL         string    `json:"url,omitempty"`
	Sentiment   string    `json:"sentiment,omitempty"`
}

// NewsData is the canonical news shape. Ticker is empty for general
// market news.
type NewsData struct {
	Ticker    string     `json:"ticker,omitempty"`
	Items     []NewsItem `json:"items"`
	Timestamp time.Time  `json:"timestamp"`
	Source    string     `json:"source"`
}

// periodSpec maps an app period to the upstream chart range and interval.
type periodSpec struct {
	Range    string
	Interval string
}

var periodMap = map[string]periodSpec{
	"1D": {"1d", "5m"},
	"1W": {"5d", "15m"},
	"1M": {"1mo", "1d"},
	"3M": {"3mo", "1d"},
	"6M": {"6mo", "1d"},
	"1Y": {"1y", "1d"},
	"3Y": {"3y", "1d"},
	"5Y": {"5y", "1wk"},
}

// DefaultPeriod is used when a request names an unknown period.
const DefaultPeriod = "1M"

// NormalizePeriod upper-cases p and falls back to DefaultPeriod for
// anything the period map does not know.
func NormalizePeriod(p string) string {
	p = strings.ToUpper(strings.TrimSpace(p))
	if _, ok := periodMap[p]; !ok {
		return DefaultPeriod
	}
	return p
}

// PeriodRange returns the upstream range and interval for a normalized
// period.
func PeriodRange(p string) (string, string) {
	spec := periodMap[NormalizePeriod(p)]
	return spec.Range, spec.Interval
}

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Cache keys. Per-period history entries are independent keys: a hit for
// history:NVDA:1M never satisfies a request for history:NVDA:1Y.
func PriceKey(symbol string) string { return "price:" + symbol }

func HistoryKey(symbol, period string) string { return "history:" + symbol + ":" + period }

func NewsKey(symbol string) string {
	if symbol == "" {
		return "news:market"
	}
	return "news:" + symbol
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
