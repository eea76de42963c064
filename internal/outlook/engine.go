// Package outlook derives bounded descriptive statistics from price
// history. Everything here is descriptive, never predictive: the engine
// reports what the historical windows did, not what the ticker will do.
package outlook

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"marketdata/internal/provider"
)

// Sentiment classifies the historical pattern, not a forecast.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentMixed    Sentiment = "mixed"
	SentimentCautious Sentiment = "cautious"
)

// Volatility labels keyed off the annualized band.
const (
	VolatilityLow      = "low"
	VolatilityModerate = "moderate"
	VolatilityHigh     = "high"
)

// Outlook is the computed result. It is built fresh on every call and
// never cached: hit rate and volatility depend on the requested window.
type Outlook struct {
	Ticker            string    `json:"ticker"`
	TimeframeDays     int       `json:"timeframeDays"`
	SentimentSummary  Sentiment `json:"sentimentSummary"`
	KeyDrivers        []string  `json:"keyDrivers"`
	VolatilityBand    float64   `json:"volatilityBand"`
	VolatilityLabel   string    `json:"volatilityLabel"`
	HistoricalHitRate float64   `json:"historicalHitRate"`
	VolatilityWarning string    `json:"volatilityWarning,omitempty"`
	GeneratedAt       time.Time `json:"generatedAt"`
	Source            string    `json:"source"`
}

// Config holds the classification thresholds. The exact cutoffs are a
// product decision, so they stay pluggable instead of hard-coded.
type Config struct {
	PositiveHitRate  float64 // hit rate at or above this is positive-eligible
	CautiousHitRate  float64 // hit rate at or below this is cautious
	HighVolatility   float64 // annualized stddev above this is "high"
	HitRatePrecision int
	BandPrecision    int
	MinTimeframeDays int
	MaxTimeframeDays int

	Logger zerolog.Logger
}

func (c *Config) fill() {
	if c.PositiveHitRate == 0 {
		c.PositiveHitRate = 0.60
	}
	if c.CautiousHitRate == 0 {
		c.CautiousHitRate = 0.40
	}
	if c.HighVolatility == 0 {
		c.HighVolatility = 0.40
	}
	if c.HitRatePrecision == 0 {
		c.HitRatePrecision = 2
	}
	if c.BandPrecision == 0 {
		c.BandPrecision = 4
	}
	if c.MinTimeframeDays == 0 {
		c.MinTimeframeDays = 10
	}
	if c.MaxTimeframeDays == 0 {
		c.MaxTimeframeDays = 365
	}
}

// tradingDaysPerYear annualizes window volatility.
const tradingDaysPerYear = 252

// lowVolatility is the annualized stddev below which price action counts
// as "low"; between lowVolatility and Config.HighVolatility is "moderate".
const lowVolatility = 0.20

// Engine computes outlooks. It owns no mutable state and is safe for
// concurrent use.
type Engine struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Engine {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock injects the clock so tests get stable GeneratedAt values.
func NewWithClock(cfg Config, now func() time.Time) *Engine {
	cfg.fill()
	return &Engine{cfg: cfg, now: now}
}

// Compute derives an Outlook for the requested window. The history must
// contain at least timeframeDays chronologically ascending points; short
// or malformed input fails with a typed error instead of a degraded
// default.
func (e *Engine) Compute(history provider.HistoryData, timeframeDays int) (Outlook, error) {
	if timeframeDays < e.cfg.MinTimeframeDays || timeframeDays > e.cfg.MaxTimeframeDays {
		return Outlook{}, &provider.InvalidTimeframeError{
			Days: timeframeDays,
			Min:  e.cfg.MinTimeframeDays,
			Max:  e.cfg.MaxTimeframeDays,
		}
	}
	if err := history.Validate(); err != nil {
		return Outlook{}, err
	}

	closes := history.Closes()
	if len(closes) < timeframeDays {
		return Outlook{}, &provider.InsufficientHistoryError{
			Ticker: history.Ticker,
			Need:   timeframeDays,
			Have:   len(closes),
		}
	}

	returns := windowReturns(closes, timeframeDays)

	hitRate := roundTo(positiveFraction(returns), e.cfg.HitRatePrecision)
	std := populationStdDev(returns)
	band := roundTo(std, e.cfg.BandPrecision)
	annualized := std * math.Sqrt(float64(tradingDaysPerYear)/float64(timeframeDays))
	label := e.classifyVolatility(annualized)
	recent := trailingReturn(closes, timeframeDays)
	sentiment := e.classifySentiment(hitRate, recent, annualized)

	out := Outlook{
		Ticker:            history.Ticker,
		TimeframeDays:     timeframeDays,
		SentimentSummary:  sentiment,
		KeyDrivers:        keyDrivers(history.Ticker, label, sentiment, hitRate, band),
		VolatilityBand:    band,
		VolatilityLabel:   label,
		HistoricalHitRate: hitRate,
		GeneratedAt:       e.now().UTC(),
		Source:            history.Source,
	}
	if label == VolatilityHigh {
		out.VolatilityWarning = "This ticker has shown elevated volatility in recent history."
	}

	e.cfg.Logger.Debug().
		Str("ticker", history.Ticker).
		Int("timeframe_days", timeframeDays).
		Float64("hit_rate", hitRate).
		Str("volatility", label).
		Str("sentiment", string(sentiment)).
		Msg("outlook computed")

	return out, nil
}

// windowReturns computes simple returns over windows of `window` points.
// With two or fewer full windows the windows are non-overlapping; with
// more data they roll forward one point at a time.
func windowReturns(closes []float64, window int) []float64 {
	n := len(closes)
	if n < window {
		return nil
	}

	if n/window <= 2 {
		var out []float64
		for start := 0; start+window <= n; start += window {
			out = append(out, simpleReturn(closes[start], closes[start+window-1]))
		}
		return out
	}

	out := make([]float64, 0, n-window+1)
	for start := 0; start+window <= n; start++ {
		out = append(out, simpleReturn(closes[start], closes[start+window-1]))
	}
	return out
}

// trailingReturn is the simple return of the most recent window.
func trailingReturn(closes []float64, window int) float64 {
	n := len(closes)
	if n < window {
		return 0
	}
	return simpleReturn(closes[n-window], closes[n-1])
}

func simpleReturn(start, end float64) float64 {
	if start == 0 {
		return 0
	}
	return (end - start) / start
}

func positiveFraction(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var up int
	for _, r := range returns {
		if r > 0 {
			up++
		}
	}
	return float64(up) / float64(len(returns))
}

// populationStdDev uses the population formula, not the sample one, so
// small window counts stay deterministic and comparable.
func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

func (e *Engine) classifyVolatility(annualized float64) string {
	switch {
	case annualized < lowVolatility:
		return VolatilityLow
	case annualized < e.cfg.HighVolatility:
		return VolatilityModerate
	default:
		return VolatilityHigh
	}
}

// classifySentiment resolves ties toward mixed: positive needs both a
// strong hit rate and a positive recent window, cautious needs either a
// weak hit rate or elevated volatility.
func (e *Engine) classifySentiment(hitRate, recentReturn, annualized float64) Sentiment {
	if hitRate >= e.cfg.PositiveHitRate && recentReturn > 0 {
		return SentimentPositive
	}
	if hitRate <= e.cfg.CautiousHitRate || annualized > e.cfg.HighVolatility {
		return SentimentCautious
	}
	return SentimentMixed
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
