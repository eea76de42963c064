// Package pattern summarizes how a ticker behaved across short historical
// windows that share contextual conditions (earnings months, Fed weeks,
// inflation regimes). Everything here is descriptive, never predictive.
package pattern

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"marketdata/internal/provider"
)

// windowSize is the number of consecutive bars per behavior window.
const windowSize = 5

// minPoints is the fewest history points a summary accepts: enough for at
// least two windows, so the statistics compare something.
const minPoints = 6

// MaxContextTags caps how many tags a single request may carry.
const MaxContextTags = 12

// BehaviorPattern is the computed summary. WinRate is the fraction of
// selected windows that closed higher, TypicalRange the median high-low
// swing relative to the window's start price, MaxMove the largest
// absolute window return.
type BehaviorPattern struct {
	Ticker       string    `json:"ticker"`
	SampleSize   int       `json:"sampleSize"`
	WinRate      float64   `json:"winRate"`
	TypicalRange float64   `json:"typicalRange"`
	MaxMove      float64   `json:"maxMove"`
	Notes        string    `json:"notes"`
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source"`
}

// contextSynonyms folds the phrasings the client sends into canonical
// tags. Unrecognized tags pass through unchanged; they match every window
// but still show up in the notes.
var contextSynonyms = map[string]string{
	"earnings":        "earnings",
	"earnings period": "earnings",
	"earnings week":   "earnings",
	"fed":             "fed week",
	"fed week":        "fed week",
	"fomc":            "fed week",
	"high inflation":  "high inflation",
	"inflation":       "high inflation",
	"cpi":             "high inflation",
}

// Engine computes behavior patterns. It owns no mutable state and is safe
// for concurrent use.
type Engine struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Engine {
	return &Engine{log: log}
}

// window is one rolling span of bars: its start date (what the context
// matchers test), simple return and high-low swing.
type window struct {
	start time.Time
	ret   float64
	swing float64
}

// Compute summarizes the windows of history whose start dates match every
// recognized context tag. When no window matches, the summary falls back
// to all windows and says so in the notes.
func (e *Engine) Compute(history provider.HistoryData, context []string) (BehaviorPattern, error) {
	if err := history.Validate(); err != nil {
		return BehaviorPattern{}, err
	}
	if len(history.Points) < minPoints {
		return BehaviorPattern{}, &provider.InsufficientHistoryError{
			Ticker: history.Ticker,
			Need:   minPoints,
			Have:   len(history.Points),
		}
	}

	windows := buildWindows(history.Points)
	tags := normalizeTags(context)

	selected := matchWindows(windows, tags)
	notes := clusteredNotes(tags)
	if len(selected) == 0 {
		selected = windows
		notes = fallbackNotes(tags)
	}

	returns := make([]float64, len(selected))
	swings := make([]float64, len(selected))
	for i, w := range selected {
		returns[i] = w.ret
		swings[i] = w.swing
	}

	out := BehaviorPattern{
		Ticker:       history.Ticker,
		SampleSize:   len(selected),
		WinRate:      roundTo(positiveFraction(returns), 2),
		TypicalRange: roundTo(median(swings), 4),
		MaxMove:      roundTo(maxAbs(returns), 4),
		Notes:        notes,
		Timestamp:    history.Timestamp,
		Source:       history.Source,
	}

	e.log.Debug().
		Str("ticker", history.Ticker).
		Strs("tags", tags).
		Int("sample_size", out.SampleSize).
		Float64("win_rate", out.WinRate).
		Msg("behavior pattern computed")

	return out, nil
}

// buildWindows computes return and swing for every rolling window. The
// swing is (max high - min low) relative to the window's start close, so
// it captures intraperiod range, not just close-to-close drift.
func buildWindows(points []provider.HistoryPoint) []window {
	n := len(points) - windowSize + 1
	if n <= 0 {
		return nil
	}
	out := make([]window, 0, n)
	for idx := 0; idx < n; idx++ {
		bars := points[idx : idx+windowSize]
		start := bars[0].Close
		end := bars[len(bars)-1].Close
		maxHigh := bars[0].High
		minLow := bars[0].Low
		for _, b := range bars[1:] {
			if b.High > maxHigh {
				maxHigh = b.High
			}
			if b.Low < minLow {
				minLow = b.Low
			}
		}

		w := window{start: bars[0].Date}
		if start != 0 {
			w.ret = (end - start) / start
			w.swing = (maxHigh - minLow) / start
		}
		out = append(out, w)
	}
	return out
}

// matchWindows keeps the windows whose start dates satisfy every
// recognized tag. With no tags (or none recognized) every window matches.
func matchWindows(windows []window, tags []string) []window {
	if len(tags) == 0 {
		return windows
	}

	var matchers []func(time.Time) bool
	for _, tag := range tags {
		if m := matcherFor(tag); m != nil {
			matchers = append(matchers, m)
		}
	}
	if len(matchers) == 0 {
		return windows
	}

	var out []window
	for _, w := range windows {
		keep := true
		for _, match := range matchers {
			if !match(w.start) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, w)
		}
	}
	return out
}

// matcherFor maps a canonical tag to its date predicate: earnings tags
// match the reporting months, fed weeks the months with scheduled FOMC
// meetings, high inflation the 2021-2022 regime. Unrecognized tags get no
// matcher.
func matcherFor(tag string) func(time.Time) bool {
	switch tag {
	case "earnings":
		return func(t time.Time) bool {
			switch t.Month() {
			case time.January, time.April, time.July, time.October:
				return true
			}
			return false
		}
	case "fed week":
		return func(t time.Time) bool {
			switch t.Month() {
			case time.February, time.April, time.August, time.October:
				return false
			}
			return true
		}
	case "high inflation":
		return func(t time.Time) bool {
			return t.Year() == 2021 || t.Year() == 2022
		}
	default:
		return nil
	}
}

// normalizeTags lowercases, trims, folds synonyms, and returns the sorted
// unique result. Sorting keeps the notes stable across tag orderings.
func normalizeTags(context []string) []string {
	seen := make(map[string]struct{}, len(context))
	var out []string
	for _, raw := range context {
		cleaned := strings.ToLower(strings.TrimSpace(raw))
		if cleaned == "" {
			continue
		}
		if canonical, ok := contextSynonyms[cleaned]; ok {
			cleaned = canonical
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		out = append(out, cleaned)
	}
	sort.Strings(out)
	return out
}

func clusteredNotes(tags []string) string {
	if len(tags) == 0 {
		return "Behavior summarized across broader historical windows."
	}
	return "Behavior clustered around " + strings.Join(tags, ", ") + " windows; descriptive context only."
}

func fallbackNotes(tags []string) string {
	if len(tags) == 0 {
		return "Behavior summarized across broader historical windows."
	}
	return "No direct matches for " + strings.Join(tags, ", ") + "; using broader history for context only."
}

func positiveFraction(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var up int
	for _, v := range values {
		if v > 0 {
			up++
		}
	}
	return float64(up) / float64(len(values))
}

// median averages the middle pair on even counts, matching the summary
// statistics the mobile client was built against.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func maxAbs(values []float64) float64 {
	var out float64
	for _, v := range values {
		if a := math.Abs(v); a > out {
			out = a
		}
	}
	return out
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
