package pattern

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketdata/internal/provider"
)

var stamped = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	return New(zerolog.Nop())
}

// dailyHistory builds a valid daily history from a close series, starting
// at base. Bars are flat (open = high = low = close) so window swings
// equal the close range.
func dailyHistory(ticker string, base time.Time, closes []float64) provider.HistoryData {
	points := make([]provider.HistoryPoint, len(closes))
	for i, c := range closes {
		points[i] = provider.HistoryPoint{
			Date: base.AddDate(0, 0, i),
			Open: c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return provider.HistoryData{
		Ticker:    ticker,
		Period:    "5Y",
		Points:    points,
		Timestamp: stamped,
		Source:    provider.SourceMock,
	}
}

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestCompute_NoContextSummarizesAllWindows(t *testing.T) {
	h := dailyHistory("NVDA", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rising(10))

	out, err := testEngine().Compute(h, nil)
	require.NoError(t, err)

	assert.Equal(t, "NVDA", out.Ticker)
	assert.Equal(t, 6, out.SampleSize, "ten points yield six five-bar windows")
	assert.Equal(t, 1.0, out.WinRate)
	assert.Equal(t, "Behavior summarized across broader historical windows.", out.Notes)
	assert.Equal(t, stamped, out.Timestamp)
	assert.Equal(t, provider.SourceMock, out.Source)
}

func TestCompute_WindowMetrics(t *testing.T) {
	// Exactly two windows: 100->110 and 100->121.
	closes := []float64{100, 100, 100, 100, 110, 121}
	h := dailyHistory("AAPL", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), closes)

	out, err := testEngine().Compute(h, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, out.SampleSize)
	assert.Equal(t, 1.0, out.WinRate)
	assert.Equal(t, 0.21, out.MaxMove)
	// Swings 0.10 and 0.21; even count takes the middle average.
	assert.Equal(t, 0.155, out.TypicalRange)
}

func TestCompute_EarningsContextFiltersByStartMonth(t *testing.T) {
	// 40 daily points from March 1: window starts run March 1 .. April 5,
	// so exactly five windows begin in a reporting month.
	h := dailyHistory("AAPL", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rising(40))

	out, err := testEngine().Compute(h, []string{"earnings"})
	require.NoError(t, err)

	assert.Equal(t, 5, out.SampleSize)
	assert.Equal(t, "Behavior clustered around earnings windows; descriptive context only.", out.Notes)
}

func TestCompute_SynonymsFoldAndDeduplicate(t *testing.T) {
	h := dailyHistory("AAPL", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rising(40))

	canonical, err := testEngine().Compute(h, []string{"fed week"})
	require.NoError(t, err)
	folded, err := testEngine().Compute(h, []string{"FOMC", "fed", "  Fed Week "})
	require.NoError(t, err)

	assert.Equal(t, canonical, folded)
	assert.Equal(t, "Behavior clustered around fed week windows; descriptive context only.", folded.Notes)
}

func TestCompute_NoMatchesFallsBackToAllWindows(t *testing.T) {
	// 2024 dates can never match the 2021-2022 inflation regime.
	h := dailyHistory("AAPL", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rising(10))

	out, err := testEngine().Compute(h, []string{"high inflation"})
	require.NoError(t, err)

	assert.Equal(t, 6, out.SampleSize)
	assert.Equal(t, "No direct matches for high inflation; using broader history for context only.", out.Notes)
}

func TestCompute_UnrecognizedTagsMatchEverything(t *testing.T) {
	h := dailyHistory("AAPL", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rising(10))

	out, err := testEngine().Compute(h, []string{"zebra season"})
	require.NoError(t, err)

	assert.Equal(t, 6, out.SampleSize)
	assert.Equal(t, "Behavior clustered around zebra season windows; descriptive context only.", out.Notes)
}

func TestCompute_MixedTagsMustAllMatch(t *testing.T) {
	// Start dates span December 2021 through February 2022. "high
	// inflation" matches all of them; adding "earnings" narrows to the
	// January starts only.
	h := dailyHistory("NVDA", time.Date(2021, 12, 15, 0, 0, 0, 0, time.UTC), rising(70))

	inflationOnly, err := testEngine().Compute(h, []string{"inflation"})
	require.NoError(t, err)
	both, err := testEngine().Compute(h, []string{"inflation", "earnings"})
	require.NoError(t, err)

	assert.Greater(t, inflationOnly.SampleSize, both.SampleSize)
	assert.Equal(t, 31, both.SampleSize, "one window per January start date")
	assert.Equal(t, "Behavior clustered around earnings, high inflation windows; descriptive context only.", both.Notes)
}

func TestCompute_InsufficientHistory(t *testing.T) {
	h := dailyHistory("NVDA", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rising(5))

	_, err := testEngine().Compute(h, nil)
	var ih *provider.InsufficientHistoryError
	require.ErrorAs(t, err, &ih)
	assert.Equal(t, "NVDA", ih.Ticker)
	assert.Equal(t, 6, ih.Need)
	assert.Equal(t, 5, ih.Have)
}

func TestCompute_RejectsMalformedHistory(t *testing.T) {
	h := dailyHistory("AAPL", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rising(10))
	h.Points[4].Date = h.Points[3].Date // duplicate date

	_, err := testEngine().Compute(h, nil)
	var mal *provider.MalformedHistoryError
	require.ErrorAs(t, err, &mal)
}
