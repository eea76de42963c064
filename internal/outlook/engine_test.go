package outlook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketdata/internal/provider"
)

var testNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	return NewWithClock(Config{}, func() time.Time { return testNow })
}

// historyFrom builds a valid daily history from a close series. Bars are
// flat (open = high = low = close) so only the close matters.
func historyFrom(ticker string, closes []float64) provider.HistoryData {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]provider.HistoryPoint, len(closes))
	for i, c := range closes {
		points[i] = provider.HistoryPoint{
			Date: base.AddDate(0, 0, i),
			Open: c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return provider.HistoryData{
		Ticker: ticker,
		Period: "3Y",
		Points: points,
		Source: provider.SourceMock,
	}
}

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)*0.1
	}
	return out
}

func TestCompute_TwoNonOverlappingWindows(t *testing.T) {
	// 60 points, 30-day window: one rising half, one falling half.
	closes := make([]float64, 60)
	for i := 0; i < 30; i++ {
		closes[i] = 100 + float64(i)*0.1
	}
	for i := 30; i < 60; i++ {
		closes[i] = 103 - float64(i-30)*0.1
	}

	out, err := testEngine().Compute(historyFrom("AAPL", closes), 30)
	require.NoError(t, err)

	assert.Equal(t, 0.5, out.HistoricalHitRate, "one positive window out of two")
	assert.Equal(t, SentimentMixed, out.SentimentSummary)
	assert.Equal(t, 30, out.TimeframeDays)
	assert.Equal(t, provider.SourceMock, out.Source)
	assert.Equal(t, testNow, out.GeneratedAt)
}

func TestCompute_AllWindowsPositive(t *testing.T) {
	out, err := testEngine().Compute(historyFrom("AAPL", rising(90)), 30)
	require.NoError(t, err)

	assert.Equal(t, 1.0, out.HistoricalHitRate)
	assert.Equal(t, SentimentPositive, out.SentimentSummary)
	assert.Equal(t, VolatilityLow, out.VolatilityLabel)
	assert.Contains(t, out.KeyDrivers, "Historical patterns show above-average positive windows")
	assert.Empty(t, out.VolatilityWarning)
}

func TestCompute_AllWindowsNegative(t *testing.T) {
	closes := make([]float64, 90)
	for i := range closes {
		closes[i] = 200 - float64(i)*0.1
	}

	out, err := testEngine().Compute(historyFrom("AAPL", closes), 30)
	require.NoError(t, err)

	assert.Equal(t, 0.0, out.HistoricalHitRate)
	assert.Equal(t, SentimentCautious, out.SentimentSummary)
	assert.Contains(t, out.KeyDrivers, "Recent performance below historical averages")
}

func TestCompute_HighVolatilityIsFlagged(t *testing.T) {
	// Alternating +-10% swings blow past the annualized threshold.
	closes := make([]float64, 60)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 90
		}
	}

	out, err := testEngine().Compute(historyFrom("TSLA", closes), 10)
	require.NoError(t, err)

	assert.Equal(t, VolatilityHigh, out.VolatilityLabel)
	assert.NotEmpty(t, out.VolatilityWarning)
	assert.Equal(t, SentimentCautious, out.SentimentSummary)
	assert.Contains(t, out.KeyDrivers, "Elevated price swings observed in recent trading")
}

func TestCompute_InsufficientHistory(t *testing.T) {
	_, err := testEngine().Compute(historyFrom("NVDA", rising(20)), 30)

	var ih *provider.InsufficientHistoryError
	require.ErrorAs(t, err, &ih)
	assert.Equal(t, "NVDA", ih.Ticker)
	assert.Equal(t, 30, ih.Need)
	assert.Equal(t, 20, ih.Have)
}

func TestCompute_TimeframeBounds(t *testing.T) {
	h := historyFrom("AAPL", rising(400))

	for _, days := range []int{0, 9, 366, -5} {
		_, err := testEngine().Compute(h, days)
		var bad *provider.InvalidTimeframeError
		require.ErrorAs(t, err, &bad, "timeframe %d must be rejected", days)
		assert.Equal(t, days, bad.Days)
	}

	for _, days := range []int{10, 365} {
		_, err := testEngine().Compute(h, days)
		require.NoError(t, err, "timeframe %d is within bounds", days)
	}
}

func TestCompute_RejectsMalformedHistory(t *testing.T) {
	h := historyFrom("AAPL", rising(60))
	h.Points[10].Date = h.Points[9].Date // duplicate date

	_, err := testEngine().Compute(h, 30)
	var mal *provider.MalformedHistoryError
	require.ErrorAs(t, err, &mal)
}

func TestCompute_Deterministic(t *testing.T) {
	h := historyFrom("NVDA", rising(120))

	first, err := testEngine().Compute(h, 30)
	require.NoError(t, err)
	second, err := testEngine().Compute(h, 30)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCompute_StatisticsStayBounded(t *testing.T) {
	series := [][]float64{
		rising(60),
		{100, 90, 110, 95, 105, 100, 92, 108, 99, 101, 100, 97},
	}
	for _, closes := range series {
		if len(closes) < 10 {
			continue
		}
		out, err := testEngine().Compute(historyFrom("AAPL", closes), 10)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, out.HistoricalHitRate, 0.0)
		assert.LessOrEqual(t, out.HistoricalHitRate, 1.0)
		assert.GreaterOrEqual(t, out.VolatilityBand, 0.0)
		assert.NotEmpty(t, out.KeyDrivers)
	}
}

func TestCompute_SectorDrivers(t *testing.T) {
	nvda, err := testEngine().Compute(historyFrom("NVDA", rising(60)), 30)
	require.NoError(t, err)
	assert.Equal(t, "AI infrastructure spending trends", nvda.KeyDrivers[0])

	unknown, err := testEngine().Compute(historyFrom("ZZZT", rising(60)), 30)
	require.NoError(t, err)
	assert.Equal(t, "Federal Reserve policy stance", unknown.KeyDrivers[0])
}

func TestKeyDrivers_ComparesAgainstTickerBaselines(t *testing.T) {
	// A hit rate above AAPL's long-run up-rate reads as above-average.
	drivers := keyDrivers("AAPL", VolatilityLow, SentimentPositive, 0.80, 0.01)
	assert.Contains(t, drivers, "Historical patterns show above-average positive windows")

	// Positive sentiment that does not clear the up-rate gets no note.
	drivers = keyDrivers("AAPL", VolatilityLow, SentimentPositive, 0.61, 0.01)
	assert.NotContains(t, drivers, "Historical patterns show above-average positive windows")

	// A moderate band over the ticker's typical swing is called out.
	drivers = keyDrivers("AAPL", VolatilityModerate, SentimentMixed, 0.50, 0.09)
	assert.Contains(t, drivers, "Price swings running above this ticker's typical range")
	drivers = keyDrivers("AAPL", VolatilityModerate, SentimentMixed, 0.50, 0.03)
	assert.NotContains(t, drivers, "Price swings running above this ticker's typical range")

	// Unknown tickers compare against the broad-market defaults.
	drivers = keyDrivers("ZZZT", VolatilityLow, SentimentCautious, 0.30, 0.01)
	assert.Equal(t, "Federal Reserve policy stance", drivers[0])
	assert.Contains(t, drivers, "Recent performance below historical averages")
}

func TestWindowReturns_RollingWhenDataIsPlentiful(t *testing.T) {
	returns := windowReturns(rising(100), 10)
	assert.Len(t, returns, 91, "rolling step-1 windows")

	two := windowReturns(rising(60), 30)
	assert.Len(t, two, 2, "exactly two full windows stay non-overlapping")
}

func TestClassifyVolatility_Boundaries(t *testing.T) {
	e := testEngine()
	assert.Equal(t, VolatilityLow, e.classifyVolatility(0.19))
	assert.Equal(t, VolatilityModerate, e.classifyVolatility(0.20))
	assert.Equal(t, VolatilityModerate, e.classifyVolatility(0.39))
	assert.Equal(t, VolatilityHigh, e.classifyVolatility(0.40))
}
