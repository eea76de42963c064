package mockfeed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var anchor = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func TestFetchPrice_Deterministic(t *testing.T) {
	g := NewWithAnchor(anchor)

	first, err := g.FetchPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	second, err := g.FetchPrice(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 185.0, first.CurrentPrice)
	assert.InDelta(t, first.CurrentPrice-first.PreviousClose, first.Change, 1e-9)
}

func TestFetchPrice_UnknownSymbolStillStable(t *testing.T) {
	g := NewWithAnchor(anchor)

	a1, err := g.FetchPrice(context.Background(), "ZZZT")
	require.NoError(t, err)
	a2, err := g.FetchPrice(context.Background(), "ZZZT")
	require.NoError(t, err)
	b, err := g.FetchPrice(context.Background(), "YYXW")
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1.CurrentPrice, b.CurrentPrice)
	assert.GreaterOrEqual(t, a1.CurrentPrice, 50.0)
	assert.LessOrEqual(t, a1.CurrentPrice, 500.0)
}

func TestFetchHistory_DeterministicAndValid(t *testing.T) {
	g := NewWithAnchor(anchor)

	first, err := g.FetchHistory(context.Background(), "NVDA", "1Y")
	require.NoError(t, err)
	second, err := g.FetchHistory(context.Background(), "NVDA", "1Y")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.Points, 252)
	assert.Equal(t, "1d", first.Interval)
	require.NoError(t, first.Validate(), "generated bars must satisfy the OHLC invariants")

	last := first.Points[len(first.Points)-1]
	assert.Equal(t, anchor, last.Date)
}

func TestFetchHistory_BarSpacingMatchesInterval(t *testing.T) {
	g := NewWithAnchor(anchor)

	day, err := g.FetchHistory(context.Background(), "AAPL", "1D")
	require.NoError(t, err)
	require.Len(t, day.Points, 78)
	assert.Equal(t, "5m", day.Interval)
	for i := 1; i < len(day.Points); i++ {
		assert.Equal(t, 5*time.Minute, day.Points[i].Date.Sub(day.Points[i-1].Date))
	}
	assert.Equal(t, anchor, day.Points[len(day.Points)-1].Date)
	// 78 five-minute bars span one trading session, not 78 days.
	assert.WithinDuration(t, anchor, day.Points[0].Date, 24*time.Hour)

	week, err := g.FetchHistory(context.Background(), "AAPL", "1W")
	require.NoError(t, err)
	assert.Equal(t, "15m", week.Interval)
	assert.Equal(t, 15*time.Minute, week.Points[1].Date.Sub(week.Points[0].Date))

	fiveYears, err := g.FetchHistory(context.Background(), "AAPL", "5Y")
	require.NoError(t, err)
	assert.Equal(t, "1wk", fiveYears.Interval)
	assert.Equal(t, 7*24*time.Hour, fiveYears.Points[1].Date.Sub(fiveYears.Points[0].Date))
}

func TestFetchHistory_DistinctPeriodsDiffer(t *testing.T) {
	g := NewWithAnchor(anchor)

	oneMonth, err := g.FetchHistory(context.Background(), "NVDA", "1M")
	require.NoError(t, err)
	sixMonths, err := g.FetchHistory(context.Background(), "NVDA", "6M")
	require.NoError(t, err)

	assert.Len(t, oneMonth.Points, 22)
	assert.Len(t, sixMonths.Points, 130)
	assert.NotEqual(t, oneMonth.Points[0].Close, sixMonths.Points[0].Close)
}

func TestFetchHistory_UnknownPeriodFallsBack(t *testing.T) {
	g := NewWithAnchor(anchor)

	data, err := g.FetchHistory(context.Background(), "NVDA", "9Q")
	require.NoError(t, err)
	assert.Equal(t, "1M", data.Period)
	assert.Len(t, data.Points, 22)
}

func TestFetchNews_DeterministicIDs(t *testing.T) {
	g := NewWithAnchor(anchor)

	first, err := g.FetchNews(context.Background(), "AAPL")
	require.NoError(t, err)
	second, err := g.FetchNews(context.Background(), "AAPL")
	require.NoError(t, err)

	require.Len(t, first.Items, 5)
	assert.Equal(t, first, second)
	assert.Contains(t, first.Items[0].Title, "AAPL")
	assert.NotEmpty(t, first.Items[0].ID)
	assert.NotEqual(t, first.Items[0].ID, first.Items[1].ID)
}

func TestFetchCatalysts_FixedCalendar(t *testing.T) {
	g := NewWithAnchor(anchor)

	data, err := g.FetchCatalysts(context.Background())
	require.NoError(t, err)
	require.Len(t, data.Events, 7)

	first := data.Events[0]
	assert.Equal(t, "earnings", first.Type)
	assert.Equal(t, "UNH", first.Ticker)
	assert.Equal(t, anchor.Add(13*time.Hour).AddDate(0, 0, 1), first.Date)
	assert.Equal(t, "high", first.Confidence)

	var macro int
	for i, ev := range data.Events {
		if ev.Type == "fed" || ev.Type == "cpi" || ev.Type == "ppi" {
			macro++
			assert.Empty(t, ev.Ticker, "macro events carry no ticker")
		}
		if i > 0 {
			assert.True(t, data.Events[i-1].Date.Before(ev.Date), "events sorted by date")
		}
	}
	assert.Equal(t, 3, macro)
}

func TestFetchNews_MarketNewsKeepsGenericHeadlines(t *testing.T) {
	g := NewWithAnchor(anchor)

	data, err := g.FetchNews(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, data.Items[0].Title, "Company")
}
