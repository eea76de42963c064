// Package yahoo implements the live fetch strategies against the Yahoo
// Finance chart API. It conforms to the same shapes and error taxonomy as
// the mock strategies, so providers cannot tell the two apart.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"marketdata/internal/httpx"
	"marketdata/internal/provider"
	"marketdata/internal/ratelimit"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client fetches quotes and history from Yahoo Finance.
type Client struct {
	http      *httpx.Client
	baseURL   string
	limiter   *ratelimit.TokenBucket
	symbolMap map[string]string
}

type Option func(*Client)

// WithBaseURL points the client at a different endpoint (tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *httpx.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLimiter gates every upstream call through a token bucket.
func WithLimiter(tb *ratelimit.TokenBucket) Option {
	return func(c *Client) { c.limiter = tb }
}

// WithSymbolMap maps app symbols to Yahoo tickers (e.g. SPX -> ^GSPC).
func WithSymbolMap(m map[string]string) Option {
	return func(c *Client) { c.symbolMap = m }
}

func New(opts ...Option) *Client {
	c := &Client{
		http:    httpx.New(10 * time.Second),
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// chartResponse is the subset of the chart API payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice     float64 `json:"regularMarketPrice"`
				ChartPreviousClose     float64 `json:"chartPreviousClose"`
				PreviousClose          float64 `json:"previousClose"`
				RegularMarketDayHigh   float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow    float64 `json:"regularMarketDayLow"`
				FiftyTwoWeekHigh       float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow        float64 `json:"fiftyTwoWeekLow"`
				RegularMarketVolume    int64   `json:"regularMarketVolume"`
				RegularMarketDayVolume int64   `json:"regularMarketDayVolume"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchPrice implements provider.PriceFetchFunc.
func (c *Client) FetchPrice(ctx context.Context, symbol string) (provider.PriceData, error) {
	chart, err := c.fetchChart(ctx, symbol, "1d", "1d")
	if err != nil {
		return provider.PriceData{}, err
	}

	meta := chart.Chart.Result[0].Meta
	if meta.RegularMarketPrice == 0 {
		return provider.PriceData{}, &provider.SymbolNotFoundError{Symbol: symbol}
	}

	prev := meta.ChartPreviousClose
	if meta.PreviousClose != 0 {
		prev = meta.PreviousClose
	}
	change := meta.RegularMarketPrice - prev
	var changePct float64
	if prev != 0 {
		changePct = change / prev * 100
	}

	volume := meta.RegularMarketVolume
	if volume == 0 {
		volume = meta.RegularMarketDayVolume
	}

	return provider.PriceData{
		CurrentPrice:  round2(meta.RegularMarketPrice),
		PreviousClose: round2(prev),
		Change:        round2(change),
		ChangePercent: round2(changePct),
		DayHigh:       round2(meta.RegularMarketDayHigh),
		DayLow:        round2(meta.RegularMarketDayLow),
		Week52High:    round2(meta.FiftyTwoWeekHigh),
		Week52Low:     round2(meta.FiftyTwoWeekLow),
		Volume:        volume,
	}, nil
}

// FetchHistory implements provider.HistoryFetchFunc. Bars with missing
// fields (halts, partial sessions) are skipped rather than zero-filled.
func (c *Client) FetchHistory(ctx context.Context, symbol, period string) (provider.HistoryData, error) {
	rng, interval := provider.PeriodRange(period)
	chart, err := c.fetchChart(ctx, symbol, interval, rng)
	if err != nil {
		return provider.HistoryData{}, err
	}

	result := chart.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return provider.HistoryData{}, &provider.SymbolNotFoundError{Symbol: symbol}
	}
	quote := result.Indicators.Quote[0]

	points := make([]provider.HistoryPoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		o, h, l, cl := quote.Open[i], quote.High[i], quote.Low[i], quote.Close[i]
		if o == nil || h == nil || l == nil || cl == nil {
			continue
		}
		var vol int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			vol = *quote.Volume[i]
		}
		points = append(points, provider.HistoryPoint{
			Date:   time.Unix(ts, 0).UTC(),
			Open:   round2(*o),
			High:   round2(*h),
			Low:    round2(*l),
			Close:  round2(*cl),
			Volume: vol,
		})
	}
	if len(points) == 0 {
		return provider.HistoryData{}, &provider.SymbolNotFoundError{Symbol: symbol}
	}

	return provider.HistoryData{Interval: interval, Points: points}, nil
}

func (c *Client) yahooSymbol(symbol string) string {
	if mapped, ok := c.symbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

func (c *Client) fetchChart(ctx context.Context, symbol, interval, rng string) (*chartResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		c.baseURL, url.PathEscape(c.yahooSymbol(symbol)), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, &provider.UpstreamError{Service: provider.SourceYahoo, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		// Deadline errors bubble up unwrapped so the provider can convert
		// them into the typed timeout.
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &provider.SymbolNotFoundError{Symbol: symbol}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.UpstreamError{
			Service: provider.SourceYahoo,
			Err:     fmt.Errorf("GET %s -> %d", u, resp.StatusCode),
		}
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, &provider.UpstreamError{Service: provider.SourceYahoo, Err: fmt.Errorf("decode: %w", err)}
	}
	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" {
			return nil, &provider.SymbolNotFoundError{Symbol: symbol}
		}
		return nil, &provider.UpstreamError{
			Service: provider.SourceYahoo,
			Err:     fmt.Errorf("api error: %s", chart.Chart.Error.Description),
		}
	}
	if len(chart.Chart.Result) == 0 {
		return nil, &provider.SymbolNotFoundError{Symbol: symbol}
	}
	return &chart, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
