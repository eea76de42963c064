package provider

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"marketdata/internal/cache"
)

// Catalyst event types.
const (
	CatalystEarnings = "earnings"
	CatalystDividend = "dividend"
	CatalystSplit    = "split"
	CatalystFed      = "fed"
	CatalystCPI      = "cpi"
	CatalystPPI      = "ppi"
	CatalystSector   = "sector"
)

// Confidence levels for catalyst events.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// CatalystEvent is one upcoming calendar entry. Macro events (fed, cpi,
// ppi) carry no ticker; sector events carry the sector ETF.
type CatalystEvent struct {
	Type       string    `json:"type"`
	Ticker     string    `json:"ticker,omitempty"`
	Date       time.Time `json:"date"`
	Confidence string    `json:"confidence"`
}

// CatalystData is the canonical catalyst calendar shape.
type CatalystData struct {
	Events    []CatalystEvent `json:"events"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
}

// DefaultCatalystTTL bounds a calendar entry's lifetime. Freshness comes
// from the date-scoped key, which rolls at the UTC day boundary.
const DefaultCatalystTTL = 24 * time.Hour

// CatalystFetchFunc fetches the upcoming calendar. Implementations must
// not fill Timestamp or Source.
type CatalystFetchFunc func(ctx context.Context) (CatalystData, error)

// CatalystKey scopes the calendar cache to one UTC day.
func CatalystKey(day time.Time) string {
	return "catalysts:" + day.UTC().Format("2006-01-02")
}

// CatalystProvider is the canonical source of the catalyst calendar. It
// runs the identical cache + coalesced fetch path as the other kinds;
// the calendar regenerates once per UTC day.
type CatalystProvider struct {
	store *cache.Store
	fetch CatalystFetchFunc
	opts  Options
	sf    singleflight.Group
}

func NewCatalystProvider(store *cache.Store, fetch CatalystFetchFunc, opts Options) *CatalystProvider {
	opts.fill(DefaultCatalystTTL)
	return &CatalystProvider{store: store, fetch: fetch, opts: opts}
}

// Get returns today's catalyst calendar.
func (p *CatalystProvider) Get(ctx context.Context) (CatalystData, error) {
	key := CatalystKey(p.opts.Clock())

	if v, ok := p.store.Get(key); ok {
		data, ok := v.(CatalystData)
		if !ok {
			return CatalystData{}, &ConsistencyError{Reason: "unexpected payload type under " + key}
		}
		p.opts.Logger.Debug().Str("key", key).Msg("cache hit")
		return data, nil
	}

	ch := p.sf.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.FetchTimeout)
		defer cancel()

		data, err := p.fetch(fctx)
		if err != nil {
			return nil, classifyFetchErr(err, p.opts.Source)
		}
		data.Timestamp = p.opts.Clock().UTC()
		data.Source = p.opts.Source
		p.store.Set(key, data, p.opts.TTL)
		p.opts.Logger.Info().Str("key", key).Int("events", len(data.Events)).Msg("fetched catalysts")
		return data, nil
	})

	select {
	case <-ctx.Done():
		return CatalystData{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return CatalystData{}, res.Err
		}
		return res.Val.(CatalystData), nil
	}
}
