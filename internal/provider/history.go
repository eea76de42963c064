package provider

import (
	"context"

	"golang.org/x/sync/singleflight"

	"marketdata/internal/cache"
)

// HistoryFetchFunc fetches OHLCV history for one symbol and normalized
// period. Implementations must not fill Ticker, Timestamp or Source.
type HistoryFetchFunc func(ctx context.Context, symbol, period string) (HistoryData, error)

// HistoryProvider is the canonical source of truth for price history.
// Each (symbol, period) pair caches under its own key.
type HistoryProvider struct {
	store *cache.Store
	fetch HistoryFetchFunc
	opts  Options
	sf    singleflight.Group
}

func NewHistoryProvider(store *cache.Store, fetch HistoryFetchFunc, opts Options) *HistoryProvider {
	opts.fill(DefaultHistoryTTL)
	return &HistoryProvider{store: store, fetch: fetch, opts: opts}
}

// Get returns history for symbol over period. Unknown periods fall back to
// DefaultPeriod rather than failing; the normalized period is what lands in
// the cache key and the result.
func (p *HistoryProvider) Get(ctx context.Context, symbol, period string) (HistoryData, error) {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return HistoryData{}, &SymbolNotFoundError{Symbol: symbol}
	}
	per := NormalizePeriod(period)
	key := HistoryKey(sym, per)

	if v, ok := p.store.Get(key); ok {
		data, ok := v.(HistoryData)
		if !ok {
			return HistoryData{}, &ConsistencyError{Reason: "unexpected payload type under " + key}
		}
		p.opts.Logger.Debug().Str("key", key).Msg("cache hit")
		return data, nil
	}

	ch := p.sf.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.FetchTimeout)
		defer cancel()

		data, err := p.fetch(fctx, sym, per)
		if err != nil {
			return nil, classifyFetchErr(err, p.opts.Source)
		}
		if err := data.Validate(); err != nil {
			// A fetch strategy handing back unsorted bars is a defect in
			// the strategy, not in the caller's request.
			return nil, err
		}
		data.Ticker = sym
		data.Period = per
		data.Timestamp = p.opts.Clock().UTC()
		data.Source = p.opts.Source
		p.store.Set(key, data, p.opts.TTL)
		p.opts.Logger.Info().Str("symbol", sym).Str("period", per).
			Int("points", len(data.Points)).Str("source", data.Source).Msg("fetched history")
		return data, nil
	})

	select {
	case <-ctx.Done():
		return HistoryData{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return HistoryData{}, res.Err
		}
		return res.Val.(HistoryData), nil
	}
}
