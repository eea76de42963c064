package provider

import (
	"context"

	"golang.org/x/sync/singleflight"

	"marketdata/internal/cache"
)

// NewsFetchFunc fetches news for one symbol; an empty symbol means general
// market news. Implementations must not fill Timestamp or Source.
type NewsFetchFunc func(ctx context.Context, symbol string) (NewsData, error)

// NewsProvider is the canonical source of truth for news items. The data is
// mock-only today, but it runs through the identical cache + coalesced
// fetch path as the other kinds so a live feed is a constructor argument
// away.
type NewsProvider struct {
	store *cache.Store
	fetch NewsFetchFunc
	opts  Options
	sf    singleflight.Group
}

func NewNewsProvider(store *cache.Store, fetch NewsFetchFunc, opts Options) *NewsProvider {
	opts.fill(DefaultNewsTTL)
	return &NewsProvider{store: store, fetch: fetch, opts: opts}
}

// Get returns news for symbol, or market-wide news when symbol is empty.
func (p *NewsProvider) Get(ctx context.Context, symbol string) (NewsData, error) {
	sym := NormalizeSymbol(symbol)
	key := NewsKey(sym)

	if v, ok := p.store.Get(key); ok {
		data, ok := v.(NewsData)
		if !ok {
			return NewsData{}, &ConsistencyError{Reason: "unexpected payload type under " + key}
		}
		p.opts.Logger.Debug().Str("key", key).Msg("cache hit")
		return data, nil
	}

	ch := p.sf.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.FetchTimeout)
		defer cancel()

		data, err := p.fetch(fctx, sym)
		if err != nil {
			return nil, classifyFetchErr(err, p.opts.Source)
		}
		data.Ticker = sym
		data.Timestamp = p.opts.Clock().UTC()
		data.Source = p.opts.Source
		p.store.Set(key, data, p.opts.TTL)
		p.opts.Logger.Info().Str("key", key).Int("items", len(data.Items)).Msg("fetched news")
		return data, nil
	})

	select {
	case <-ctx.Done():
		return NewsData{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return NewsData{}, res.Err
		}
		return res.Val.(NewsData), nil
	}
}
