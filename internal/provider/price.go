package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"marketdata/internal/cache"
)

// Default TTLs per data kind, matching how often each kind actually moves.
const (
	DefaultPriceTTL   = 30 * time.Second
	DefaultHistoryTTL = time.Hour
	DefaultNewsTTL    = 6 * time.Hour

	// DefaultFetchTimeout bounds a single upstream fetch so a hung call
	// cannot block every coalesced waiter indefinitely.
	DefaultFetchTimeout = 10 * time.Second
)

// PriceFetchFunc fetches a quote snapshot for one symbol. Implementations
// must not fill Ticker, Timestamp or Source; the provider stamps those.
type PriceFetchFunc func(ctx context.Context, symbol string) (PriceData, error)

// Options configures a provider. Zero values take the defaults above.
type Options struct {
	// Source is stamped on every fetched result ("mock", "yahoo", ...).
	Source string
	// TTL overrides the per-kind default cache TTL.
	TTL time.Duration
	// FetchTimeout bounds each upstream fetch.
	FetchTimeout time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
	// Logger for cache hit/miss and fetch events.
	Logger zerolog.Logger
}

func (o *Options) fill(kindTTL time.Duration) {
	if o.Source == "" {
		o.Source = SourceMock
	}
	if o.TTL <= 0 {
		o.TTL = kindTTL
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// PriceProvider is the canonical source of truth for current quote
// snapshots: one cache, one coalesced fetch path, provenance on every
// result. The fetch strategy (mock or live) is fixed at construction.
type PriceProvider struct {
	store *cache.Store
	fetch PriceFetchFunc
	opts  Options
	sf    singleflight.Group
}

func NewPriceProvider(store *cache.Store, fetch PriceFetchFunc, opts Options) *PriceProvider {
	opts.fill(DefaultPriceTTL)
	return &PriceProvider{store: store, fetch: fetch, opts: opts}
}

// Get returns the current quote for symbol, serving from cache when fresh.
// On a miss, concurrent callers for the same symbol share a single fetch;
// a caller whose context is cancelled while waiting detaches with the
// context error without cancelling the fetch for the others.
func (p *PriceProvider) Get(ctx context.Context, symbol string) (PriceData, error) {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return PriceData{}, &SymbolNotFoundError{Symbol: symbol}
	}
	key := PriceKey(sym)

	if v, ok := p.store.Get(key); ok {
		data, ok := v.(PriceData)
		if !ok {
			return PriceData{}, &ConsistencyError{Reason: "unexpected payload type under " + key}
		}
		p.opts.Logger.Debug().Str("key", key).Msg("cache hit")
		return data, nil
	}

	ch := p.sf.DoChan(key, func() (any, error) {
		// The fetch is shared between waiters, so it must not die with the
		// first caller's context; it gets its own deadline instead.
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
		p.opts.Logger.Info().Str("symbol", sym).Str("source", data.Source).
			Float64("price", data.CurrentPrice).Msg("fetched price")
		return data, nil
	})

	select {
	case <-ctx.Done():
		return PriceData{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return PriceData{}, res.Err
		}
		return res.Val.(PriceData), nil
	}
}

// classifyFetchErr converts context deadline exhaustion into the typed
// timeout error; everything already typed passes through unchanged.
func classifyFetchErr(err error, service string) error {
	var notFound *SymbolNotFoundError
	var upstream *UpstreamError
	var timeout *TimeoutError
	switch {
	case errors.As(err, &notFound), errors.As(err, &upstream), errors.As(err, &timeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &TimeoutError{Service: service, Err: err}
	default:
		return &UpstreamError{Service: service, Err: err}
	}
}
