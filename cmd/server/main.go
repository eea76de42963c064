package main

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"marketdata/internal/cache"
	"marketdata/internal/config"
	"marketdata/internal/explain"
	"marketdata/internal/httpx"
	"marketdata/internal/logging"
	"marketdata/internal/outlook"
	"marketdata/internal/pattern"
	"marketdata/internal/provider"
	"marketdata/internal/provider/mockfeed"
	"marketdata/internal/provider/yahoo"
	"marketdata/internal/ratelimit"
)

func main() {
	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	store := cache.New()

	// Fetch strategies: one deterministic mock generator, or the live
	// Yahoo adapter behind a token bucket. News has no live source and
	// always comes from the generator.
	feed := mockfeed.New()
	priceFetch := provider.PriceFetchFunc(feed.FetchPrice)
	historyFetch := provider.HistoryFetchFunc(feed.FetchHistory)
	source := provider.SourceMock
	if !cfg.Data.UseMockData {
		yc := yahoo.New(
			yahoo.WithHTTPClient(httpx.New(cfg.Data.FetchTimeout())),
			yahoo.WithLimiter(ratelimit.PerMinute(cfg.Data.MaxRequestsPerMinute, cfg.Data.Burst)),
		)
		priceFetch = yc.FetchPrice
		historyFetch = yc.FetchHistory
		source = provider.SourceYahoo
	}

	prices := provider.NewPriceProvider(store, priceFetch, provider.Options{
		Source:       source,
		TTL:          cfg.Data.PriceTTL(),
		FetchTimeout: cfg.Data.FetchTimeout(),
		Logger:       logger.With().Str("provider", "price").Logger(),
	})
	history := provider.NewHistoryProvider(store, historyFetch, provider.Options{
		Source:       source,
		TTL:          cfg.Data.HistoryTTL(),
		FetchTimeout: cfg.Data.FetchTimeout(),
		Logger:       logger.With().Str("provider", "history").Logger(),
	})
	news := provider.NewNewsProvider(store, feed.FetchNews, provider.Options{
		Source:       provider.SourceMock,
		TTL:          cfg.Data.NewsTTL(),
		FetchTimeout: cfg.Data.FetchTimeout(),
		Logger:       logger.With().Str("provider", "news").Logger(),
	})
	// The catalyst calendar has no live source either; its cache key is
	// day-scoped, so the calendar regenerates each UTC day.
	catalysts := provider.NewCatalystProvider(store, feed.FetchCatalysts, provider.Options{
		Source:       provider.SourceMock,
		FetchTimeout: cfg.Data.FetchTimeout(),
		Logger:       logger.With().Str("provider", "catalysts").Logger(),
	})

	engine := outlook.New(outlook.Config{
		PositiveHitRate: cfg.Outlook.PositiveHitRate,
		CautiousHitRate: cfg.Outlook.CautiousHitRate,
		HighVolatility:  cfg.Outlook.HighVolatility,
		Logger:          logger.With().Str("component", "outlook").Logger(),
	})
	patterns := pattern.New(logger.With().Str("component", "pattern").Logger())

	var chatClient *explain.ChatClient
	if !cfg.Data.UseMockData && cfg.OpenAI.APIKey != "" {
		opts := []explain.ChatClientOption{explain.WithModel(cfg.OpenAI.Model)}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, explain.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		chatClient = explain.NewChatClient(cfg.OpenAI.APIKey, opts...)
	}
	explainer := explain.NewService(explain.Options{
		Client: chatClient,
		Logger: logger.With().Str("component", "explain").Logger(),
	})

	a := &app{
		log:       logger,
		prices:    prices,
		history:   history,
		news:      news,
		store:     store,
		outlook:   engine,
		pattern:   patterns,
		catalysts: catalysts,
		explain:   explainer,
	}

	// Periodic sweep keeps the lazy-expiring cache from accumulating
	// dead entries for keys nobody asks for again.
	sweeper := cron.New()
	_, err = sweeper.AddFunc(fmt.Sprintf("@every %dm", cfg.Data.CacheSweepMinutes), func() {
		removed := store.CleanupExpired()
		stats := store.Stats()
		logger.Debug().
			Int("removed", removed).
			Int("size", stats.Size).
			Float64("hit_rate", stats.HitRate).
			Msg("cache sweep")
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("cache sweep schedule")
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(limitBody(a.routes())))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Server.Port).
			Bool("mock_data", cfg.Data.UseMockData).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server")
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser usage; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		// Prefer best speed to reduce CPU usage since payloads are JSON
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20 // 1MB
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
