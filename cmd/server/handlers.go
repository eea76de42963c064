package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"marketdata/internal/cache"
	"marketdata/internal/explain"
	"marketdata/internal/outlook"
	"marketdata/internal/pattern"
	"marketdata/internal/provider"
)

// Narrow read interfaces so handler tests can substitute fakes without
// standing up real providers.
type priceGetter interface {
	Get(ctx context.Context, symbol string) (provider.PriceData, error)
}

type historyGetter interface {
	Get(ctx context.Context, symbol, period string) (provider.HistoryData, error)
}

type newsGetter interface {
	Get(ctx context.Context, symbol string) (provider.NewsData, error)
}

type outlookEngine interface {
	Compute(history provider.HistoryData, timeframeDays int) (outlook.Outlook, error)
}

type patternEngine interface {
	Compute(history provider.HistoryData, context []string) (pattern.BehaviorPattern, error)
}

type catalystGetter interface {
	Get(ctx context.Context) (provider.CatalystData, error)
}

type explainer interface {
	Explain(ctx context.Context, req explain.Request) (explain.Response, error)
}

type statsSource interface {
	Stats() cache.Stats
}

type app struct {
	log       zerolog.Logger
	prices    priceGetter
	history   historyGetter
	news      newsGetter
	store     statsSource
	outlook   outlookEngine
	pattern   patternEngine
	catalysts catalystGetter
	explain   explainer
}

// outlookHistoryPeriod is the span the hit-rate windows are computed
// over, independent of the requested timeframe.
const outlookHistoryPeriod = "3Y"

// patternHistoryPeriod is the span behavior windows are drawn from; the
// context tags narrow it, never widen it.
const patternHistoryPeriod = "5Y"

const defaultTimeframeDays = 30

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/price", requireMethod(http.MethodGet, a.handlePrice))
	mux.HandleFunc("/api/history", requireMethod(http.MethodGet, a.handleHistory))
	mux.HandleFunc("/api/news", requireMethod(http.MethodGet, a.handleNews))
	mux.HandleFunc("/api/outlook", requireMethod(http.MethodPost, a.handleOutlook))
	mux.HandleFunc("/api/pattern", requireMethod(http.MethodPost, a.handlePattern))
	mux.HandleFunc("/api/catalysts", requireMethod(http.MethodGet, a.handleCatalysts))
	mux.HandleFunc("/api/explain", requireMethod(http.MethodPost, a.handleExplain))
	mux.HandleFunc("/api/cache/stats", requireMethod(http.MethodGet, a.handleCacheStats))
	return mux
}

func requireMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next(w, r)
	}
}

func (a *app) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if strings.TrimSpace(symbol) == "" {
		writeJSONError(w, http.StatusBadRequest, "missing symbol query param")
		return
	}

	data, err := a.prices.Get(r.Context(), symbol)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, data)
}

func (a *app) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if strings.TrimSpace(symbol) == "" {
		writeJSONError(w, http.StatusBadRequest, "missing symbol query param")
		return
	}
	period := r.URL.Query().Get("period")

	data, err := a.history.Get(r.Context(), symbol, period)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, data)
}

func (a *app) handleNews(w http.ResponseWriter, r *http.Request) {
	// An empty symbol means general market news.
	data, err := a.news.Get(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, data)
}

type outlookRequest struct {
	Symbol        string `json:"symbol"`
	TimeframeDays int    `json:"timeframeDays"`
}

func (a *app) handleOutlook(w http.ResponseWriter, r *http.Request) {
	var req outlookRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		writeJSONError(w, http.StatusBadRequest, "symbol cannot be empty")
		return
	}
	if req.TimeframeDays == 0 {
		req.TimeframeDays = defaultTimeframeDays
	}

	history, err := a.history.Get(r.Context(), req.Symbol, outlookHistoryPeriod)
	if err != nil {
		a.writeError(w, err)
		return
	}
	result, err := a.outlook.Compute(history, req.TimeframeDays)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, result)
}

type patternRequest struct {
	Symbol  string   `json:"symbol"`
	Context []string `json:"context"`
}

func (a *app) handlePattern(w http.ResponseWriter, r *http.Request) {
	var req patternRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		writeJSONError(w, http.StatusBadRequest, "symbol cannot be empty")
		return
	}
	if len(req.Context) > pattern.MaxContextTags {
		writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("at most %d context tags allowed", pattern.MaxContextTags))
		return
	}

	history, err := a.history.Get(r.Context(), req.Symbol, patternHistoryPeriod)
	if err != nil {
		a.writeError(w, err)
		return
	}
	result, err := a.pattern.Compute(history, req.Context)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (a *app) handleCatalysts(w http.ResponseWriter, r *http.Request) {
	data, err := a.catalysts.Get(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, data)
}

func (a *app) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req explain.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, http.StatusBadRequest, "query cannot be empty")
		return
	}

	resp, err := a.explain.Explain(r.Context(), req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, resp)
}

func (a *app) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.store.Stats())
}

// writeError maps the typed error taxonomy onto HTTP statuses. Anything
// unrecognized is an internal error and gets logged at error level.
func (a *app) writeError(w http.ResponseWriter, err error) {
	var (
		notFound     *provider.SymbolNotFoundError
		insufficient *provider.InsufficientHistoryError
		malformed    *provider.MalformedHistoryError
		badTimeframe *provider.InvalidTimeframeError
		timeout      *provider.TimeoutError
		upstream     *provider.UpstreamError
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &insufficient):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &malformed), errors.As(err, &badTimeframe):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &upstream):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		a.log.Error().Err(err).Msg("unhandled error")
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
