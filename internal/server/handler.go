// Package server exposes draws and predictions over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/rewired-gh/lottoracle/internal/logger"
	"github.com/rewired-gh/lottoracle/internal/models"
	"github.com/rewired-gh/lottoracle/internal/storage"
)

// Version is reported by the root endpoint.
var Version = "1.0.0"

// History list limits.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

const (
	msgNoData      = "查無資料"
	msgFetchFailed = "資料擷取失敗"
)

// Predictor runs a full analysis.
type Predictor interface {
	Predict(ctx context.Context) *models.AnalysisResult
}

// DrawFetcher fetches one month of draws.
type DrawFetcher interface {
	FetchMonth(ctx context.Context, game models.Game, year int, month time.Month) ([]models.DrawRecord, error)
}

// History reads stored predictions.
type History interface {
	GetPrediction(id string) (*models.AnalysisResult, error)
	ListPredictions(limit int) ([]*models.AnalysisResult, error)
}

// Options configures a Handler.
type Options struct {
	// CacheTTL is how long a successful prediction is served from memory.
	// Zero disables the cache.
	CacheTTL       time.Duration
	CacheSize      int
	AllowedOrigins []string
	// Now defaults to time.Now and picks the month when none is requested.
	Now func() time.Time
}

// Handler serves the HTTP API.
type Handler struct {
	fetcher   DrawFetcher
	predictor Predictor
	history   History

	cache    *expirable.LRU[string, *models.AnalysisResult]
	inflight singleflight.Group
	now      func() time.Time
	mux      *http.ServeMux
	root     http.Handler
}

// NewHandler wires the routes. history may be nil when storage is disabled.
func NewHandler(fetcher DrawFetcher, predictor Predictor, history History, opts Options) *Handler {
	h := &Handler{
		fetcher:   fetcher,
		predictor: predictor,
		history:   history,
		now:       opts.Now,
		mux:       http.NewServeMux(),
	}
	if h.now == nil {
		h.now = time.Now
	}
	if opts.CacheTTL > 0 {
		size := opts.CacheSize
		if size <= 0 {
			size = 16
		}
		h.cache = expirable.NewLRU[string, *models.AnalysisResult](size, nil, opts.CacheTTL)
	}

	h.mux.HandleFunc("GET /{$}", h.handleRoot)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /api/lotto649", h.handleDraws(models.Lotto649))
	h.mux.HandleFunc("GET /api/super_lotto", h.handleDraws(models.SuperLotto638))
	h.mux.HandleFunc("GET /api/daily_cash", h.handleDraws(models.Daily539))
	h.mux.HandleFunc("GET /api/lotto649/predict", h.handlePredict)
	h.mux.HandleFunc("GET /api/predictions", h.handleListPredictions)
	h.mux.HandleFunc("GET /api/predictions/{id}", h.handleGetPrediction)

	h.root = RequestLogger(CORS(opts.AllowedOrigins, h.mux))
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "台灣彩券 API 服務",
		"version": Version,
		"endpoints": map[string]string{
			"lotto649":         "/api/lotto649",
			"lotto649_predict": "/api/lotto649/predict",
			"super_lotto":      "/api/super_lotto",
			"daily_cash":       "/api/daily_cash",
			"predictions":      "/api/predictions",
		},
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Backend service is running",
	})
}

func (h *Handler) handleDraws(game models.Game) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, month, err := parseYearMonth(r.URL.Query().Get("year"), r.URL.Query().Get("month"), h.now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		draws, err := h.fetcher.FetchMonth(r.Context(), game, year, month)
		if err != nil {
			logger.Error("Failed to fetch %s %04d-%02d: %v", game.ID, year, int(month), err)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgFetchFailed, err))
			return
		}
		if len(draws) == 0 {
			writeError(w, http.StatusNotFound, msgNoData)
			return
		}
		writeJSON(w, http.StatusOK, draws)
	}
}

// handlePredict always answers 200: failures are carried in the result status.
// Concurrent requests share one run, and successful results with recommended
// sets are cached.
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	key := models.Lotto649.ID
	if h.cache != nil {
		if res, ok := h.cache.Get(key); ok {
			logger.Debug("Serving cached prediction %s", res.ID)
			writeJSON(w, http.StatusOK, res)
			return
		}
	}

	v, _, shared := h.inflight.Do(key, func() (any, error) {
		// The run outlives a client that disconnects; others may be waiting on it.
		res := h.predictor.Predict(context.WithoutCancel(r.Context()))
		if h.cache != nil && res.Status == models.StatusSuccess && len(res.RecommendedSets) > 0 {
			h.cache.Add(key, res)
		}
		return res, nil
	})
	if shared {
		logger.Debug("Joined in-flight prediction")
	}
	writeJSON(w, http.StatusOK, v.(*models.AnalysisResult))
}

func (h *Handler) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction history is disabled")
		return
	}

	limit := DefaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	results, err := h.history.ListPredictions(limit)
	if err != nil {
		logger.Error("Failed to list predictions: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction history is disabled")
		return
	}

	id := r.PathValue("id")
	res, err := h.history.GetPrediction(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNoData)
		return
	}
	if err != nil {
		logger.Error("Failed to get prediction %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get prediction")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseYearMonth reads the optional year and month query parameters. Both or
// neither must be given; neither means the month of now.
func parseYearMonth(yearStr, monthStr string, now time.Time) (int, time.Month, error) {
	if yearStr == "" && monthStr == "" {
		return now.Year(), now.Month(), nil
	}
	if yearStr == "" || monthStr == "" {
		return 0, 0, errors.New("year and month must be given together")
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 1 || year > 9999 {
		return 0, 0, fmt.Errorf("invalid year %q", yearStr)
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month %q: must be 1-12", monthStr)
	}
	return year, time.Month(month), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
