// Package handler exposes the query engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/logger"
)

// Searcher answers a query. Both the executor and the query cache satisfy it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error)
}

// Index is the snapshot lifecycle the handler reports on and reloads.
type Index interface {
	Stats() snapshot.Stats
	Reload() (snapshot.Stats, error)
}

// Invalidator drops cached results after a reload.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Handler struct {
	searcher     Searcher
	index        Index
	cache        Invalidator
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New builds a Handler. cache may be nil.
func New(searcher Searcher, idx Index, cache Invalidator, defaultLimit, maxResults int) *Handler {
	if maxResults < defaultLimit {
		maxResults = defaultLimit
	}
	return &Handler{
		searcher:     searcher,
		index:        idx,
		cache:        cache,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.maxResults)
	}

	result, err := h.searcher.Search(ctx, query, limit)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("search failed", "query", query, "status", status, "error", err)
		h.writeError(w, status, "search failed")
		return
	}

	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"generation", result.Generation,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.index.Stats())
}

// Reload swaps in the index currently on disk. The previous snapshot keeps
// serving if the new one fails to load.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	stats, err := h.index.Reload()
	if err != nil {
		logger.FromContext(r.Context()).Error("index reload failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "index reload failed")
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
