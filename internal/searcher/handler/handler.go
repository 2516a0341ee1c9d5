package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/journal-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/middleware"
)

const dateLayout = time.DateOnly

// Searcher runs ranked searches.
type Searcher interface {
	Search(query string, opts executor.Options) []executor.Hit
	Location() *time.Location
	Today() string
	Generation() uint64
}

// Index reports the size of the index.
type Index interface {
	Size() int
	TermCount() int
	Generation() uint64
}

// Resyncer reloads the index from its source.
type Resyncer interface {
	Resync(ctx context.Context) (indexer.SyncStats, error)
	LastSync() time.Time
}

// Config carries the optional collaborators and limits of a Handler.
type Config struct {
	Cache         *cache.QueryCache
	Collector     *analytics.Collector
	Metrics       *metrics.Metrics
	DefaultLimit  int
	MaxResults    int
	SnippetLength int
	QueryTimeout  time.Duration
}

type Handler struct {
	searcher Searcher
	index    Index
	resyncer Resyncer
	cfg      Config
	logger   *slog.Logger
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Query      string         `json:"query"`
	Terms      []string       `json:"terms"`
	Total      int            `json:"total"`
	Results    []executor.Hit `json:"results"`
	CacheHit   bool           `json:"cache_hit"`
	Generation uint64         `json:"generation"`
	TookMicros int64          `json:"took_us"`
}

func New(searcher Searcher, index Index, resyncer Resyncer, cfg Config) *Handler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = executor.DefaultLimit
	}
	if cfg.MaxResults < cfg.DefaultLimit {
		cfg.MaxResults = cfg.DefaultLimit
	}
	return &Handler{
		searcher: searcher,
		index:    index,
		resyncer: resyncer,
		cfg:      cfg,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Routes registers every endpoint on mux. Searches are bounded by
// QueryTimeout when it is set.
func (h *Handler) Routes(mux *http.ServeMux) {
	var search http.Handler = http.HandlerFunc(h.Search)
	if h.cfg.QueryTimeout > 0 {
		search = middleware.Timeout(h.cfg.QueryTimeout)(search)
	}
	mux.Handle("GET /api/v1/search", search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/resync", h.Resync)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search handles GET /api/v1/search?q=&limit=&kind=&from=&to=. Dates are
// YYYY-MM-DD calendar days in the service's zone; to is exclusive.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	opts, err := h.parseOptions(r)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}

	terms := normalizer.QueryTerms(query)
	if len(terms) == 0 {
		h.observe("empty", "none", 0, time.Since(start))
		h.writeJSON(w, http.StatusOK, SearchResponse{
			Query:      query,
			Terms:      []string{},
			Results:    []executor.Hit{},
			Generation: h.searcher.Generation(),
		})
		return
	}

	generation := h.searcher.Generation()
	compute := func() []executor.Hit { return h.searcher.Search(query, opts) }
	var hits []executor.Hit
	cacheHit := false
	cacheStatus := "none"
	if h.cfg.Cache != nil {
		hits, cacheHit = h.cfg.Cache.GetOrCompute(ctx, cache.Key{
			Query:      query,
			Options:    opts,
			Generation: generation,
			Day:        h.searcher.Today(),
		}, compute)
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		hits = compute()
	}

	took := time.Since(start)
	outcome := "hit"
	if len(hits) == 0 {
		outcome = "zero_result"
	}
	h.observe(outcome, cacheStatus, len(hits), took)
	log.Info("search completed",
		"query", query,
		"terms", terms,
		"returned", len(hits),
		"cache_hit", cacheHit,
		"latency_us", took.Microseconds(),
	)

	if h.cfg.Collector != nil {
		event := analytics.NewSearchEvent(query, terms, len(hits), took)
		event.CacheHit = cacheHit
		event.Generation = generation
		event.RequestID = middleware.GetRequestID(ctx)
		for _, k := range opts.Kinds {
			event.Kinds = append(event.Kinds, string(k))
		}
		h.cfg.Collector.Track(event)
	}

	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query:      query,
		Terms:      terms,
		Total:      len(hits),
		Results:    hits,
		CacheHit:   cacheHit,
		Generation: generation,
		TookMicros: took.Microseconds(),
	})
}

func (h *Handler) parseOptions(r *http.Request) (executor.Options, error) {
	params := r.URL.Query()
	opts := executor.Options{
		Limit:         h.cfg.DefaultLimit,
		SnippetLength: h.cfg.SnippetLength,
	}

	if s := params.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			return opts, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
		}
		opts.Limit = min(limit, h.cfg.MaxResults)
	}

	for _, v := range params["kind"] {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				opts.Kinds = append(opts.Kinds, document.ParseKind(k))
			}
		}
	}

	loc := h.searcher.Location()
	var err error
	if opts.From, err = parseDay(params.Get("from"), loc); err != nil {
		return opts, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "from must be YYYY-MM-DD, got %q", params.Get("from"))
	}
	if opts.To, err = parseDay(params.Get("to"), loc); err != nil {
		return opts, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "to must be YYYY-MM-DD, got %q", params.Get("to"))
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && !opts.From.Before(opts.To) {
		return opts, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "from must be before to")
	}
	return opts, nil
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, s, loc)
}

func (h *Handler) observe(outcome, cacheStatus string, returned int, took time.Duration) {
	if h.cfg.Metrics == nil {
		return
	}
	h.cfg.Metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	h.cfg.Metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(took.Seconds())
	h.cfg.Metrics.SearchResultsCount.Observe(float64(returned))
}

// IndexStats reports document and term counts.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"documents":  h.index.Size(),
		"terms":      h.index.TermCount(),
		"generation": h.index.Generation(),
	}
	if h.resyncer != nil {
		if last := h.resyncer.LastSync(); !last.IsZero() {
			resp["last_sync"] = last.UTC().Format(time.RFC3339)
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Resync reloads the whole index from the entry source.
func (h *Handler) Resync(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	if h.resyncer == nil {
		h.writeError(w, http.StatusServiceUnavailable, "no entry source configured")
		return
	}
	stats, err := h.resyncer.Resync(r.Context())
	if err != nil {
		log.Error("resync failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "resync failed")
		return
	}
	log.Info("resync completed", "added", stats.Added, "updated", stats.Updated, "removed", stats.Removed)
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cfg.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": hitRate,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cfg.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
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
