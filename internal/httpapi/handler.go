// Package httpapi implements the core service's HTTP surface: the two
// required endpoints from spec.md §6 (search, document fetch) plus the
// supplementary health/analytics/cache-control endpoints SPEC_FULL.md §6
// adds. Grounded on the teacher's internal/searcher/handler for the
// JSON-response and logging idioms.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/arlobridge/invertex/internal/cache"
	"github.com/arlobridge/invertex/internal/events"
	"github.com/arlobridge/invertex/internal/index"
	"github.com/arlobridge/invertex/internal/query"
	apperrors "github.com/arlobridge/invertex/pkg/errors"
	"github.com/arlobridge/invertex/pkg/logger"
	"github.com/arlobridge/invertex/pkg/metrics"
	"github.com/arlobridge/invertex/pkg/middleware"
	"github.com/arlobridge/invertex/pkg/tracing"
)

// Fetcher is the subset of *index.Index the document handler depends on.
type Fetcher interface {
	Fetch(id index.DocumentId) (index.DocumentRecord, error)
}

// searchResponseDoc mirrors spec.md §6's exact wire shape for one result.
type searchResponseDoc struct {
	DocID     uint64              `json:"doc_id"`
	Filename  string              `json:"filename"`
	Matches   uint64              `json:"matches"`
	Positions map[string][]int    `json:"positions"`
}

type searchResponse struct {
	Query        string               `json:"query"`
	TotalResults int                  `json:"total_results"`
	Results      []searchResponseDoc  `json:"results"`
}

type documentResponse struct {
	DocumentID uint64 `json:"document_id"`
	Filename   string `json:"filename"`
	Content    string `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler implements the core service's HTTP endpoints.
type Handler struct {
	planner   *query.Planner
	fetcher   Fetcher
	cache     *cache.QueryCache
	publisher *events.Publisher
	aggregate func() events.Stats
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New builds a Handler. qc, publisher, and aggregate may be nil/unset to
// disable the corresponding side feature. m may be nil, in which case
// search metrics are simply not recorded.
func New(planner *query.Planner, fetcher Fetcher, qc *cache.QueryCache, publisher *events.Publisher, aggregate func() events.Stats, m *metrics.Metrics) *Handler {
	return &Handler{
		planner:   planner,
		fetcher:   fetcher,
		cache:     qc,
		publisher: publisher,
		aggregate: aggregate,
		metrics:   m,
		logger:    slog.Default().With("component", "http-handler"),
	}
}

// Search implements GET /api/v1/search?q=<raw> (also accepted as ?term=<raw>).
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.StartSpan(r.Context(), "search", middleware.GetRequestID(r.Context()))
	defer func() {
		span.End()
		span.Log()
	}()
	log := logger.FromContext(ctx)

	rawQuery := r.URL.Query().Get("q")
	if rawQuery == "" {
		rawQuery = r.URL.Query().Get("term")
	}
	span.SetAttr("query", rawQuery)

	planCtx, planSpan := tracing.StartChildSpan(ctx, "planner.search")
	result, cacheHit := h.planner.Search(planCtx, rawQuery)
	planSpan.SetAttr("cache_hit", cacheHit)
	planSpan.SetAttr("total_results", result.TotalResults)
	planSpan.End()

	resp := searchResponse{
		Query:        result.Query,
		TotalResults: result.TotalResults,
		Results:      make([]searchResponseDoc, 0, len(result.Results)),
	}
	for _, m := range result.Results {
		resp.Results = append(resp.Results, searchResponseDoc{
			DocID:     uint64(m.DocID),
			Filename:  m.Filename,
			Matches:   m.Matches,
			Positions: m.PositionsByTerm,
		})
	}

	elapsed := time.Since(start)
	latencyMs := elapsed.Milliseconds()
	log.Info("search completed",
		"query", rawQuery,
		"total_results", resp.TotalResults,
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)

	h.recordMetrics(resp.TotalResults, cacheHit, elapsed)

	h.publish(events.SearchServedEvent{
		Type:         events.EventSearchServed,
		Query:        rawQuery,
		TotalResults: resp.TotalResults,
		CacheHit:     cacheHit,
		LatencyMs:    latencyMs,
		Timestamp:    time.Now().UTC(),
	})

	h.writeJSON(w, http.StatusOK, resp)
}

// Document implements GET /api/v1/document?docID=<uint>.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("docID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		h.writeError(w, apperrors.New(apperrors.ErrBadRequest, http.StatusBadRequest, "docID must be a non-negative integer"))
		return
	}

	rec, err := h.fetcher.Fetch(index.DocumentId(id))
	if err != nil {
		h.writeError(w, apperrors.New(apperrors.ErrNotFound, http.StatusNotFound, "not found"))
		return
	}

	h.writeJSON(w, http.StatusOK, documentResponse{
		DocumentID: uint64(rec.ID),
		Filename:   rec.Filename,
		Content:    string(rec.Content),
	})
}

// Analytics implements GET /api/v1/analytics.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	if h.aggregate == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.aggregate())
}

// CacheStats implements GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	h.writeJSON(w, http.StatusOK, map[string]int64{"hits": hits, "misses": misses})
}

// CacheInvalidate implements POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "cache invalidation failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"keys_deleted": deleted})
}

func (h *Handler) recordMetrics(totalResults int, cacheHit bool, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}
	resultType := "hit"
	if totalResults == 0 {
		resultType = "zero_result"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	h.metrics.SearchResultsCount.WithLabelValues().Observe(float64(totalResults))
}

func (h *Handler) publish(event events.SearchServedEvent) {
	if h.publisher == nil {
		return
	}
	h.publisher.Publish(event)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to an HTTP status via pkg/errors.HTTPStatusCode and
// writes its message as the response body. Pass an *AppError to control
// both explicitly; any other error falls back to the sentinel-based
// inference in HTTPStatusCode.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, status, errorResponse{Error: message})
}
