package httpapi

import (
	"net/http"
	"time"

	"github.com/arlobridge/invertex/pkg/health"
	"github.com/arlobridge/invertex/pkg/metrics"
	"github.com/arlobridge/invertex/pkg/middleware"
)

// NewRouter builds the core service's HTTP handler.
//
// Route table:
//
//	GET  /api/v1/search             → h.Search
//	GET  /api/v1/document           → h.Document
//	GET  /api/v1/analytics          → h.Analytics
//	GET  /api/v1/cache/stats        → h.CacheStats
//	POST /api/v1/cache/invalidate   → h.CacheInvalidate
//	GET  /health/live               → checker.LiveHandler
//	GET  /health/ready              → checker.ReadyHandler
//
// The /api/v1 prefix on search and document matches the gateway's own
// mount for those routes (internal/gateway/router) — the gateway proxies
// requests through unchanged, with no path rewriting.
//
// Middleware chain (outermost first): RequestID → Metrics → Timeout → mux.
func NewRouter(h *Handler, checker *health.Checker, m *metrics.Metrics, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/document", h.Document)
	mux.HandleFunc("GET /api/v1/analytics", h.Analytics)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(timeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	return chain
}
