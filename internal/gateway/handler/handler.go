// Package handler implements the API gateway's HTTP endpoints: a reverse
// proxy fronting the core invertex service, plus direct API-key
// administration against PostgreSQL.
package handler

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/arlobridge/invertex/internal/auth/apikey"
	apperrors "github.com/arlobridge/invertex/pkg/errors"
)

// Config holds the URL of the core service the gateway proxies to.
type Config struct {
	UpstreamURL string
}

// Handler implements the API gateway's HTTP endpoints. It proxies search
// and document lookups to the core service and manages API keys directly
// against PostgreSQL.
type Handler struct {
	proxy        *httputil.ReverseProxy
	keyValidator *apikey.Validator
	logger       *slog.Logger
}

// New creates a gateway Handler that proxies to the core service at
// cfg.UpstreamURL.
func New(cfg Config, keyValidator *apikey.Validator) *Handler {
	return &Handler{
		proxy:        newProxy(cfg.UpstreamURL),
		keyValidator: keyValidator,
		logger:       slog.Default().With("component", "gateway-handler"),
	}
}

func newProxy(target string) *httputil.ReverseProxy {
	u, _ := url.Parse(target)
	return httputil.NewSingleHostReverseProxy(u)
}

// ---------- Proxy handlers ----------

// ProxySearch forwards search queries to the core service.
func (h *Handler) ProxySearch(w http.ResponseWriter, r *http.Request) {
	h.proxy.ServeHTTP(w, r)
}

// ProxyDocument forwards document lookups to the core service.
func (h *Handler) ProxyDocument(w http.ResponseWriter, r *http.Request) {
	h.proxy.ServeHTTP(w, r)
}

// ProxyAnalytics forwards analytics requests to the core service.
func (h *Handler) ProxyAnalytics(w http.ResponseWriter, r *http.Request) {
	h.proxy.ServeHTTP(w, r)
}

// ProxyCacheStats forwards cache stats requests to the core service.
func (h *Handler) ProxyCacheStats(w http.ResponseWriter, r *http.Request) {
	h.proxy.ServeHTTP(w, r)
}

// ProxyCacheInvalidate forwards cache invalidation requests to the core service.
func (h *Handler) ProxyCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	h.proxy.ServeHTTP(w, r)
}

// ---------- Admin handlers ----------

// CreateAPIKey creates a new API key and returns the raw key (shown once).
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		RateLimit int    `json:"rate_limit"`
		ExpiresIn string `json:"expires_in,omitempty"` // Go duration, e.g. "720h"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.New(apperrors.ErrBadRequest, http.StatusBadRequest, "invalid JSON body"))
		return
	}
	if req.Name == "" {
		h.writeError(w, apperrors.New(apperrors.ErrBadRequest, http.StatusBadRequest, "name is required"))
		return
	}
	if req.RateLimit <= 0 {
		req.RateLimit = 100
	}

	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil {
			h.writeError(w, apperrors.New(apperrors.ErrBadRequest, http.StatusBadRequest, "invalid expires_in duration"))
			return
		}
		t := time.Now().Add(d)
		expiresAt = &t
	}

	key, err := h.keyValidator.CreateKey(r.Context(), req.Name, req.RateLimit, expiresAt)
	if err != nil {
		h.logger.Error("failed to create api key", "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "failed to create api key"))
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{
		"api_key": key,
		"name":    req.Name,
		"message": "store this key securely — it cannot be retrieved again",
	})
}

// ListAPIKeys returns all active API keys (without hashes).
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keyValidator.ListKeys(r.Context())
	if err != nil {
		h.logger.Error("failed to list api keys", "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "failed to list api keys"))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"keys":  keys,
		"count": len(keys),
	})
}

// ---------- Health ----------

// Health returns the gateway's health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "gateway"})
}

// ---------- Helpers ----------

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to an HTTP status via pkg/errors.HTTPStatusCode and
// writes its message as the response body.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
