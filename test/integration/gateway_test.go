// Package integration contains tests that verify the interaction between
// multiple platform components. These tests use httptest servers with real
// handler wiring, a real PostgreSQL database (skipped when unreachable),
// and a stub upstream in place of the core service.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/arlobridge/invertex/internal/auth/apikey"
	"github.com/arlobridge/invertex/internal/auth/ratelimit"
	gwhandler "github.com/arlobridge/invertex/internal/gateway/handler"
	"github.com/arlobridge/invertex/internal/gateway/router"
	"github.com/arlobridge/invertex/pkg/config"
	"github.com/arlobridge/invertex/pkg/postgres"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	cfg := testPostgresConfig()
	db, err := postgres.New(cfg)
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "invertex_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "invertex"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// newGatewayServer creates a test gateway backed by a real PostgreSQL
// database and a stub upstream standing in for the core invertex service.
func newGatewayServer(t *testing.T, db *postgres.Client) *httptest.Server {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/search":
			json.NewEncoder(w).Encode(map[string]any{
				"query":         r.URL.Query().Get("q"),
				"total_results": 0,
				"results":       []any{},
			})
		case "/api/v1/document":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		case "/api/v1/analytics":
			json.NewEncoder(w).Encode(map[string]string{"status": "disabled"})
		case "/api/v1/cache/stats":
			json.NewEncoder(w).Encode(map[string]int64{"hits": 0, "misses": 0})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	validator := apikey.NewValidator(db)
	limiter := ratelimit.New(time.Minute)

	h := gwhandler.New(gwhandler.Config{UpstreamURL: upstream.URL}, validator)

	chain := router.New(h, validator, limiter)
	return httptest.NewServer(chain)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestHealthEndpoint verifies the gateway health check is accessible without auth.
func TestHealthEndpoint(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newGatewayServer(t, db)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("expected status=ok, got %q", body["status"])
	}
}

// TestUnauthenticatedRequestRejected verifies that API endpoints reject
// requests without an API key.
func TestUnauthenticatedRequestRejected(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newGatewayServer(t, db)
	defer srv.Close()

	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/search?q=test"},
		{"GET", "/api/v1/document?docID=1"},
		{"GET", "/api/v1/analytics"},
	}

	for _, ep := range endpoints {
		req, _ := http.NewRequest(ep.method, srv.URL+ep.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: request failed: %v", ep.method, ep.path, err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", ep.method, ep.path, resp.StatusCode)
		}
	}
}

// TestAPIKeyLifecycle tests creating, using, and revoking an API key
// through the gateway when PostgreSQL is available.
func TestAPIKeyLifecycle(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newGatewayServer(t, db)
	defer srv.Close()

	// Admin endpoints also require auth, so keys are created directly
	// against the validator here to avoid a chicken-and-egg bootstrap.
	validator := apikey.NewValidator(db)

	rawKey, err := validator.CreateKey(t.Context(), "integration-test", 100, nil)
	if err != nil {
		t.Fatalf("creating key: %v", err)
	}

	req, _ := http.NewRequest("GET", srv.URL+"/api/v1/search?q=hello", nil)
	req.Header.Set("X-API-Key", rawKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("search request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if err := validator.RevokeKey(t.Context(), rawKey); err != nil {
		t.Fatalf("revoking key: %v", err)
	}

	req2, _ := http.NewRequest("GET", srv.URL+"/api/v1/search?q=hello", nil)
	req2.Header.Set("X-API-Key", rawKey)
	resp2, err := http.DefaultClient.Do(req2)
	if err != nil {
		t.Fatalf("search request after revoke failed: %v", err)
	}
	resp2.Body.Close()

	if resp2.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 after revoke, got %d", resp2.StatusCode)
	}
}

// TestDocumentProxy verifies that document lookups are proxied through the
// gateway to the core service.
func TestDocumentProxy(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newGatewayServer(t, db)
	defer srv.Close()

	validator := apikey.NewValidator(db)
	rawKey, err := validator.CreateKey(t.Context(), "document-test", 100, nil)
	if err != nil {
		t.Fatalf("creating key: %v", err)
	}

	req, _ := http.NewRequest("GET", srv.URL+"/api/v1/document?docID=1", nil)
	req.Header.Set("X-API-Key", rawKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("document request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 from the stub upstream, got %d", resp.StatusCode)
	}
}

// TestRateLimiting verifies that the gateway enforces per-key rate limits.
func TestRateLimiting(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newGatewayServer(t, db)
	defer srv.Close()

	validator := apikey.NewValidator(db)
	rawKey, err := validator.CreateKey(t.Context(), "ratelimit-test", 2, nil)
	if err != nil {
		t.Fatalf("creating key: %v", err)
	}

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest("GET", srv.URL+"/api/v1/search?q=test", nil)
		req.Header.Set("X-API-Key", rawKey)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, resp.StatusCode)
		}
	}

	req, _ := http.NewRequest("GET", srv.URL+"/api/v1/search?q=test", nil)
	req.Header.Set("X-API-Key", rawKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("rate limit request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", resp.StatusCode)
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
