package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthReportsOK(t *testing.T) {
	h := New(Config{UpstreamURL: "http://unused.invalid"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("got status %q, want ok", body["status"])
	}
}

func TestProxySearchForwardsToUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search" {
			t.Errorf("upstream got path %q, want /api/v1/search", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"query": r.URL.Query().Get("q")})
	}))
	defer upstream.Close()

	h := New(Config{UpstreamURL: upstream.URL}, nil)

	// Path matches what router.New actually mounts ProxySearch at — the
	// reverse proxy forwards it unchanged, so the core service must listen
	// on the same prefixed path.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=fox", nil)
	rec := httptest.NewRecorder()
	h.ProxySearch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["query"] != "fox" {
		t.Fatalf("got query %q, want fox", body["query"])
	}
}

func TestProxyDocumentForwardsToUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	h := New(Config{UpstreamURL: upstream.URL}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/document?docID=99", nil)
	rec := httptest.NewRecorder()
	h.ProxyDocument(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
}

func TestCreateAPIKeyRejectsInvalidBody(t *testing.T) {
	h := New(Config{UpstreamURL: "http://unused.invalid"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/keys", nil)
	rec := httptest.NewRecorder()
	h.CreateAPIKey(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}
