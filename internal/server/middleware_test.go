package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRateLimit429AndRetryAfter(t *testing.T) {
	api, _ := newTestAPI(t)
	t.Setenv("AUTOCOMPLETE_RATE_LIMIT_GLOBAL_RPS", "1")
	api.limits = limitsFromEnv()
	h := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.1:12345"
	if rr := serve(h, req); rr.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", rr.Code)
	}
	rr := serve(h, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", rr.Code)
	}
	if v := rr.Header().Get("Retry-After"); v == "" {
		t.Fatalf("expected Retry-After header to be set")
	}
	var e apiError
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil || e.Error != "rate_limited" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestRateLimitDisabledWhenEnvNotSet(t *testing.T) {
	api, _ := newTestAPI(t)
	if len(api.limits) != 0 {
		t.Fatalf("expected no limiters, got %d", len(api.limits))
	}
	h := api.Handler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	for i := 0; i < 5; i++ {
		if rr := serve(h, req); rr.Code != http.StatusOK {
			t.Fatalf("expected 200 with limiter disabled, got %d", rr.Code)
		}
	}
}

func TestPathRateLimitSeparateFromGlobal(t *testing.T) {
	api, _ := newTestAPI(t)
	t.Setenv("AUTOCOMPLETE_RATE_LIMIT_GLOBAL_RPS", "0")
	t.Setenv("AUTOCOMPLETE_RATE_LIMIT_PATH_RPS", "1")
	api.limits = limitsFromEnv()
	h := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.5:1000"
	if rr := serve(h, req); rr.Code != http.StatusOK {
		t.Fatalf("first expected 200, got %d", rr.Code)
	}
	if rr := serve(h, req); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second expected 429, got %d", rr.Code)
	}
	other := httptest.NewRequest(http.MethodGet, "/channels", nil)
	other.RemoteAddr = "203.0.113.5:1000"
	if rr := serve(h, other); rr.Code != http.StatusOK {
		t.Fatalf("other path expected 200, got %d", rr.Code)
	}
}

func TestIPRateLimitPerClient(t *testing.T) {
	api, _ := newTestAPI(t)
	t.Setenv("AUTOCOMPLETE_RATE_LIMIT_IP_RPS", "1")
	api.limits = limitsFromEnv()
	h := api.Handler()

	reqA := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	reqA.RemoteAddr = "192.0.2.10:2222"
	if rr := serve(h, reqA); rr.Code != http.StatusOK {
		t.Fatalf("A1 expected 200, got %d", rr.Code)
	}
	if rr := serve(h, reqA); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("A2 expected 429, got %d", rr.Code)
	}
	reqB := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	reqB.RemoteAddr = "192.0.2.11:3333"
	if rr := serve(h, reqB); rr.Code != http.StatusOK {
		t.Fatalf("B expected 200, got %d", rr.Code)
	}
}

func TestBaseRateApplies(t *testing.T) {
	_, _ = newTestAPI(t)
	t.Setenv("AUTOCOMPLETE_RATE_LIMIT_RPS", "2")
	t.Setenv("AUTOCOMPLETE_RATE_LIMIT_PATH_RPS", "0")
	scopes := limitsFromEnv()
	if len(scopes) != 2 {
		t.Fatalf("expected global and ip scopes, got %d", len(scopes))
	}
	for _, s := range scopes {
		if s.limiter.rps != 2 {
			t.Fatalf("expected base rate, got %v", s.limiter.rps)
		}
	}
}

func TestAuthTokenRequiredForWrites(t *testing.T) {
	api, _ := newTestAPI(t)
	t.Setenv("AUTOCOMPLETE_API_TOKEN", "secret")
	body := `[{"id":"9","kind":"fruit","name":"Cherry"}]`
	rr := serve(api.mux(), httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(body)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing token, got %d", rr.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	if rr := serve(api.mux(), req); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
	req = httptest.NewRequest(http.MethodDelete, "/records/9?token=secret", nil)
	if rr := serve(api.mux(), req); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with query token, got %d", rr.Code)
	}
	// reads stay open
	if rr := serve(api.mux(), httptest.NewRequest(http.MethodGet, "/channel/FruitChannel/?q=a", nil)); rr.Code != http.StatusOK {
		t.Fatalf("expected open reads, got %d", rr.Code)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/channel/FruitChannel/":         "/channel/:name/",
		"/channel/FruitChannel/validate": "/channel/:name/validate",
		"/channel/x":                     "/channel/:name",
		"/records/abc":                   "/records/:id",
		"/channels":                      "/channels",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q)=%q want %q", in, got, want)
		}
	}
}
