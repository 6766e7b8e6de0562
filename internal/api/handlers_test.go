package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"arby/internal/config"
)

func testAPILogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsOriginAllowedEmptyOriginPasses(t *testing.T) {
	if !isOriginAllowed("", config.DashboardConfig{}, "example.com") {
		t.Error("a request with no Origin header (non-browser client) should be allowed")
	}
}

func TestIsOriginAllowedLocalhostAlwaysPasses(t *testing.T) {
	if !isOriginAllowed("http://localhost:3000", config.DashboardConfig{}, "example.com:8090") {
		t.Error("localhost origin should always be allowed when no allowlist is configured")
	}
}

func TestIsOriginAllowedMatchesRequestHostWhenNoAllowlist(t *testing.T) {
	if !isOriginAllowed("http://example.com", config.DashboardConfig{}, "example.com:8090") {
		t.Error("origin matching the request host should be allowed")
	}
	if isOriginAllowed("http://evil.com", config.DashboardConfig{}, "example.com:8090") {
		t.Error("origin not matching the request host should be rejected")
	}
}

func TestIsOriginAllowedRespectsConfiguredAllowlist(t *testing.T) {
	cfg := config.DashboardConfig{AllowedOrigins: []string{"https://dashboard.example.com"}}
	if !isOriginAllowed("https://dashboard.example.com", cfg, "internal-host:8090") {
		t.Error("origin present in the allowlist should be allowed")
	}
	if isOriginAllowed("https://other.example.com", cfg, "internal-host:8090") {
		t.Error("origin absent from a non-empty allowlist should be rejected")
	}
}

func TestIsOriginAllowedRejectsMalformedOrigin(t *testing.T) {
	if isOriginAllowed("http://%zz", config.DashboardConfig{}, "example.com") {
		t.Error("a malformed Origin header should be rejected, not allowed by default")
	}
}

func TestNormalizeHostStripsPort(t *testing.T) {
	if got := normalizeHost("Example.com:8090"); got != "example.com" {
		t.Errorf("normalizeHost = %s, want example.com", got)
	}
	if got := normalizeHost("Example.com"); got != "example.com" {
		t.Errorf("normalizeHost (no port) = %s, want example.com", got)
	}
}

func TestHandleHealthReturnsOK(t *testing.T) {
	h := NewHandlers(newFakeProvider(), config.DashboardConfig{}, NewHub(testAPILogger()), testAPILogger())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	h.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", ct)
	}
}

func TestHandleStatusServesBuildStatusPayload(t *testing.T) {
	h := NewHandlers(newFakeProvider(), config.DashboardConfig{}, NewHub(testAPILogger()), testAPILogger())
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()

	h.HandleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
