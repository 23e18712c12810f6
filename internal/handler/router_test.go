package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/campaignhub/internal/metrics"
	"github.com/hitoshi/campaignhub/internal/middleware"
	"github.com/hitoshi/campaignhub/internal/model"
	"github.com/hitoshi/campaignhub/internal/signup"
)

func newTestRouterDeps(t *testing.T, svc SignupServiceInterface, limiter *middleware.RateLimiter) *RouterDeps {
	t.Helper()
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	return &RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       limiter,
		StatusRecorder:    collector,
		HealthChecker:     &mockHealthChecker{},
		MetricsHandler:    metrics.Handler(reg),
		SignupService:     svc,
	}
}

func newTestRouter(t *testing.T, svc SignupServiceInterface, limiter *middleware.RateLimiter) http.Handler {
	t.Helper()
	return NewRouter(newTestRouterDeps(t, svc, limiter))
}

func newSingleRequestLimiter(t *testing.T) *middleware.RateLimiter {
	t.Helper()
	limiter := middleware.NewRateLimiter(middleware.SignupRateLimiterConfig(1),
		slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))
	t.Cleanup(limiter.Stop)
	return limiter
}

func successfulSignupService() *mockSignupService {
	return &mockSignupService{
		signupFn: func(ctx context.Context, req *signup.Request) (*model.SignupResult, error) {
			return &model.SignupResult{RedirectTo: "/influencer/dashboard", Role: model.RoleInfluencer}, nil
		},
	}
}

func TestNewRouter_SignupRoute(t *testing.T) {
	router := newTestRouter(t, successfulSignupService(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(validSignupBody))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("POST /api/auth/signup status = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestNewRouter_SignupRoute_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, successfulSignupService(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/signup", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/auth/signup status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestNewRouter_PreflightSignup(t *testing.T) {
	svc := &mockSignupService{}
	router := newTestRouter(t, svc, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/auth/signup", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("OPTIONS /api/auth/signup status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if svc.calls != 0 {
		t.Error("preflight should not reach the signup service")
	}
}

func TestNewRouter_HealthRoute(t *testing.T) {
	router := newTestRouter(t, successfulSignupService(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestNewRouter_MetricsRouteExposesSignupStatus(t *testing.T) {
	router := newTestRouter(t, successfulSignupService(), nil)

	router.ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(validSignupBody)))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `campaignhub_http_status_total{status_code="201"} 1`) {
		t.Errorf("metrics output should contain the 201 counter, got:\n%s", w.Body.String())
	}
}

func TestNewRouter_RequestIDHeaderPropagated(t *testing.T) {
	var got string
	svc := &mockSignupService{
		signupFn: func(ctx context.Context, req *signup.Request) (*model.SignupResult, error) {
			got = chimw.GetReqID(ctx)
			return &model.SignupResult{RedirectTo: "/", Role: model.RoleAdvertiser}, nil
		},
	}
	router := newTestRouter(t, svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(validSignupBody))
	req.Header.Set("X-Request-Id", "req-42")
	router.ServeHTTP(httptest.NewRecorder(), req)

	if got != "req-42" {
		t.Errorf("request id in context = %q, want req-42", got)
	}
}

func TestNewRouter_SignupRateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:            0.01,
		Burst:           1,
		CleanupInterval: time.Minute,
	}, slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))
	defer limiter.Stop()

	router := newTestRouter(t, successfulSignupService(), limiter)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(validSignupBody))
		req.RemoteAddr = "198.51.100.7:5555"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := send(); code != http.StatusCreated {
		t.Fatalf("first request status = %d, want %d", code, http.StatusCreated)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want %d", code, http.StatusTooManyRequests)
	}

	// ヘルスチェックはレート制限の対象外
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestNewRouter_SignupRateLimit_IgnoresForwardedForByDefault(t *testing.T) {
	limiter := newSingleRequestLimiter(t)
	router := newTestRouter(t, successfulSignupService(), limiter)

	forwarded := []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"}
	codes := make([]int, 0, len(forwarded))
	for _, xff := range forwarded {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(validSignupBody))
		req.RemoteAddr = "198.51.100.7:5555"
		req.Header.Set("X-Forwarded-For", xff)
		req.Header.Set("X-Real-IP", xff)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusCreated {
		t.Fatalf("first request status = %d, want %d", codes[0], http.StatusCreated)
	}
	for i, code := range codes[1:] {
		if code != http.StatusTooManyRequests {
			t.Errorf("request %d with spoofed X-Forwarded-For status = %d, want %d", i+2, code, http.StatusTooManyRequests)
		}
	}
	if got := limiter.LimiterCount(); got != 1 {
		t.Errorf("LimiterCount() = %d, want 1 (keyed by RemoteAddr only)", got)
	}
}

func TestNewRouter_SignupRateLimit_UsesForwardedForWhenTrusted(t *testing.T) {
	limiter := newSingleRequestLimiter(t)
	deps := newTestRouterDeps(t, successfulSignupService(), limiter)
	deps.TrustForwardedHeaders = true
	router := NewRouter(deps)

	for _, xff := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(validSignupBody))
		req.RemoteAddr = "10.0.0.2:5555"
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Errorf("X-Forwarded-For %s status = %d, want %d", xff, w.Code, http.StatusCreated)
		}
	}
	if got := limiter.LimiterCount(); got != 2 {
		t.Errorf("LimiterCount() = %d, want 2", got)
	}
}
