package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/af-corp/queryrouter/internal/auth"
	"github.com/af-corp/queryrouter/internal/httputil"
	"github.com/af-corp/queryrouter/internal/telemetry"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func do(handler http.Handler, caller *auth.Caller) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/query", nil)
	if caller != nil {
		req = req.WithContext(auth.ContextWithCaller(req.Context(), caller))
	}
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Request-ID", "req-1")
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_AllowsRequest(t *testing.T) {
	handler := Middleware(NewLimiter(nil), NewDailyQuota(nil), nil)(okHandler())
	rec := do(handler, &auth.Caller{KeyID: "key-1", RPMLimit: 100})

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if h := rec.Header().Get(headerRateLimitRequests); h != "100" {
		t.Errorf("expected X-RateLimit-Limit-Requests=100, got %s", h)
	}
	if h := rec.Header().Get(headerRateLimitRemainingRequests); h == "" {
		t.Error("expected X-RateLimit-Remaining-Requests header")
	}
	if h := rec.Header().Get(headerRateLimitReset); h == "" {
		t.Error("expected X-RateLimit-Reset-Requests header")
	}
}

func TestMiddleware_DefaultRPM(t *testing.T) {
	handler := Middleware(NewLimiter(nil), NewDailyQuota(nil), nil)(okHandler())
	rec := do(handler, &auth.Caller{KeyID: "key-1"})
	if h := rec.Header().Get(headerRateLimitRequests); h != "60" {
		t.Errorf("expected default 60, got %s", h)
	}
}

func TestMiddleware_NoCallerPasses(t *testing.T) {
	handler := Middleware(NewLimiter(nil), NewDailyQuota(nil), nil)(okHandler())
	if rec := do(handler, nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMiddleware_RateLimited(t *testing.T) {
	_, rdb := newRedis(t)
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	handler := Middleware(NewLimiter(rdb), NewDailyQuota(rdb), metrics)(okHandler())
	caller := &auth.Caller{KeyID: "key-1", RPMLimit: 1}

	if rec := do(handler, caller); rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}
	rec := do(handler, caller)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get(headerRetryAfter) == "" {
		t.Error("expected Retry-After header")
	}
	var body httputil.APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "rate_limit_exceeded" {
		t.Errorf("unexpected code %q", body.Error.Code)
	}
}

func TestMiddleware_DailyQuota(t *testing.T) {
	_, rdb := newRedis(t)
	handler := Middleware(NewLimiter(rdb), NewDailyQuota(rdb), nil)(okHandler())
	caller := &auth.Caller{KeyID: "key-2", RPMLimit: 100, DailyQueryLimit: 1}

	if rec := do(handler, caller); rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}
	rec := do(handler, caller)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	var body httputil.APIError
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error.Code != "daily_quota_exceeded" {
		t.Errorf("unexpected code %q", body.Error.Code)
	}
}
