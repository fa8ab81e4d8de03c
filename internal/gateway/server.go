package gateway

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/af-corp/queryrouter/internal/auth"
	"github.com/af-corp/queryrouter/internal/ratelimit"
	"github.com/af-corp/queryrouter/internal/telemetry"
)

// RouterOptions wires the optional request guards. A nil KeyStore disables
// authentication and with it per-caller limits.
type RouterOptions struct {
	KeyStore auth.KeyStore
	Limiter  *ratelimit.Limiter
	Quota    *ratelimit.DailyQuota
	Metrics  *telemetry.Metrics
}

// NewRouter builds the chi router for the public API.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestID)

	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		if opts.KeyStore != nil {
			r.Use(auth.Middleware(opts.KeyStore))
			r.Use(ratelimit.Middleware(opts.Limiter, opts.Quota, opts.Metrics))
		}
		r.Post("/v1/query", h.Query)
		r.Get("/v1/collections", h.Collections)
	})
	return r
}

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = NewRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func NewRequestID() string {
	return "req_" + uuid.NewString()
}

// RequestIDFromContext returns the ID set by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
