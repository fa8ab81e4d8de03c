package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/af-corp/queryrouter/internal/auth"
	"github.com/af-corp/queryrouter/internal/httputil"
	"github.com/af-corp/queryrouter/internal/telemetry"
)

const (
	defaultRPM = 60

	headerRateLimitRequests          = "X-RateLimit-Limit-Requests"
	headerRateLimitRemainingRequests = "X-RateLimit-Remaining-Requests"
	headerRateLimitReset             = "X-RateLimit-Reset-Requests"
	headerRetryAfter                 = "Retry-After"
)

// Middleware enforces per-caller query rate and daily query quota. Requests
// without a caller (auth disabled) pass through.
func Middleware(limiter *Limiter, quota *DailyQuota, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")

			caller, ok := auth.CallerFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			rpm := defaultRPM
			if caller.RPMLimit > 0 {
				rpm = caller.RPMLimit
			}
			result, _ := limiter.Check(r.Context(), "rpm:"+caller.KeyID, int64(rpm), time.Minute)

			w.Header().Set(headerRateLimitRequests, strconv.Itoa(rpm))
			w.Header().Set(headerRateLimitRemainingRequests, strconv.FormatInt(result.Remaining, 10))
			w.Header().Set(headerRateLimitReset, result.ResetAt.Format(time.RFC3339))

			if !result.Allowed {
				slog.Warn("rate limit exceeded",
					"request_id", reqID,
					"key_id", caller.KeyID,
					"owner", caller.Owner,
					"dimension", "rpm",
					"limit", rpm,
				)
				if metrics != nil {
					metrics.RecordRateLimitHit("rpm")
				}
				w.Header().Set(headerRetryAfter, strconv.Itoa(int(result.RetryAfter.Seconds())))
				httputil.WriteRateLimitError(w, reqID,
					fmt.Sprintf("Rate limit exceeded: %d queries per minute. Retry after %s", rpm, result.ResetAt.Format(time.RFC3339)))
				return
			}

			if caller.DailyQueryLimit > 0 {
				q, _ := quota.Consume(r.Context(), "caller:"+caller.KeyID, int64(caller.DailyQueryLimit))
				if !q.Allowed {
					slog.Warn("daily query quota exceeded",
						"request_id", reqID,
						"key_id", caller.KeyID,
						"used", q.Used,
						"limit", q.Limit,
					)
					if metrics != nil {
						metrics.RecordRateLimitHit("daily")
					}
					httputil.WriteQuotaExceededError(w, reqID,
						fmt.Sprintf("Daily query quota exhausted: %d of %d used", q.Used, q.Limit))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
