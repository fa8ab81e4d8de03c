package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuotaResult is the outcome of a daily quota check.
type QuotaResult struct {
	Allowed bool
	Used    int64
	Limit   int64
}

// DailyQuota counts calls per key per UTC day in Redis.
type DailyQuota struct {
	rdb *redis.Client
	now func() time.Time
}

// NewDailyQuota creates a quota counter. If rdb is nil, all checks pass.
func NewDailyQuota(rdb *redis.Client) *DailyQuota {
	return &DailyQuota{rdb: rdb, now: time.Now}
}

func (q *DailyQuota) dailyKey(key string) string {
	return fmt.Sprintf("qr:quota:daily:%s:%s", key, q.now().UTC().Format("2006-01-02"))
}

// Consume counts one call against key and reports whether it fit under limit.
// A denied call is not refunded; the counter only grows within a day.
func (q *DailyQuota) Consume(ctx context.Context, key string, limit int64) (QuotaResult, error) {
	if q.rdb == nil || limit <= 0 {
		return QuotaResult{Allowed: true, Limit: limit}, nil
	}

	k := q.dailyKey(key)
	now := q.now().UTC()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)

	pipe := q.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, endOfDay.Sub(now)+time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("quota store unavailable, failing open", "key", key, "error", err)
		return QuotaResult{Allowed: true, Limit: limit}, nil
	}

	used := incr.Val()
	return QuotaResult{Allowed: used <= limit, Used: used, Limit: limit}, nil
}

// Used returns today's count for key without consuming.
func (q *DailyQuota) Used(ctx context.Context, key string) (int64, error) {
	if q.rdb == nil {
		return 0, nil
	}
	n, err := q.rdb.Get(ctx, q.dailyKey(key)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
