package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestLimiter_NilRedis_FailOpen(t *testing.T) {
	l := NewLimiter(nil)
	result, err := l.Check(context.Background(), "test:key", 60, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Allowed {
		t.Error("expected allowed when Redis is nil")
	}
	if result.Remaining != 59 {
		t.Errorf("expected remaining=59, got %d", result.Remaining)
	}
}

func TestLimiter_EnforcesWindow(t *testing.T) {
	_, rdb := newRedis(t)
	l := NewLimiter(rdb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Check(ctx, "caller:a", 3, time.Minute)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("check %d should be allowed", i)
		}
		if res.Remaining != int64(2-i) {
			t.Errorf("check %d: remaining = %d, want %d", i, res.Remaining, 2-i)
		}
	}

	res, _ := l.Check(ctx, "caller:a", 3, time.Minute)
	if res.Allowed {
		t.Error("fourth check should be denied")
	}
	if res.RetryAfter <= 0 {
		t.Error("expected a retry-after hint")
	}

	other, _ := l.Check(ctx, "caller:b", 3, time.Minute)
	if !other.Allowed {
		t.Error("separate keys must not share a window")
	}
}

func TestLimiter_RedisDown_FailOpen(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()

	res, err := NewLimiter(rdb).Check(context.Background(), "k", 1, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed {
		t.Error("expected fail open when Redis is unreachable")
	}
}
