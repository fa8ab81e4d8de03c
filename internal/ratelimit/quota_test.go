package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyQuota_Consume(t *testing.T) {
	mr, rdb := newRedis(t)
	q := NewDailyQuota(rdb)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		res, err := q.Consume(ctx, "tool:web_search", 2)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.EqualValues(t, i, res.Used)
	}
	res, err := q.Consume(ctx, "tool:web_search", 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	used, err := q.Used(ctx, "tool:web_search")
	require.NoError(t, err)
	assert.EqualValues(t, 3, used)

	key := q.dailyKey("tool:web_search")
	assert.True(t, mr.Exists(key))
	assert.Greater(t, mr.TTL(key), time.Hour)
}

func TestDailyQuota_RollsOverAtMidnight(t *testing.T) {
	_, rdb := newRedis(t)
	q := NewDailyQuota(rdb)
	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	q.now = func() time.Time { return day }

	res, _ := q.Consume(context.Background(), "k", 1)
	assert.True(t, res.Allowed)
	res, _ = q.Consume(context.Background(), "k", 1)
	assert.False(t, res.Allowed)

	day = day.Add(2 * time.Minute)
	res, _ = q.Consume(context.Background(), "k", 1)
	assert.True(t, res.Allowed, "new day starts a new counter")
}

func TestDailyQuota_NilRedis(t *testing.T) {
	res, err := NewDailyQuota(nil).Consume(context.Background(), "k", 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestToolQuota_Allow(t *testing.T) {
	_, rdb := newRedis(t)
	var denied []string
	tq := NewToolQuota("web_search", NewLimiter(rdb), NewDailyQuota(rdb), 10, 2)
	tq.OnDeny(func(d string) { denied = append(denied, d) })

	for i := 0; i < 2; i++ {
		ok, err := tq.Allow(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := tq.Allow(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"tool_daily"}, denied)
}

func TestToolQuota_PerMinute(t *testing.T) {
	_, rdb := newRedis(t)
	tq := NewToolQuota("web_search", NewLimiter(rdb), NewDailyQuota(rdb), 1, 100)

	ok, _ := tq.Allow(context.Background())
	assert.True(t, ok)
	ok, _ = tq.Allow(context.Background())
	assert.False(t, ok)
}
