package ratelimit

import (
	"context"
	"time"
)

// ToolQuota guards a shared upstream (the web search API) with a per-minute
// sliding window and a daily cap, both enforced across replicas.
type ToolQuota struct {
	name    string
	limiter *Limiter
	daily   *DailyQuota
	rpm     int64
	perDay  int64
	onDeny  func(dimension string)
}

func NewToolQuota(name string, limiter *Limiter, daily *DailyQuota, rpm, perDay int64) *ToolQuota {
	return &ToolQuota{name: name, limiter: limiter, daily: daily, rpm: rpm, perDay: perDay}
}

// OnDeny registers a callback invoked with "tool_rpm" or "tool_daily" when a
// call is refused.
func (t *ToolQuota) OnDeny(fn func(dimension string)) { t.onDeny = fn }

func (t *ToolQuota) Allow(ctx context.Context) (bool, error) {
	res, err := t.limiter.Check(ctx, "tool:"+t.name, t.rpm, time.Minute)
	if err != nil {
		return true, err
	}
	if !res.Allowed {
		t.deny("tool_rpm")
		return false, nil
	}
	q, err := t.daily.Consume(ctx, "tool:"+t.name, t.perDay)
	if err != nil {
		return true, err
	}
	if !q.Allowed {
		t.deny("tool_daily")
		return false, nil
	}
	return true, nil
}

func (t *ToolQuota) deny(dimension string) {
	if t.onDeny != nil {
		t.onDeny(dimension)
	}
}
