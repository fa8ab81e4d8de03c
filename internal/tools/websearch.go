package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/af-corp/queryrouter/internal/config"
)

// Quota is a shared upstream allowance, typically enforced in Redis across
// router replicas.
type Quota interface {
	Allow(ctx context.Context) (bool, error)
}

// WebSearch queries a SearxNG-compatible JSON search endpoint.
type WebSearch struct {
	client *resty.Client
	cfg    config.WebSearchConfig
	local  *rate.Limiter
	quota  Quota
	logger *slog.Logger
}

// NewWebSearch builds the adapter. quota may be nil.
func NewWebSearch(cfg config.WebSearchConfig, quota Quota, logger *slog.Logger) *WebSearch {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	limit := rate.Inf
	if cfg.RequestsPerMin > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMin) / 60.0)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &WebSearch{
		client: client,
		cfg:    cfg,
		local:  rate.NewLimiter(limit, burst),
		quota:  quota,
		logger: logger,
	}
}

func (w *WebSearch) Kind() Kind { return KindWebSearch }

func (w *WebSearch) HealthCheck(ctx context.Context) error {
	resp, err := w.client.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		return fmt.Errorf("web search health: %w", err)
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("web search health: status %d", resp.StatusCode())
	}
	return nil
}

func (w *WebSearch) Invoke(ctx context.Context, in Input) Invocation {
	return run(ctx, KindWebSearch, in, func(ctx context.Context) (*Output, int, error) {
		if !w.local.Allow() {
			return nil, 0, Errorf(KindWebSearch, ErrorKindRateLimited, "local search rate exceeded")
		}
		if w.quota != nil {
			ok, err := w.quota.Allow(ctx)
			if err != nil {
				w.logger.Warn("search quota check failed", "error", err)
			}
			if !ok {
				return nil, 0, Errorf(KindWebSearch, ErrorKindRateLimited, "search quota exhausted")
			}
		}

		var (
			attempts int
			passages []Passage
			lastErr  error
		)
		backoff := retry.WithMaxRetries(1, retry.NewConstant(w.retryBackoff()))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			attempts++
			p, err := w.search(ctx, in.Query)
			if err != nil {
				lastErr = err
				if retryable(err) {
					w.logger.Debug("web search attempt failed, retrying", "attempt", attempts, "error", err)
					return retry.RetryableError(err)
				}
				return err
			}
			passages = p
			return nil
		})
		if err != nil {
			// retry.Do returns the bare context error when the deadline hits
			// during backoff.
			if lastErr != nil && errors.Is(err, ctx.Err()) {
				err = Errorf(KindWebSearch, ErrorKindTimeout, "search deadline exceeded after %d attempt(s)", attempts)
			}
			return nil, attempts, err
		}
		return &Output{Passages: passages}, attempts, nil
	})
}

func (w *WebSearch) retryBackoff() time.Duration {
	if w.cfg.RetryBackoff > 0 {
		return w.cfg.RetryBackoff
	}
	return 300 * time.Millisecond
}

// upstreamError marks a 5xx from the search backend.
type upstreamError struct{ status int }

func (e *upstreamError) Error() string {
	return fmt.Sprintf("search backend returned status %d", e.status)
}

func retryable(err error) bool {
	var up *upstreamError
	if errors.As(err, &up) {
		return true
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited)
}

func (w *WebSearch) search(ctx context.Context, query string) ([]Passage, error) {
	if w.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.AttemptTimeout)
		defer cancel()
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      query,
			"format": "json",
		}).
		Get("/search")
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, NewError(KindWebSearch, ErrorKindTimeout, err)
		}
		return nil, NewError(KindWebSearch, ErrorKindUnavailable, err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusTooManyRequests:
		return nil, Errorf(KindWebSearch, ErrorKindRateLimited, "search backend rate limited the request")
	case status >= 500:
		return nil, NewError(KindWebSearch, ErrorKindUnavailable, &upstreamError{status: status})
	case status >= 400:
		return nil, Errorf(KindWebSearch, ErrorKindUnavailable, "search backend rejected the request: status %d", status)
	}

	passages := w.parseResults(resp.Body())
	if len(passages) == 0 {
		return nil, Errorf(KindWebSearch, ErrorKindNoResults, "no usable results for query")
	}
	return passages, nil
}

// parseResults keeps results that carry a title, a URL and a snippet of at
// least MinSnippetChars, up to MaxResults.
func (w *WebSearch) parseResults(body []byte) []Passage {
	limit := w.cfg.MaxResults
	if limit <= 0 {
		limit = 3
	}
	var out []Passage
	gjson.GetBytes(body, "results").ForEach(func(_, r gjson.Result) bool {
		title := strings.TrimSpace(r.Get("title").String())
		url := strings.TrimSpace(r.Get("url").String())
		snippet := strings.TrimSpace(r.Get("content").String())
		if snippet == "" {
			snippet = strings.TrimSpace(r.Get("snippet").String())
		}
		if title == "" || url == "" || len(snippet) < w.cfg.MinSnippetChars {
			return true
		}
		out = append(out, Passage{
			Text:   snippet,
			Source: url,
			Title:  title,
			URL:    url,
			Score:  r.Get("score").Float(),
		})
		return len(out) < limit
	})
	return out
}
