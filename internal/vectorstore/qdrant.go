package vectorstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// QdrantConfig configures the REST client.
type QdrantConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Qdrant is a minimal REST client to Qdrant. Collections are expected to be
// created by the ingestion pipeline with a text payload per point.
type Qdrant struct {
	client *resty.Client
}

func NewQdrant(cfg QdrantConfig) *Qdrant {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("api-key", cfg.APIKey)
	}
	return &Qdrant{client: client}
}

func (q *Qdrant) Search(ctx context.Context, collection string, vector []float32, topK int, minScore float64) ([]Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if minScore > 0 {
		body["score_threshold"] = minScore
	}

	resp, err := q.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/collections/" + url.PathEscape(collection) + "/points/search")
	if err != nil {
		return nil, fmt.Errorf("qdrant search %s: %w", collection, err)
	}
	if err := statusError(resp, collection); err != nil {
		return nil, err
	}

	var hits []Hit
	for _, r := range gjson.GetBytes(resp.Body(), "result").Array() {
		score := r.Get("score").Float()
		if score < minScore {
			continue
		}
		payload := r.Get("payload")
		hits = append(hits, Hit{
			Document: Document{
				ID:     r.Get("id").String(),
				Text:   payload.Get("text").String(),
				Source: firstNonEmpty(payload.Get("source").String(), payload.Get("document_id").String()),
			},
			Score: score,
		})
	}
	return hits, nil
}

func (q *Qdrant) Count(ctx context.Context, collection string) (int64, error) {
	resp, err := q.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"exact": true}).
		Post("/collections/" + url.PathEscape(collection) + "/points/count")
	if err != nil {
		return 0, fmt.Errorf("qdrant count %s: %w", collection, err)
	}
	if err := statusError(resp, collection); err != nil {
		return 0, err
	}
	return gjson.GetBytes(resp.Body(), "result.count").Int(), nil
}

func (q *Qdrant) Health(ctx context.Context) error {
	resp, err := q.client.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		return fmt.Errorf("qdrant health: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("qdrant health: %s", resp.Status())
	}
	return nil
}

func statusError(resp *resty.Response, collection string) error {
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	case resp.IsError():
		return fmt.Errorf("qdrant %s: %s", collection, resp.Status())
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
