package types

import (
	"strings"
	"time"
)

// Query is the canonical internal representation of an inbound question.
// It is created per request and never persisted.
type Query struct {
	Text       string    `json:"query"`
	RequestID  string    `json:"request_id,omitempty"`
	CallerID   string    `json:"caller_id,omitempty"`
	ReceivedAt time.Time `json:"-"`
}

// NewQuery builds a Query with whitespace-normalised text.
func NewQuery(text, requestID, callerID string) Query {
	return Query{
		Text:       NormalizeText(text),
		RequestID:  requestID,
		CallerID:   callerID,
		ReceivedAt: time.Now(),
	}
}

// NormalizeText collapses runs of whitespace and trims the ends.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Collection is a named, independently queryable partition of embedded documents.
type Collection struct {
	Name          string   `json:"name" yaml:"name"`
	Category      string   `json:"category" yaml:"category"`
	SourceType    string   `json:"source_type" yaml:"source_type"`
	Tags          []string `json:"tags" yaml:"tags"`
	Description   string   `json:"description,omitempty" yaml:"description"`
	DocumentCount int64    `json:"document_count" yaml:"document_count"`
}
