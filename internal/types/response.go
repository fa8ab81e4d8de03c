package types

// Recognized metadata keys on a ResponseEnvelope.
const (
	MetaRationale          = "rationale"
	MetaProcessingPath     = "processing_path"
	MetaFallbackApplied    = "fallback_applied"
	MetaFallbackReason     = "fallback_reason"
	MetaOriginalIntent     = "original_intent"
	MetaOriginalConfidence = "original_confidence"
	MetaToolLatencyMs      = "tool_latency_ms"
	MetaAttempts           = "attempts"
	MetaStates             = "states"
	MetaSources            = "sources"
	MetaErrorKind          = "error_kind"
	MetaRequestID          = "request_id"
	MetaSignals            = "signals"
)

// Processing paths disclosed in metadata.
const (
	PathRetrievalGrounded = "retrieval_grounded"
	PathWebSearchGrounded = "web_search_grounded"
	PathCalculation       = "calculation"
	PathDirect            = "direct_generation"
	PathDirectFallback    = "direct_fallback"
	PathDegraded          = "degraded"
)

// ResponseEnvelope is the terminal artifact returned to the caller.
type ResponseEnvelope struct {
	Query         string         `json:"query"`
	Response      string         `json:"response"`
	SelectedStore *string        `json:"selected_store"`
	QueryType     Intent         `json:"query_type"`
	Confidence    float64        `json:"confidence"`
	Success       bool           `json:"success"`
	Metadata      map[string]any `json:"metadata"`
}

// Store returns the selected store name, or "" when none was selected.
func (e *ResponseEnvelope) Store() string {
	if e.SelectedStore == nil {
		return ""
	}
	return *e.SelectedStore
}

// FallbackApplied reports whether the envelope records a fallback.
func (e *ResponseEnvelope) FallbackApplied() bool {
	v, _ := e.Metadata[MetaFallbackApplied].(bool)
	return v
}
