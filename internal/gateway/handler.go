package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/af-corp/queryrouter/internal/auth"
	"github.com/af-corp/queryrouter/internal/config"
	"github.com/af-corp/queryrouter/internal/httputil"
	"github.com/af-corp/queryrouter/internal/router"
	"github.com/af-corp/queryrouter/internal/tools"
	"github.com/af-corp/queryrouter/internal/types"
)

const maxBodyBytes = 1 << 20

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query string `json:"query" validate:"required"`
}

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	router   *router.Router
	catalog  router.SnapshotSource
	cfg      func() *config.Config
	validate *validator.Validate
	version  string
}

func NewHandler(r *router.Router, catalog router.SnapshotSource, cfg func() *config.Config, version string) *Handler {
	return &Handler{
		router:   r,
		catalog:  catalog,
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		version:  version,
	}
}

// Query handles POST /v1/query. Routing failures come back as an envelope
// with success=false and HTTP 200; only malformed requests get an error body.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req QueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}
	req.Query = types.NormalizeText(req.Query)
	if err := h.validate.Struct(req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "query is required")
		return
	}
	if limit := h.cfg().Server.MaxQueryLength; limit > 0 {
		if err := h.validate.Var(req.Query, fmt.Sprintf("max=%d", limit)); err != nil {
			httputil.WriteBadRequestError(w, reqID, fmt.Sprintf("query exceeds %d characters", limit))
			return
		}
	}

	callerID := ""
	if caller, ok := auth.CallerFromContext(r.Context()); ok {
		callerID = caller.KeyID
	}

	env := h.router.Route(r.Context(), types.NewQuery(req.Query, reqID, callerID))
	httputil.WriteJSON(w, http.StatusOK, env)
}

type collectionsResponse struct {
	Version     uint64             `json:"version"`
	Collections []types.Collection `json:"collections"`
}

// Collections handles GET /v1/collections.
func (h *Handler) Collections(w http.ResponseWriter, r *http.Request) {
	snap := h.catalog.Snapshot()
	httputil.WriteJSON(w, http.StatusOK, collectionsResponse{
		Version:     snap.Version(),
		Collections: snap.Collections(),
	})
}

type healthResponse struct {
	Status  string                           `json:"status"`
	Version string                           `json:"version"`
	Catalog int                              `json:"collections"`
	Tools   map[tools.Kind]router.ToolHealth `json:"tools"`
}

// Health handles GET /health. The service is unhealthy only when direct
// generation, the last fallback, is down; other tool outages degrade it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.router.Health.Report(r.Context(), h.router.Tools)

	status, code := "healthy", http.StatusOK
	for kind, th := range report {
		if th.Healthy {
			continue
		}
		if kind == tools.KindDirect {
			status, code = "unhealthy", http.StatusServiceUnavailable
			break
		}
		status = "degraded"
	}
	if status != "healthy" {
		slog.Warn("health check not green", "status", status, "tools", report)
	}

	httputil.WriteJSON(w, code, healthResponse{
		Status:  status,
		Version: h.version,
		Catalog: h.catalog.Snapshot().Len(),
		Tools:   report,
	})
}
