package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/af-corp/queryrouter/internal/auth"
	"github.com/af-corp/queryrouter/internal/catalog"
	"github.com/af-corp/queryrouter/internal/classifier"
	"github.com/af-corp/queryrouter/internal/config"
	"github.com/af-corp/queryrouter/internal/policy"
	"github.com/af-corp/queryrouter/internal/selector"
	"github.com/af-corp/queryrouter/internal/synth"
	"github.com/af-corp/queryrouter/internal/telemetry"
	"github.com/af-corp/queryrouter/internal/tools"
	"github.com/af-corp/queryrouter/internal/types"
)

// State names recorded in the envelope's "states" metadata.
const (
	StateReceived    = "received"
	StateClassified  = "classified"
	StateDispatched  = "dispatched"
	StateSynthesized = "synthesized"
	StateDegraded    = "degraded"
	StateReturned    = "returned"
)

const (
	ReasonNoCollectionMatch = "no_collection_match"

	genericFailureMessage = "Sorry, I couldn't produce an answer right now. Please try again later."
	calcFailurePrefix     = "could not evaluate expression: "
	calcUnavailable       = "could not evaluate expression right now. Please try again."
)

// SnapshotSource hands out the current catalog view.
type SnapshotSource interface {
	Snapshot() *catalog.Snapshot
}

// Deps are the collaborators of a Router. Policy and Metrics may be nil.
type Deps struct {
	Catalog    SnapshotSource
	Classifier *classifier.Classifier
	Selector   *selector.Selector
	Tools      *tools.Registry
	Synth      *synth.Synthesizer
	Health     *HealthTracker
	Policy     *policy.Evaluator
	Metrics    *telemetry.Metrics
	Config     func() config.RoutingConfig
	Logger     *slog.Logger
}

// Router runs the per-request state machine. It keeps no per-request state
// between calls and is safe for concurrent use.
type Router struct {
	Deps
}

func New(d Deps) *Router {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Health == nil {
		cb := d.Config().CircuitBreaker
		d.Health = NewHealthTracker(cb.FailureThreshold, cb.RecoveryInterval)
	}
	if d.Metrics != nil {
		metrics := d.Metrics
		d.Health.OnStateChange(func(kind tools.Kind, state CircuitState) {
			metrics.SetCircuitOpen(string(kind), state == StateOpen)
		})
	}
	return &Router{Deps: d}
}

// request is the state tracked for one Route call.
type request struct {
	query      types.Query
	snap       *catalog.Snapshot
	intent     types.Intent
	confidence float64
	rationale  string
	signals    []string
	collection string

	fallback       bool
	fallbackReason string
	originalIntent types.Intent
	originalConf   float64

	states      []string
	invocations []tools.Invocation
}

func (rq *request) enter(state string) { rq.states = append(rq.states, state) }

// downgrade re-targets the request at DIRECT. It is applied at most once.
func (rq *request) downgrade(reason string, discount float64) {
	rq.fallback = true
	rq.fallbackReason = reason
	rq.originalIntent = rq.intent
	rq.originalConf = rq.confidence
	rq.intent = types.IntentDirect
	rq.collection = ""
	rq.confidence = types.ClampConfidence(rq.confidence * discount)
}

// Route answers q. It never returns nil and never returns a raw error: every
// failure is folded into the envelope.
func (r *Router) Route(ctx context.Context, q types.Query) *types.ResponseEnvelope {
	start := time.Now()
	cfg := r.Config()
	if cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
	}
	ctx, span := telemetry.StartSpan(ctx, "router.route", attribute.String("request_id", q.RequestID))

	rq := &request{query: q, snap: r.Catalog.Snapshot()}
	rq.enter(StateReceived)

	cls := r.Classifier.Classify(q, rq.snap)
	rq.intent, rq.confidence, rq.rationale = cls.Intent, cls.Confidence, cls.Rationale
	rq.signals = cls.Signals
	rq.enter(StateClassified)
	if r.Metrics != nil {
		r.Metrics.RecordClassification(string(cls.Intent), cls.Confidence)
	}

	if rq.intent == types.IntentRetrieval {
		if sel, ok := r.Selector.Select(q.Text, rq.snap); ok {
			rq.collection = sel.Collection
		} else {
			r.applyFallback(rq, tools.KindRetriever, ReasonNoCollectionMatch, cfg.FallbackDiscount)
		}
	}

	env := r.dispatchAndSynthesize(ctx, rq, cfg)
	rq.enter(StateReturned)
	env.Metadata[types.MetaStates] = rq.states

	span.SetAttributes(
		attribute.String("intent", string(env.QueryType)),
		attribute.Bool("success", env.Success),
		attribute.Bool("fallback", rq.fallback),
	)
	telemetry.EndSpan(span, nil)

	path, _ := env.Metadata[types.MetaProcessingPath].(string)
	durationMs := float64(time.Since(start).Microseconds()) / 1000
	if r.Metrics != nil {
		r.Metrics.RecordRoute(telemetry.RouteLabels{
			Intent:     string(env.QueryType),
			Path:       path,
			Success:    env.Success,
			DurationMs: durationMs,
		})
	}
	r.Logger.Info("query routed",
		"request_id", q.RequestID,
		"intent", env.QueryType,
		"classified_as", cls.Intent,
		"path", path,
		"collection", env.Store(),
		"confidence", env.Confidence,
		"success", env.Success,
		"fallback", rq.fallback,
		"duration_ms", durationMs,
	)
	return env
}

// dispatchAndSynthesize runs DISPATCHED and SYNTHESIZED, re-entering dispatch
// once as DIRECT when a tool with a fallback fails.
func (r *Router) dispatchAndSynthesize(ctx context.Context, rq *request, cfg config.RoutingConfig) *types.ResponseEnvelope {
	for {
		kind := toolFor(rq.intent)
		rq.enter(StateDispatched)
		inv := r.dispatch(ctx, rq, kind, cfg)
		rq.invocations = append(rq.invocations, inv)

		if inv.OK() {
			return r.synthesize(ctx, rq, inv, cfg)
		}
		if rq.intent.HasFallback() && !rq.fallback {
			r.applyFallback(rq, kind, string(tools.KindOf(inv.Err)), cfg.FallbackDiscount)
			continue
		}
		return r.degraded(rq, inv.Err)
	}
}

func (r *Router) applyFallback(rq *request, from tools.Kind, reason string, discount float64) {
	if discount <= 0 || discount > 1 {
		discount = 0.5
	}
	r.Logger.Warn("falling back to direct generation",
		"request_id", rq.query.RequestID,
		"from", rq.intent,
		"tool", from,
		"reason", reason,
	)
	if r.Metrics != nil {
		r.Metrics.RecordFallback(string(rq.intent), reason)
	}
	rq.downgrade(reason, discount)
}

// dispatch invokes one tool under its timeout, breaker and policy gates.
func (r *Router) dispatch(ctx context.Context, rq *request, kind tools.Kind, cfg config.RoutingConfig) tools.Invocation {
	in := tools.Input{Query: rq.query.Text, Collection: rq.collection}
	ctx, span := telemetry.StartSpan(ctx, "router.dispatch",
		attribute.String("tool", string(kind)),
		attribute.String("collection", rq.collection),
	)

	inv := r.invoke(ctx, rq, kind, in, timeoutFor(kind, cfg.Timeouts))
	telemetry.EndSpan(span, inv.Err)

	outcome := "ok"
	if inv.Err != nil {
		outcome = string(tools.KindOf(inv.Err))
		r.Logger.Warn("tool invocation failed",
			"request_id", rq.query.RequestID,
			"tool", kind,
			"error_kind", outcome,
			"error", inv.Err,
			"attempts", inv.Attempts,
			"duration_ms", inv.Latency.Milliseconds(),
		)
	}
	if r.Metrics != nil {
		r.Metrics.RecordTool(string(kind), outcome, float64(inv.Latency.Microseconds())/1000)
	}
	return inv
}

func (r *Router) invoke(ctx context.Context, rq *request, kind tools.Kind, in tools.Input, timeout time.Duration) tools.Invocation {
	rejected := func(format string, args ...any) tools.Invocation {
		return tools.Invocation{
			Tool:  kind,
			Input: in,
			Err:   tools.Errorf(kind, tools.ErrorKindUnavailable, format, args...),
		}
	}

	tool, ok := r.Tools.Get(kind)
	if !ok {
		return rejected("tool not configured")
	}

	caller, _ := auth.CallerFromContext(ctx)
	if caller != nil && kind != tools.KindDirect && !caller.CanUse(string(kind)) {
		return rejected("tool not enabled for caller")
	}
	if r.Policy != nil {
		d := r.Policy.AllowTool(ctx, policyCaller(caller), policy.Request{
			Tool:       string(kind),
			Intent:     string(rq.intent),
			Collection: rq.collection,
			Confidence: rq.confidence,
			Fallback:   rq.fallback,
		})
		if !d.Allowed {
			return rejected("denied by policy: %s", d.Reason)
		}
	}

	if !r.Health.Allow(kind) {
		return rejected("circuit open")
	}

	tctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	inv := tool.Invoke(tctx, in)

	switch {
	case inv.Err == nil:
		r.Health.RecordSuccess(kind)
	case ctx.Err() != nil:
		// The request itself ended; say nothing about the tool.
		r.Health.Release(kind)
	case backendFault(inv.Err):
		r.Health.RecordFailure(kind)
	default:
		r.Health.RecordSuccess(kind)
	}
	return inv
}

func (r *Router) synthesize(ctx context.Context, rq *request, inv tools.Invocation, cfg config.RoutingConfig) *types.ResponseEnvelope {
	parent := ctx
	ctx, span := telemetry.StartSpan(ctx, "router.synthesize", attribute.String("intent", string(rq.intent)))
	if cfg.Timeouts.Generation > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeouts.Generation)
		defer cancel()
	}
	generates := rq.intent == types.IntentRetrieval || rq.intent == types.IntentWebSearch
	if generates && !r.Health.Allow(tools.KindDirect) {
		err := tools.Errorf(tools.KindDirect, tools.ErrorKindUnavailable, "circuit open")
		telemetry.EndSpan(span, err)
		r.Logger.Warn("grounded generation skipped",
			"request_id", rq.query.RequestID,
			"intent", rq.intent,
			"error", err,
		)
		return r.degraded(rq, err)
	}

	out, err := r.Synth.Synthesize(ctx, rq.query, rq.intent, inv, rq.fallback)
	telemetry.EndSpan(span, err)
	if generates {
		switch {
		case err == nil:
			r.Health.RecordSuccess(tools.KindDirect)
		case parent.Err() != nil:
			r.Health.Release(tools.KindDirect)
		default:
			r.Health.RecordFailure(tools.KindDirect)
		}
	}
	if err != nil {
		r.Logger.Error("synthesis failed",
			"request_id", rq.query.RequestID,
			"intent", rq.intent,
			"error", err,
		)
		if r.Metrics != nil {
			r.Metrics.RecordTool(string(tools.KindDirect), string(tools.KindOf(err)), 0)
		}
		return r.degraded(rq, err)
	}
	rq.enter(StateSynthesized)

	env := r.envelope(rq)
	env.Response = out.Text
	env.Success = true
	env.Metadata[types.MetaProcessingPath] = out.Path
	if len(out.Sources) > 0 {
		env.Metadata[types.MetaSources] = out.Sources
	}
	if rq.intent == types.IntentRetrieval && rq.collection != "" {
		name := rq.collection
		env.SelectedStore = &name
	}
	return env
}

// degraded builds the success=false envelope. Only calculator input errors
// are explained to the caller; everything else gets the generic message.
func (r *Router) degraded(rq *request, err error) *types.ResponseEnvelope {
	rq.enter(StateDegraded)
	env := r.envelope(rq)
	env.Success = false
	env.Confidence = 0
	env.Metadata[types.MetaProcessingPath] = types.PathDegraded
	env.Metadata[types.MetaErrorKind] = string(tools.KindOf(err))
	if rq.intent == types.IntentRetrieval && rq.collection != "" {
		name := rq.collection
		env.SelectedStore = &name
	}

	if rq.intent == types.IntentCalculation {
		env.Response = calcFailureMessage(err)
	} else {
		env.Response = genericFailureMessage
	}
	return env
}

func (r *Router) envelope(rq *request) *types.ResponseEnvelope {
	meta := map[string]any{
		types.MetaRationale:       rq.rationale,
		types.MetaFallbackApplied: rq.fallback,
		types.MetaRequestID:       rq.query.RequestID,
	}
	if len(rq.signals) > 0 {
		meta[types.MetaSignals] = rq.signals
	}
	if rq.fallback {
		meta[types.MetaFallbackReason] = rq.fallbackReason
		meta[types.MetaOriginalIntent] = string(rq.originalIntent)
		meta[types.MetaOriginalConfidence] = rq.originalConf
	}

	latency := make(map[string]int64, len(rq.invocations))
	attempts := 0
	for _, inv := range rq.invocations {
		latency[string(inv.Tool)] += inv.Latency.Milliseconds()
		attempts += inv.Attempts
	}
	meta[types.MetaToolLatencyMs] = latency
	meta[types.MetaAttempts] = attempts

	return &types.ResponseEnvelope{
		Query:      rq.query.Text,
		QueryType:  rq.intent,
		Confidence: types.ClampConfidence(rq.confidence),
		Metadata:   meta,
	}
}

func calcFailureMessage(err error) string {
	var te *tools.Error
	if errors.As(err, &te) && (te.Kind == tools.ErrorKindParse || te.Kind == tools.ErrorKindDomain) {
		return calcFailurePrefix + te.Message()
	}
	return calcUnavailable
}

// backendFault reports whether err says something about the tool's health
// rather than about the query.
func backendFault(err error) bool {
	switch tools.KindOf(err) {
	case tools.ErrorKindTimeout, tools.ErrorKindUnavailable, tools.ErrorKindGeneration:
		return true
	}
	return false
}

func toolFor(intent types.Intent) tools.Kind {
	switch intent {
	case types.IntentCalculation:
		return tools.KindCalculator
	case types.IntentWebSearch:
		return tools.KindWebSearch
	case types.IntentRetrieval:
		return tools.KindRetriever
	default:
		return tools.KindDirect
	}
}

func timeoutFor(kind tools.Kind, t config.ToolTimeouts) time.Duration {
	switch kind {
	case tools.KindCalculator:
		return t.Calculator
	case tools.KindWebSearch:
		return t.WebSearch
	case tools.KindRetriever:
		return t.Retriever
	default:
		return t.Generation
	}
}

func policyCaller(c *auth.Caller) policy.Caller {
	if c == nil {
		return policy.Caller{}
	}
	return policy.Caller{ID: c.KeyID, Owner: c.Owner, AllowedTools: c.AllowedTools}
}
