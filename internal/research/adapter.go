package research

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crestonhq/researchd/internal/metrics"
	"github.com/crestonhq/researchd/internal/tracing"
)

// Adapter wraps the external deep-research engine. It composes the enhanced
// query, tracks token usage during the call, and normalizes the engine's
// loosely-shaped result into a canonical Result.
type Adapter struct {
	engine       Engine
	defaultModel string
	logger       *zap.Logger
}

// RunInput is one research invocation
type RunInput struct {
	Query             string
	ParentSummary     string
	DocumentSummaries []string
	// TraceID correlates the run with external observability tooling.
	// When empty, the ambient span's trace id or a fresh uuid is used.
	TraceID string
}

// NewAdapter creates an adapter around engine. A nil engine is allowed; Run
// then fails fast with ErrCapabilityUnavailable.
func NewAdapter(engine Engine, defaultModel string, logger *zap.Logger) *Adapter {
	return &Adapter{engine: engine, defaultModel: defaultModel, logger: logger}
}

// Run executes one research call. Engine failures are wrapped as
// *ExecutionError and are retryable; a missing engine is not.
func (a *Adapter) Run(ctx context.Context, input RunInput) (*Result, error) {
	if a.engine == nil {
		return nil, ErrCapabilityUnavailable
	}

	enhancedQuery := ComposeContext(input.Query, input.ParentSummary, input.DocumentSummaries)
	tracker := NewTokenTracker()

	ctx, span := tracing.StartSpan(ctx, "research.execute")
	defer span.End()

	start := time.Now()
	raw, err := a.engine.Execute(ctx, enhancedQuery, tracker, Options{Model: a.defaultModel})
	if err != nil {
		metrics.ResearchEngineCalls.WithLabelValues("error").Inc()
		a.logger.Warn("Research engine call failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, NewExecutionError(err)
	}
	metrics.ResearchEngineCalls.WithLabelValues("ok").Inc()

	result := normalizeResult(raw)
	result.TokenUsage = tracker.Usage()
	if result.TokenUsage.Model == "" {
		result.TokenUsage.Model = a.defaultModel
	}
	result.TraceID = a.resolveTraceID(ctx, input.TraceID)

	a.logger.Info("Research run completed",
		zap.String("trace_id", result.TraceID),
		zap.String("model", result.TokenUsage.Model),
		zap.Int("total_tokens", result.TokenUsage.TotalTokens),
		zap.Int("sources", len(result.Sources)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return result, nil
}

// resolveTraceID prefers the caller-supplied id, then the ambient span, and
// finally synthesizes a fresh identifier so every result is traceable.
func (a *Adapter) resolveTraceID(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if id := tracing.TraceIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}
