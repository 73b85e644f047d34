package activities

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/crestonhq/researchd/internal/db"
	"github.com/crestonhq/researchd/internal/metrics"
	"github.com/crestonhq/researchd/internal/pricing"
	"github.com/crestonhq/researchd/internal/research"
	"github.com/crestonhq/researchd/internal/statuscache"
)

// CapabilityUnavailableErrType tags the non-retryable application error
// raised when the research engine is not configured or reachable
const CapabilityUnavailableErrType = "CapabilityUnavailable"

// keyFindingsLimit bounds the findings copied into the summary record
const keyFindingsLimit = 10

// Activities holds dependencies for the research pipeline activities
type Activities struct {
	dbClient    *db.Client
	adapter     *research.Adapter
	statusCache *statuscache.Cache
	pricing     *pricing.Table
	logger      *zap.Logger
}

// NewActivities creates an activities instance with dependencies
func NewActivities(dbClient *db.Client, adapter *research.Adapter, statusCache *statuscache.Cache, pricingTable *pricing.Table, logger *zap.Logger) *Activities {
	return &Activities{
		dbClient:    dbClient,
		adapter:     adapter,
		statusCache: statusCache,
		pricing:     pricingTable,
		logger:      logger,
	}
}

func (a *Activities) cacheStatus(ctx context.Context, sessionID, status, errorMessage string) {
	if a.statusCache == nil {
		return
	}
	a.statusCache.Set(ctx, sessionID, status, errorMessage)
}

// MarkSessionRunning transitions the session to running before the engine
// call so concurrent status reads observe it
func (a *Activities) MarkSessionRunning(ctx context.Context, input MarkSessionRunningInput) error {
	sessionID, err := uuid.Parse(input.SessionID)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", input.SessionID, err)
	}
	if err := a.dbClient.MarkSessionRunning(ctx, sessionID); err != nil {
		return err
	}
	a.cacheStatus(ctx, input.SessionID, db.StatusRunning, "")
	return nil
}

// FetchResearchContext loads the session's query, the parent summary copied
// at creation, and the non-empty document summaries available right now.
// Documents still being processed are best-effort excluded, not waited for.
func (a *Activities) FetchResearchContext(ctx context.Context, input FetchResearchContextInput) (FetchResearchContextResult, error) {
	sessionID, err := uuid.Parse(input.SessionID)
	if err != nil {
		return FetchResearchContextResult{}, fmt.Errorf("invalid session id %q: %w", input.SessionID, err)
	}

	session, err := a.dbClient.GetSession(ctx, sessionID)
	if err != nil {
		return FetchResearchContextResult{}, err
	}
	summaries, err := a.dbClient.ListDocumentSummaries(ctx, sessionID)
	if err != nil {
		return FetchResearchContextResult{}, err
	}

	return FetchResearchContextResult{
		Query:             session.Query,
		ParentSummary:     session.ParentSummary,
		DocumentSummaries: summaries,
	}, nil
}

// ExecuteResearch runs one engine attempt. A missing capability surfaces as
// a non-retryable application error; transient failures propagate as plain
// errors for the workflow's retry policy to handle.
func (a *Activities) ExecuteResearch(ctx context.Context, input ExecuteResearchInput) (ExecuteResearchResult, error) {
	result, err := a.adapter.Run(ctx, research.RunInput{
		Query:             input.Query,
		ParentSummary:     input.ParentSummary,
		DocumentSummaries: input.DocumentSummaries,
		TraceID:           input.TraceID,
	})
	if err != nil {
		if errorIsCapabilityUnavailable(err) {
			return ExecuteResearchResult{}, temporal.NewNonRetryableApplicationError(
				"research capability unavailable", CapabilityUnavailableErrType, err)
		}
		return ExecuteResearchResult{}, err
	}

	return ExecuteResearchResult{
		Report:         result.Report,
		Summary:        result.Summary,
		Sources:        result.Sources,
		ReasoningSteps: result.ReasoningSteps,
		TokenUsage:     result.TokenUsage,
		TraceID:        result.TraceID,
	}, nil
}

// PersistResearchResults writes the session results, summary record,
// reasoning trail, and cost record in one transaction
func (a *Activities) PersistResearchResults(ctx context.Context, input PersistResearchResultsInput) error {
	sessionID, err := uuid.Parse(input.SessionID)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", input.SessionID, err)
	}

	result := input.Result
	usage := result.TokenUsage

	keyFindings := result.Sources
	if len(keyFindings) > keyFindingsLimit {
		keyFindings = keyFindings[:keyFindingsLimit]
	}

	steps := make([]db.ReasoningStep, 0, len(result.ReasoningSteps))
	for _, step := range result.ReasoningSteps {
		steps = append(steps, db.ReasoningStep{
			SessionID:   sessionID,
			StepType:    step.Type,
			Description: step.Description,
			Metadata:    db.JSONB(step.Metadata),
		})
	}

	cost := a.pricing.CostForSplit(usage.Model, usage.InputTokens, usage.OutputTokens)

	err = a.dbClient.CompleteSession(ctx, db.SessionCompletion{
		SessionID:   sessionID,
		FinalReport: result.Report,
		Summary:     result.Summary,
		Sources:     result.Sources,
		TraceID:     result.TraceID,
		KeyFindings: keyFindings,
		Steps:       steps,
		Cost: db.CostRecord{
			SessionID:        sessionID,
			ModelName:        usage.Model,
			InputTokens:      usage.InputTokens,
			OutputTokens:     usage.OutputTokens,
			EstimatedCostUSD: cost,
		},
	})
	if err != nil {
		return err
	}

	a.cacheStatus(ctx, input.SessionID, db.StatusCompleted, "")
	metrics.SessionsCompleted.WithLabelValues(db.StatusCompleted).Inc()
	metrics.SessionTokensUsed.Observe(float64(usage.TotalTokens))
	costF, _ := cost.Float64()
	metrics.SessionCostUSD.Observe(costF)

	a.logger.Info("Research results persisted",
		zap.String("session_id", input.SessionID),
		zap.String("model", usage.Model),
		zap.Int("total_tokens", usage.TotalTokens),
		zap.String("estimated_cost_usd", cost.String()),
	)
	return nil
}

// MarkSessionFailed records a terminal failure with its cause
func (a *Activities) MarkSessionFailed(ctx context.Context, input MarkSessionFailedInput) error {
	sessionID, err := uuid.Parse(input.SessionID)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", input.SessionID, err)
	}
	if err := a.dbClient.MarkSessionFailed(ctx, sessionID, input.ErrorMessage); err != nil {
		return err
	}
	a.cacheStatus(ctx, input.SessionID, db.StatusFailed, input.ErrorMessage)
	metrics.SessionsCompleted.WithLabelValues(db.StatusFailed).Inc()
	return nil
}

func errorIsCapabilityUnavailable(err error) bool {
	return errors.Is(err, research.ErrCapabilityUnavailable)
}
