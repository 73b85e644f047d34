package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/crestonhq/researchd/internal/activities"
	"github.com/crestonhq/researchd/internal/db"
	"github.com/crestonhq/researchd/internal/metrics"
)

// Activity names registered by the worker
const (
	ActivityMarkSessionRunning     = "MarkSessionRunning"
	ActivityFetchResearchContext   = "FetchResearchContext"
	ActivityExecuteResearch        = "ExecuteResearch"
	ActivityPersistResearchResults = "PersistResearchResults"
	ActivityMarkSessionFailed      = "MarkSessionFailed"
)

// ResearchWorkflow runs one session end to end: mark running, assemble
// context, call the engine with explicit retries, persist results. The
// engine activity runs with a single Temporal attempt; retries and their
// backoff timers belong to this workflow.
func ResearchWorkflow(ctx workflow.Context, input ResearchWorkflowInput) (ResearchWorkflowResult, error) {
	return researchWorkflow(ctx, input, policyFromInput(input))
}

func researchWorkflow(ctx workflow.Context, input ResearchWorkflowInput, policy RetryPolicy) (ResearchWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	startedAt := workflow.Now(ctx)
	logger.Info("Starting research session",
		"session_id", input.SessionID,
		"trace_id", input.TraceID,
	)

	dbCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	})
	// Engine calls get exactly one Temporal attempt each; this workflow
	// owns the retry schedule.
	engineCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	if err := workflow.ExecuteActivity(dbCtx, ActivityMarkSessionRunning, activities.MarkSessionRunningInput{
		SessionID: input.SessionID,
	}).Get(ctx, nil); err != nil {
		return failSession(ctx, dbCtx, input.SessionID, 0, fmt.Sprintf("failed to start session: %v", err))
	}

	var researchCtx activities.FetchResearchContextResult
	if err := workflow.ExecuteActivity(dbCtx, ActivityFetchResearchContext, activities.FetchResearchContextInput{
		SessionID: input.SessionID,
	}).Get(ctx, &researchCtx); err != nil {
		return failSession(ctx, dbCtx, input.SessionID, 0, fmt.Sprintf("failed to load research context: %v", err))
	}

	var result activities.ExecuteResearchResult
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		attempts = attempt
		err := workflow.ExecuteActivity(engineCtx, ActivityExecuteResearch, activities.ExecuteResearchInput{
			SessionID:         input.SessionID,
			Query:             researchCtx.Query,
			ParentSummary:     researchCtx.ParentSummary,
			DocumentSummaries: researchCtx.DocumentSummaries,
			TraceID:           input.TraceID,
		}).Get(ctx, &result)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err

		if isCapabilityUnavailable(err) {
			logger.Error("Research capability unavailable, not retrying",
				"session_id", input.SessionID,
				"error", err,
			)
			return failSession(ctx, dbCtx, input.SessionID, attempt, "research capability unavailable")
		}

		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.Delay(attempt)
		logger.Warn("Research attempt failed, backing off",
			"session_id", input.SessionID,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err,
		)
		if !workflow.IsReplaying(ctx) {
			metrics.ResearchRetries.Inc()
		}
		if err := workflow.Sleep(ctx, delay); err != nil {
			return ResearchWorkflowResult{}, err
		}
	}

	if lastErr != nil {
		return failSession(ctx, dbCtx, input.SessionID, attempts,
			fmt.Sprintf("research failed after %d attempts: %v", attempts, lastErr))
	}

	if err := workflow.ExecuteActivity(dbCtx, ActivityPersistResearchResults, activities.PersistResearchResultsInput{
		SessionID: input.SessionID,
		Result:    result,
	}).Get(ctx, nil); err != nil {
		return failSession(ctx, dbCtx, input.SessionID, attempts, fmt.Sprintf("failed to persist results: %v", err))
	}

	logger.Info("Research session completed",
		"session_id", input.SessionID,
		"attempts", attempts,
		"total_tokens", result.TokenUsage.TotalTokens,
	)
	if !workflow.IsReplaying(ctx) {
		metrics.SessionDuration.Observe(workflow.Now(ctx).Sub(startedAt).Seconds())
	}
	return ResearchWorkflowResult{
		SessionID: input.SessionID,
		Status:    db.StatusCompleted,
		Attempts:  attempts,
	}, nil
}

// failSession marks the session failed and returns a failure result. The
// workflow itself completes normally so callers read the outcome from the
// result and the session row rather than from a workflow error.
func failSession(ctx workflow.Context, dbCtx workflow.Context, sessionID string, attempts int, message string) (ResearchWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	if err := workflow.ExecuteActivity(dbCtx, ActivityMarkSessionFailed, activities.MarkSessionFailedInput{
		SessionID:    sessionID,
		ErrorMessage: message,
	}).Get(ctx, nil); err != nil {
		logger.Error("Failed to mark session failed",
			"session_id", sessionID,
			"error", err,
		)
	}
	return ResearchWorkflowResult{
		SessionID:    sessionID,
		Status:       db.StatusFailed,
		Attempts:     attempts,
		ErrorMessage: message,
	}, nil
}

func isCapabilityUnavailable(err error) bool {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Type() == activities.CapabilityUnavailableErrType
	}
	return false
}
