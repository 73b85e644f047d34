package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// CreateSession inserts a new session in the pending state
func (c *Client) CreateSession(ctx context.Context, session *ResearchSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Status == "" {
		session.Status = StatusPending
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	query := `
		INSERT INTO research_sessions (
			id, user_id, parent_id, query, status, trace_id, parent_summary,
			final_report, summary, sources, error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := c.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.ParentID,
		session.Query, session.Status, session.TraceID, session.ParentSummary,
		session.FinalReport, session.Summary, session.Sources, session.ErrorMessage,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	c.logger.Debug("Session created",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", session.UserID),
	)
	return nil
}

// GetSession fetches a session by id
func (c *Client) GetSession(ctx context.Context, id uuid.UUID) (*ResearchSession, error) {
	var session ResearchSession
	err := c.db.GetContext(ctx, &session,
		`SELECT * FROM research_sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// ListSessionsByUser returns a user's sessions, newest first
func (c *Client) ListSessionsByUser(ctx context.Context, userID string, limit int) ([]ResearchSession, error) {
	if limit <= 0 {
		limit = 50
	}
	var sessions []ResearchSession
	err := c.db.SelectContext(ctx, &sessions,
		`SELECT * FROM research_sessions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// MarkSessionRunning transitions a session to running. Persisted immediately
// so concurrent status reads observe the transition. Terminal sessions are
// never moved back.
func (c *Client) MarkSessionRunning(ctx context.Context, id uuid.UUID) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE research_sessions SET status = $1, updated_at = $2
		 WHERE id = $3 AND status IN ($4, $5)`,
		StatusRunning, time.Now().UTC(), id, StatusPending, StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark session running: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s not runnable: %w", id, ErrNotFound)
	}
	return nil
}

// MarkSessionFailed transitions a session to failed with an error message
func (c *Client) MarkSessionFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	if errorMessage == "" {
		errorMessage = "research execution failed"
	}
	_, err := c.db.ExecContext(ctx,
		`UPDATE research_sessions SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		StatusFailed, errorMessage, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark session failed: %w", err)
	}
	return nil
}

// SessionCompletion is the full set of writes performed when a session
// completes successfully. CompleteSession applies them in one transaction so
// a completed session never lacks its summary, reasoning, or cost rows.
type SessionCompletion struct {
	SessionID   uuid.UUID
	FinalReport string
	Summary     string
	Sources     []string
	TraceID     string
	KeyFindings []string
	Steps       []ReasoningStep
	Cost        CostRecord
}

// CompleteSession transitions a session to completed and persists all
// completion records atomically. Summary and cost rows use replace-if-exists
// semantics keyed by session, safe to re-run.
func (c *Client) CompleteSession(ctx context.Context, completion SessionCompletion) error {
	now := time.Now().UTC()

	return c.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE research_sessions SET
				status = $1, final_report = $2, summary = $3, sources = $4,
				trace_id = $5, error_message = '', completed_at = $6, updated_at = $6
			 WHERE id = $7`,
			StatusCompleted, completion.FinalReport, completion.Summary,
			StringList(completion.Sources), completion.TraceID, now, completion.SessionID)
		if err != nil {
			return fmt.Errorf("failed to update session results: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO research_summaries (session_id, content, key_findings, created_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (session_id) DO UPDATE SET
				content = EXCLUDED.content,
				key_findings = EXCLUDED.key_findings,
				created_at = EXCLUDED.created_at`,
			completion.SessionID, completion.Summary, StringList(completion.KeyFindings), now)
		if err != nil {
			return fmt.Errorf("failed to upsert summary record: %w", err)
		}

		// step_index carries the trail order; created_at alone cannot, the
		// whole trail is written inside one transaction with one timestamp.
		for i, step := range completion.Steps {
			stepID := step.ID
			if stepID == uuid.Nil {
				stepID = uuid.New()
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO reasoning_steps (id, session_id, step_index, step_type, description, metadata, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				stepID, completion.SessionID, i, step.StepType, step.Description, step.Metadata, now)
			if err != nil {
				return fmt.Errorf("failed to insert reasoning step: %w", err)
			}
		}

		cost := completion.Cost
		cost.TotalTokens = cost.InputTokens + cost.OutputTokens
		_, err = tx.ExecContext(ctx,
			`INSERT INTO research_costs (
				session_id, model_name, input_tokens, output_tokens, total_tokens,
				estimated_cost_usd, created_at
			 ) VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (session_id) DO UPDATE SET
				model_name = EXCLUDED.model_name,
				input_tokens = EXCLUDED.input_tokens,
				output_tokens = EXCLUDED.output_tokens,
				total_tokens = EXCLUDED.total_tokens,
				estimated_cost_usd = EXCLUDED.estimated_cost_usd,
				created_at = EXCLUDED.created_at`,
			completion.SessionID, cost.ModelName, cost.InputTokens, cost.OutputTokens,
			cost.TotalTokens, cost.EstimatedCostUSD, now)
		if err != nil {
			return fmt.Errorf("failed to upsert cost record: %w", err)
		}

		return nil
	})
}

// GetReasoningSteps returns a session's reasoning trail in trail order
func (c *Client) GetReasoningSteps(ctx context.Context, sessionID uuid.UUID) ([]ReasoningStep, error) {
	var steps []ReasoningStep
	err := c.db.SelectContext(ctx, &steps,
		`SELECT * FROM reasoning_steps WHERE session_id = $1 ORDER BY created_at, step_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reasoning steps: %w", err)
	}
	return steps, nil
}

// GetCostRecord returns a session's cost record, or ErrNotFound
func (c *Client) GetCostRecord(ctx context.Context, sessionID uuid.UUID) (*CostRecord, error) {
	var cost CostRecord
	err := c.db.GetContext(ctx, &cost,
		`SELECT * FROM research_costs WHERE session_id = $1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cost record: %w", err)
	}
	return &cost, nil
}

// GetSummaryRecord returns a session's summary record, or ErrNotFound
func (c *Client) GetSummaryRecord(ctx context.Context, sessionID uuid.UUID) (*SummaryRecord, error) {
	var summary SummaryRecord
	err := c.db.GetContext(ctx, &summary,
		`SELECT * FROM research_summaries WHERE session_id = $1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary record: %w", err)
	}
	return &summary, nil
}
