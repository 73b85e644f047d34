package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewClientFromDB(sqlx.NewDb(mockDB, "postgres"), zap.NewNop()), mock
}

func TestCreateSessionDefaults(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec(`INSERT INTO research_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session := &ResearchSession{UserID: "alice", Query: "what is rust"}
	require.NoError(t, client.CreateSession(context.Background(), session))

	assert.NotEqual(t, uuid.Nil, session.ID)
	assert.Equal(t, StatusPending, session.Status)
	assert.False(t, session.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSessionRunning(t *testing.T) {
	client, mock := newMockClient(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE research_sessions SET status`).
		WithArgs(StatusRunning, sqlmock.AnyArg(), id, StatusPending, StatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, client.MarkSessionRunning(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSessionRunningGuardsTerminalStates(t *testing.T) {
	client, mock := newMockClient(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE research_sessions SET status`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := client.MarkSessionRunning(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkSessionFailedDefaultMessage(t *testing.T) {
	client, mock := newMockClient(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE research_sessions SET status`).
		WithArgs(StatusFailed, "research execution failed", sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, client.MarkSessionFailed(context.Background(), id, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteSessionTransaction(t *testing.T) {
	client, mock := newMockClient(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE research_sessions SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO research_summaries`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO reasoning_steps`).
		WithArgs(sqlmock.AnyArg(), id, 0, "search", "looked", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO reasoning_steps`).
		WithArgs(sqlmock.AnyArg(), id, 1, "analysis", "thought", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO research_costs`).
		WithArgs(id, "gpt-4o", 300, 120, 420, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := client.CompleteSession(context.Background(), SessionCompletion{
		SessionID:   id,
		FinalReport: "report",
		Summary:     "summary",
		Sources:     []string{"https://a.example"},
		TraceID:     "trace",
		KeyFindings: []string{"https://a.example"},
		Steps: []ReasoningStep{
			{StepType: "search", Description: "looked"},
			{StepType: "analysis", Description: "thought"},
		},
		Cost: CostRecord{
			ModelName:        "gpt-4o",
			InputTokens:      300,
			OutputTokens:     120,
			EstimatedCostUSD: decimal.RequireFromString("0.0042"),
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteSessionRollsBackOnFailure(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE research_sessions SET`).
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err := client.CompleteSession(context.Background(), SessionCompletion{SessionID: uuid.New()})
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSessionNotFound(t *testing.T) {
	client, mock := newMockClient(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM research_sessions`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := client.GetSession(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetReasoningStepsOrderedByIndex(t *testing.T) {
	client, mock := newMockClient(t)
	id := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "session_id", "step_index", "step_type", "description"}).
		AddRow(uuid.New(), id, 0, "search", "looked").
		AddRow(uuid.New(), id, 1, "analysis", "thought")
	mock.ExpectQuery(`SELECT \* FROM reasoning_steps WHERE session_id = \$1 ORDER BY created_at, step_index`).
		WithArgs(id).
		WillReturnRows(rows)

	steps, err := client.GetReasoningSteps(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 0, steps[0].StepIndex)
	assert.Equal(t, "search", steps[0].StepType)
	assert.Equal(t, 1, steps[1].StepIndex)
	assert.Equal(t, "analysis", steps[1].StepType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
