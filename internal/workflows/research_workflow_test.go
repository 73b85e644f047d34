package workflows

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/crestonhq/researchd/internal/activities"
	"github.com/crestonhq/researchd/internal/db"
	"github.com/crestonhq/researchd/internal/research"
)

type ResearchWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
}

func TestResearchWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(ResearchWorkflowTestSuite))
}

// stubState captures which activities ran and with what inputs
type stubState struct {
	executeCalls int
	executeErrs  []error
	persisted    *activities.PersistResearchResultsInput
	failedWith   *activities.MarkSessionFailedInput
	markedRun    bool
}

func (s *ResearchWorkflowTestSuite) newEnv(state *stubState) *testsuite.TestWorkflowEnvironment {
	env := s.NewTestWorkflowEnvironment()

	env.RegisterActivityWithOptions(func(ctx context.Context, in activities.MarkSessionRunningInput) error {
		state.markedRun = true
		return nil
	}, activity.RegisterOptions{Name: ActivityMarkSessionRunning})

	env.RegisterActivityWithOptions(func(ctx context.Context, in activities.FetchResearchContextInput) (activities.FetchResearchContextResult, error) {
		return activities.FetchResearchContextResult{
			Query:             "what is go",
			ParentSummary:     "earlier summary",
			DocumentSummaries: []string{"doc summary"},
		}, nil
	}, activity.RegisterOptions{Name: ActivityFetchResearchContext})

	env.RegisterActivityWithOptions(func(ctx context.Context, in activities.ExecuteResearchInput) (activities.ExecuteResearchResult, error) {
		idx := state.executeCalls
		state.executeCalls++
		if idx < len(state.executeErrs) && state.executeErrs[idx] != nil {
			return activities.ExecuteResearchResult{}, state.executeErrs[idx]
		}
		return activities.ExecuteResearchResult{
			Report:  "the report",
			Summary: "the summary",
			Sources: []string{"https://a.example"},
			TokenUsage: research.TokenUsage{
				InputTokens:  100,
				OutputTokens: 50,
				TotalTokens:  150,
				Model:        "gpt-4o",
			},
			TraceID: "trace-1",
		}, nil
	}, activity.RegisterOptions{Name: ActivityExecuteResearch})

	env.RegisterActivityWithOptions(func(ctx context.Context, in activities.PersistResearchResultsInput) error {
		state.persisted = &in
		return nil
	}, activity.RegisterOptions{Name: ActivityPersistResearchResults})

	env.RegisterActivityWithOptions(func(ctx context.Context, in activities.MarkSessionFailedInput) error {
		state.failedWith = &in
		return nil
	}, activity.RegisterOptions{Name: ActivityMarkSessionFailed})

	return env
}

func (s *ResearchWorkflowTestSuite) TestSuccessFirstAttempt() {
	state := &stubState{}
	env := s.newEnv(state)

	env.ExecuteWorkflow(ResearchWorkflow, ResearchWorkflowInput{SessionID: "s-1", TraceID: "trace-1"})

	s.True(env.IsWorkflowCompleted())
	s.NoError(env.GetWorkflowError())

	var result ResearchWorkflowResult
	s.NoError(env.GetWorkflowResult(&result))
	s.Equal(db.StatusCompleted, result.Status)
	s.Equal(1, result.Attempts)

	s.True(state.markedRun)
	s.Require().NotNil(state.persisted)
	s.Equal("s-1", state.persisted.SessionID)
	s.Equal("the report", state.persisted.Result.Report)
	s.Nil(state.failedWith)
}

func (s *ResearchWorkflowTestSuite) TestRetriesThenSucceeds() {
	state := &stubState{
		executeErrs: []error{
			fmt.Errorf("engine hiccup"),
			fmt.Errorf("engine hiccup again"),
		},
	}
	env := s.newEnv(state)

	start := env.Now()
	env.ExecuteWorkflow(ResearchWorkflow, ResearchWorkflowInput{SessionID: "s-2"})

	s.True(env.IsWorkflowCompleted())
	s.NoError(env.GetWorkflowError())

	var result ResearchWorkflowResult
	s.NoError(env.GetWorkflowResult(&result))
	s.Equal(db.StatusCompleted, result.Status)
	s.Equal(3, result.Attempts)
	s.Equal(3, state.executeCalls)
	s.Nil(state.failedWith)

	// backoff timers fired: 60s after attempt 1, 120s after attempt 2
	s.GreaterOrEqual(env.Now().Sub(start), 180*time.Second)
}

func (s *ResearchWorkflowTestSuite) TestFailsAfterMaxAttempts() {
	state := &stubState{
		executeErrs: []error{
			fmt.Errorf("down"),
			fmt.Errorf("down"),
			fmt.Errorf("down"),
		},
	}
	env := s.newEnv(state)

	env.ExecuteWorkflow(ResearchWorkflow, ResearchWorkflowInput{SessionID: "s-3"})

	s.True(env.IsWorkflowCompleted())
	s.NoError(env.GetWorkflowError())

	var result ResearchWorkflowResult
	s.NoError(env.GetWorkflowResult(&result))
	s.Equal(db.StatusFailed, result.Status)
	s.Equal(3, result.Attempts)
	s.Contains(result.ErrorMessage, "after 3 attempts")

	s.Require().NotNil(state.failedWith)
	s.Equal("s-3", state.failedWith.SessionID)
}

func (s *ResearchWorkflowTestSuite) TestCapabilityUnavailableFailsImmediately() {
	state := &stubState{
		executeErrs: []error{
			temporal.NewNonRetryableApplicationError(
				"research capability unavailable",
				activities.CapabilityUnavailableErrType,
				nil,
			),
		},
	}
	env := s.newEnv(state)

	env.ExecuteWorkflow(ResearchWorkflow, ResearchWorkflowInput{SessionID: "s-4"})

	s.True(env.IsWorkflowCompleted())
	s.NoError(env.GetWorkflowError())

	var result ResearchWorkflowResult
	s.NoError(env.GetWorkflowResult(&result))
	s.Equal(db.StatusFailed, result.Status)
	s.Equal(1, result.Attempts)
	s.Equal(1, state.executeCalls)

	s.Require().NotNil(state.failedWith)
	s.Equal("research capability unavailable", state.failedWith.ErrorMessage)
}

func (s *ResearchWorkflowTestSuite) TestConfiguredRetryPolicy() {
	state := &stubState{executeErrs: []error{fmt.Errorf("engine hiccup")}}
	env := s.newEnv(state)

	start := env.Now()
	env.ExecuteWorkflow(ResearchWorkflow, ResearchWorkflowInput{
		SessionID:        "s-5",
		MaxAttempts:      2,
		BaseDelaySeconds: 5,
	})

	s.True(env.IsWorkflowCompleted())
	s.NoError(env.GetWorkflowError())

	var result ResearchWorkflowResult
	s.NoError(env.GetWorkflowResult(&result))
	s.Equal(db.StatusCompleted, result.Status)
	s.Equal(2, result.Attempts)
	s.Equal(2, state.executeCalls)

	elapsed := env.Now().Sub(start)
	s.GreaterOrEqual(elapsed, 5*time.Second)
	s.Less(elapsed, 60*time.Second)
}

func (s *ResearchWorkflowTestSuite) TestConfiguredSingleAttempt() {
	state := &stubState{executeErrs: []error{fmt.Errorf("engine hiccup")}}
	env := s.newEnv(state)

	env.ExecuteWorkflow(ResearchWorkflow, ResearchWorkflowInput{
		SessionID:   "s-6",
		MaxAttempts: 1,
	})

	s.True(env.IsWorkflowCompleted())
	var result ResearchWorkflowResult
	s.NoError(env.GetWorkflowResult(&result))
	s.Equal(db.StatusFailed, result.Status)
	s.Equal(1, state.executeCalls)
	s.Require().NotNil(state.failedWith)
	s.Contains(state.failedWith.ErrorMessage, "after 1 attempts")
}

func TestPolicyFromInput(t *testing.T) {
	assert.Equal(t, DefaultRetryPolicy(), policyFromInput(ResearchWorkflowInput{}))

	policy := policyFromInput(ResearchWorkflowInput{MaxAttempts: 5, BaseDelaySeconds: 10})
	assert.Equal(t, 5, policy.MaxAttempts)
	assert.Equal(t, 10*time.Second, policy.BaseDelay)
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := DefaultRetryPolicy()
	require.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 60*time.Second, policy.Delay(1))
	assert.Equal(t, 120*time.Second, policy.Delay(2))
	assert.Equal(t, 240*time.Second, policy.Delay(3))
	assert.Equal(t, 60*time.Second, policy.Delay(0))
}
