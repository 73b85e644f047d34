package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/crestonhq/researchd/internal/activities"
)

// ActivityProcessDocument is registered by the worker
const ActivityProcessDocument = "ProcessDocument"

// DocumentWorkflow extracts and summarizes one uploaded document. An
// unreadable file ends the workflow with the failure recorded on the
// document row; the owning session is never touched.
func DocumentWorkflow(ctx workflow.Context, input DocumentWorkflowInput) (DocumentWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Processing document",
		"session_id", input.SessionID,
		"document_id", input.DocumentID,
	)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	})

	var result activities.ProcessDocumentResult
	if err := workflow.ExecuteActivity(ctx, ActivityProcessDocument, activities.ProcessDocumentInput{
		SessionID:  input.SessionID,
		DocumentID: input.DocumentID,
	}).Get(ctx, &result); err != nil {
		return DocumentWorkflowResult{}, err
	}

	if !result.Processed {
		logger.Warn("Document processing failed",
			"document_id", input.DocumentID,
			"error", result.ErrorMessage,
		)
	}
	return DocumentWorkflowResult{
		DocumentID:   result.DocumentID,
		Processed:    result.Processed,
		ErrorMessage: result.ErrorMessage,
	}, nil
}
