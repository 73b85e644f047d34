package activities

import "github.com/crestonhq/researchd/internal/research"

// MarkSessionRunningInput starts a session's execution
type MarkSessionRunningInput struct {
	SessionID string
}

// FetchResearchContextInput loads everything the engine call needs
type FetchResearchContextInput struct {
	SessionID string
}

// FetchResearchContextResult carries the session's query and context.
// Document summaries are the non-empty ones present at fetch time; document
// processing still in flight is not waited for.
type FetchResearchContextResult struct {
	Query             string
	ParentSummary     string
	DocumentSummaries []string
}

// ExecuteResearchInput is one engine attempt
type ExecuteResearchInput struct {
	SessionID         string
	Query             string
	ParentSummary     string
	DocumentSummaries []string
	TraceID           string
}

// ExecuteResearchResult is the normalized engine output
type ExecuteResearchResult struct {
	Report         string
	Summary        string
	Sources        []string
	ReasoningSteps []research.ReasoningStep
	TokenUsage     research.TokenUsage
	TraceID        string
}

// PersistResearchResultsInput writes all completion records for a session
type PersistResearchResultsInput struct {
	SessionID string
	Result    ExecuteResearchResult
}

// MarkSessionFailedInput records a terminal failure
type MarkSessionFailedInput struct {
	SessionID    string
	ErrorMessage string
}

// ProcessDocumentInput extracts and summarizes one uploaded document
type ProcessDocumentInput struct {
	SessionID  string
	DocumentID string
}

// ProcessDocumentResult reports per-document processing outcome. An
// extraction failure is recorded here, never on the owning session.
type ProcessDocumentResult struct {
	DocumentID   string
	Processed    bool
	ErrorMessage string
}
