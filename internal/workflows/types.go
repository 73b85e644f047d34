package workflows

// ResearchWorkflowInput drives one research session execution. MaxAttempts
// and BaseDelaySeconds carry the deployment's retry settings; zero values
// fall back to the defaults.
type ResearchWorkflowInput struct {
	SessionID        string
	TraceID          string
	MaxAttempts      int
	BaseDelaySeconds int
}

// ResearchWorkflowResult reports the terminal outcome of a session
type ResearchWorkflowResult struct {
	SessionID    string
	Status       string
	Attempts     int
	ErrorMessage string
}

// DocumentWorkflowInput processes one uploaded document
type DocumentWorkflowInput struct {
	SessionID  string
	DocumentID string
}

// DocumentWorkflowResult reports per-document processing outcome
type DocumentWorkflowResult struct {
	DocumentID   string
	Processed    bool
	ErrorMessage string
}
