package research

import "sync"

// TokenTracker accumulates token usage reported by the engine during a run.
// The engine may report from multiple goroutines.
type TokenTracker struct {
	mu           sync.Mutex
	inputTokens  int
	outputTokens int
	model        string
}

// NewTokenTracker returns an empty tracker
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// OnCallCompleted records one completed model call. The model name is captured
// from the first call that reports one.
func (t *TokenTracker) OnCallCompleted(promptTokens, completionTokens int, model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if promptTokens > 0 {
		t.inputTokens += promptTokens
	}
	if completionTokens > 0 {
		t.outputTokens += completionTokens
	}
	if t.model == "" && model != "" {
		t.model = model
	}
}

// Usage returns the accumulated totals. The Model field is empty if no call
// reported one; callers substitute their configured default.
func (t *TokenTracker) Usage() TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TokenUsage{
		InputTokens:  t.inputTokens,
		OutputTokens: t.outputTokens,
		TotalTokens:  t.inputTokens + t.outputTokens,
		Model:        t.model,
	}
}
