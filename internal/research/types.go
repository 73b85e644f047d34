package research

import "context"

// TokenUsage aggregates model token consumption for one research run
type TokenUsage struct {
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
	Model        string `json:"model"`
}

// ReasoningStep is one high-level planning/selection decision surfaced by the
// engine. Raw chain-of-thought is never extracted.
type ReasoningStep struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Result is the canonical, normalized output of one research run
type Result struct {
	Report         string          `json:"report"`
	Summary        string          `json:"summary"`
	Sources        []string        `json:"sources"`
	ReasoningSteps []ReasoningStep `json:"reasoning_steps"`
	TokenUsage     TokenUsage      `json:"token_usage"`
	TraceID        string          `json:"trace_id"`
}

// UsageObserver receives per-call token accounting while the engine executes.
// Only successfully completed calls are reported.
type UsageObserver interface {
	OnCallCompleted(promptTokens, completionTokens int, model string)
}

// Options carries per-run engine settings
type Options struct {
	Model string
}

// Engine is the external deep-research capability. The shape of the raw
// result is not contractually fixed; the adapter normalizes it.
type Engine interface {
	Execute(ctx context.Context, query string, observer UsageObserver, opts Options) (map[string]interface{}, error)
}
