package documents

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/crestonhq/researchd/internal/metrics"
)

const (
	// extractionCap bounds the text sent for summarization, limiting cost
	// and respecting context-window limits
	extractionCap = 10000

	truncationMarker = "..."

	// DefaultSummaryLength is the default summary bound in characters
	DefaultSummaryLength = 1000
)

// Completer is the external text-completion capability
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces bounded-length document summaries for context injection
type Summarizer struct {
	llm    Completer
	logger *zap.Logger
}

// NewSummarizer creates a summarizer backed by llm
func NewSummarizer(llm Completer, logger *zap.Logger) *Summarizer {
	return &Summarizer{llm: llm, logger: logger}
}

// Summarize produces a summary of text no longer than maxLength characters.
// Empty or whitespace-only text yields an empty summary with no LLM call.
// A failed LLM call degrades to a truncated prefix of the original text, so
// summarization never fails the caller.
func (s *Summarizer) Summarize(ctx context.Context, text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultSummaryLength
	}
	if strings.TrimSpace(text) == "" {
		return ""
	}

	if utf8.RuneCountInString(text) > extractionCap {
		text = string([]rune(text)[:extractionCap]) + truncationMarker
	}

	prompt := fmt.Sprintf(`Please provide a concise summary of the following text.
Focus on key points and main ideas. Keep the summary under %d characters.

Text:
%s

Summary:`, maxLength, text)

	summary, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		metrics.SummarizationFallbacks.Inc()
		s.logger.Warn("Summarization call failed, falling back to truncated extract", zap.Error(err))
		return truncate(text, maxLength)
	}

	return truncate(strings.TrimSpace(summary), maxLength)
}

// truncate enforces the summary length bound, counted in runes so a cut
// never lands inside a multibyte character. The trailing marker counts
// against the bound so the result never exceeds maxLength.
func truncate(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	if maxLength <= len(truncationMarker) {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-len(truncationMarker)]) + truncationMarker
}
