package research

import (
	"fmt"
	"strings"
)

const continuationInstruction = "IMPORTANT: Do not repeat information already covered in the previous research. " +
	"Focus on new aspects, deeper analysis, or different angles of the topic."

// ComposeContext assembles the enhanced query handed to the research engine.
// It starts with the raw query, appends the parent-session summary (with the
// repetition-avoidance instruction) when present, and appends an enumerated
// block of document summaries. Callers are responsible for filtering out
// empty document summaries. No size bounding happens here; the engine owns
// its own prompt budget.
func ComposeContext(query string, parentSummary string, documentSummaries []string) string {
	parts := []string{query}

	if parentSummary != "" {
		parts = append(parts,
			fmt.Sprintf("\n\nPrevious Research Summary:\n%s\n\n%s", parentSummary, continuationInstruction))
	}

	if len(documentSummaries) > 0 {
		parts = append(parts, "\n\nAdditional Context from Uploaded Documents:")
		for i, summary := range documentSummaries {
			parts = append(parts, fmt.Sprintf("\nDocument %d:\n%s", i+1, summary))
		}
	}

	return strings.Join(parts, "\n")
}
