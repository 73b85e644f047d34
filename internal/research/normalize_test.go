package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeResultPrimaryKeys(t *testing.T) {
	raw := map[string]interface{}{
		"report":  "full report",
		"summary": "short summary",
		"sources": []interface{}{"https://a.example", "https://b.example"},
	}
	result := normalizeResult(raw)

	assert.Equal(t, "full report", result.Report)
	assert.Equal(t, "short summary", result.Summary)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, result.Sources)
}

func TestNormalizeResultFallbackKeys(t *testing.T) {
	raw := map[string]interface{}{
		"final_report": "legacy report",
		"citations":    []interface{}{"https://c.example"},
	}
	result := normalizeResult(raw)

	assert.Equal(t, "legacy report", result.Report)
	assert.Equal(t, []string{"https://c.example"}, result.Sources)
}

func TestNormalizeResultPrimaryWinsOverFallback(t *testing.T) {
	raw := map[string]interface{}{
		"report":       "new",
		"final_report": "old",
	}
	assert.Equal(t, "new", normalizeResult(raw).Report)
}

func TestNormalizeResultEmpty(t *testing.T) {
	result := normalizeResult(map[string]interface{}{})

	assert.Empty(t, result.Report)
	assert.Empty(t, result.Summary)
	assert.Empty(t, result.Sources)
	assert.Empty(t, result.ReasoningSteps)

	assert.NotNil(t, normalizeResult(nil))
}

func TestNormalizeResultSourceObjects(t *testing.T) {
	raw := map[string]interface{}{
		"sources": []interface{}{
			map[string]interface{}{"url": "https://a.example", "title": "A"},
			map[string]interface{}{"title": "titled only"},
			42,
		},
	}
	result := normalizeResult(raw)
	assert.Equal(t, []string{"https://a.example", "titled only", "42"}, result.Sources)
}

func TestExtractReasoningPrefersReasoning(t *testing.T) {
	raw := map[string]interface{}{
		"reasoning": []interface{}{
			map[string]interface{}{"type": "search", "description": "looked things up"},
			map[string]interface{}{"description": "untyped entry"},
		},
		"steps": []interface{}{
			map[string]interface{}{"type": "ignored"},
		},
	}
	steps := extractReasoning(raw)

	assert.Len(t, steps, 2)
	assert.Equal(t, "search", steps[0].Type)
	assert.Equal(t, "looked things up", steps[0].Description)
	assert.Equal(t, "general", steps[1].Type)
}

func TestExtractReasoningStepsRequireType(t *testing.T) {
	raw := map[string]interface{}{
		"steps": []interface{}{
			map[string]interface{}{"type": "analysis", "description": "kept"},
			map[string]interface{}{"description": "dropped, no type"},
			"not a map",
		},
	}
	steps := extractReasoning(raw)

	assert.Len(t, steps, 1)
	assert.Equal(t, "analysis", steps[0].Type)
}
