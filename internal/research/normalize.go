package research

import "fmt"

// Key fallback order for each logical field. The engine's result shape is not
// guaranteed; older engine builds use "final_report" and "citations".
var (
	reportKeys  = []string{"report", "final_report"}
	summaryKeys = []string{"summary"}
	sourceKeys  = []string{"sources", "citations"}
)

// stringField probes keys in order and returns the first string value found
func stringField(raw map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// stringListField probes keys in order and returns the first list value found,
// stringifying non-string entries. Missing or non-list values yield an empty
// slice, never an error.
func stringListField(raw map[string]interface{}, keys []string) []string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		list, ok := v.([]interface{})
		if !ok {
			continue
		}
		out := make([]string, 0, len(list))
		for _, item := range list {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case map[string]interface{}:
				// Source objects expose the reference under "url" or "title"
				if u, ok := s["url"].(string); ok && u != "" {
					out = append(out, u)
				} else if t, ok := s["title"].(string); ok && t != "" {
					out = append(out, t)
				}
			default:
				out = append(out, fmt.Sprintf("%v", item))
			}
		}
		return out
	}
	return []string{}
}

// extractReasoning pulls the high-level reasoning trail from a raw result.
// A "reasoning" collection is preferred; otherwise "steps" entries carrying a
// "type" field are mapped into the canonical shape. Entries without a
// recognizable type are discarded.
func extractReasoning(raw map[string]interface{}) []ReasoningStep {
	if list, ok := raw["reasoning"].([]interface{}); ok {
		return mapReasoningEntries(list, false)
	}
	if list, ok := raw["steps"].([]interface{}); ok {
		return mapReasoningEntries(list, true)
	}
	return nil
}

func mapReasoningEntries(list []interface{}, requireType bool) []ReasoningStep {
	steps := make([]ReasoningStep, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		stepType, _ := entry["type"].(string)
		if stepType == "" {
			if requireType {
				continue
			}
			stepType = "general"
		}
		desc, _ := entry["description"].(string)
		meta, _ := entry["metadata"].(map[string]interface{})
		steps = append(steps, ReasoningStep{
			Type:        stepType,
			Description: desc,
			Metadata:    meta,
		})
	}
	return steps
}

// normalizeResult converts a raw engine result into the canonical shape.
// Absent optional fields default to empty values.
func normalizeResult(raw map[string]interface{}) *Result {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return &Result{
		Report:         stringField(raw, reportKeys),
		Summary:        stringField(raw, summaryKeys),
		Sources:        stringListField(raw, sourceKeys),
		ReasoningSteps: extractReasoning(raw),
	}
}
