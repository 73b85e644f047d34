package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/crestonhq/researchd/internal/tracing"
)

// EngineConfig configures the HTTP research engine client
type EngineConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPEngine invokes the deep-research service over HTTP. The service returns
// a JSON object whose field names vary across engine builds; it is passed
// through untyped for the adapter to normalize.
type HTTPEngine struct {
	cfg  EngineConfig
	http *http.Client
}

// NewHTTPEngine creates an engine client. An empty base URL is a
// configuration error.
func NewHTTPEngine(cfg EngineConfig) (*HTTPEngine, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("research engine: %w", ErrCapabilityUnavailable)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &HTTPEngine{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type executeRequest struct {
	Query string `json:"query"`
	Model string `json:"model,omitempty"`
}

// Execute runs one research call. Per-call token usage reported by the
// service (under "usage" entries or a single "token_usage" object) is fed to
// the observer; the raw result map is returned as-is.
func (e *HTTPEngine) Execute(ctx context.Context, query string, observer UsageObserver, opts Options) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/research", e.cfg.BaseURL)
	buf, err := json.Marshal(executeRequest{Query: query, Model: opts.Model})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("research engine http status %d", resp.StatusCode)
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode research result: %w", err)
	}

	if observer != nil {
		reportUsage(raw, observer)
	}
	return raw, nil
}

// reportUsage feeds usage entries from the raw result to the observer
func reportUsage(raw map[string]interface{}, observer UsageObserver) {
	if entries, ok := raw["usage"].([]interface{}); ok {
		for _, entry := range entries {
			if m, ok := entry.(map[string]interface{}); ok {
				reportUsageEntry(m, observer)
			}
		}
		return
	}
	if m, ok := raw["token_usage"].(map[string]interface{}); ok {
		reportUsageEntry(m, observer)
	}
}

func reportUsageEntry(entry map[string]interface{}, observer UsageObserver) {
	model, _ := entry["model"].(string)
	if model == "" {
		model, _ = entry["model_name"].(string)
	}
	observer.OnCallCompleted(
		intValue(entry, "prompt_tokens", "input_tokens"),
		intValue(entry, "completion_tokens", "output_tokens"),
		model,
	)
}

// intValue reads the first numeric value among keys; JSON numbers decode as float64
func intValue(m map[string]interface{}, keys ...string) int {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
	}
	return 0
}
