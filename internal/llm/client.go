package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/crestonhq/researchd/internal/tracing"
)

// Config configures the LLM service client
type Config struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// Client calls the external text-completion capability. Used by document
// summarization; calls may fail transiently and callers degrade gracefully.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates an LLM service client
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type completeRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

type completeResponse struct {
	Text string `json:"text"`
}

// Complete sends a prompt and returns the completion text
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/completions", c.cfg.BaseURL)
	buf, err := json.Marshal(completeRequest{Prompt: prompt, Model: c.cfg.DefaultModel})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion http status %d", resp.StatusCode)
	}

	var cr completeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	return cr.Text, nil
}
