package pricing

import (
	"fmt"
	"os"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/crestonhq/researchd/internal/metrics"
)

var million = decimal.NewFromInt(1_000_000)

// Rate is a per-million-token price. Declared as its own type so yaml values
// are parsed from their literal text instead of round-tripping through float64.
type Rate struct {
	decimal.Decimal
}

// UnmarshalYAML parses the scalar node text directly into a decimal
func (r *Rate) UnmarshalYAML(node *yaml.Node) error {
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("invalid rate %q: %w", node.Value, err)
	}
	if d.IsNegative() {
		return fmt.Errorf("rate %q must be >= 0", node.Value)
	}
	r.Decimal = d
	return nil
}

// ModelRate holds the input/output per-million-token rates for one model
type ModelRate struct {
	InputPerMTok  Rate `yaml:"input_per_1m"`
	OutputPerMTok Rate `yaml:"output_per_1m"`
}

type tableFile struct {
	Pricing struct {
		Models map[string]ModelRate `yaml:"models"`
	} `yaml:"pricing"`
}

// Table maps model names to rates. Unknown models cost zero; cost calculation
// never fails on an unrecognized model.
type Table struct {
	mu     sync.RWMutex
	models map[string]ModelRate
}

// NewTable builds a table from an explicit rate map
func NewTable(models map[string]ModelRate) *Table {
	if models == nil {
		models = map[string]ModelRate{}
	}
	return &Table{models: models}
}

// LoadTable reads a pricing table from a yaml file
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing config: %w", err)
	}
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal pricing config: %w", err)
	}
	return NewTable(f.Pricing.Models), nil
}

// Reload replaces the table contents from the given file, keeping the old
// rates when the file is unreadable or malformed.
func (t *Table) Reload(path string) error {
	fresh, err := LoadTable(path)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.models = fresh.models
	t.mu.Unlock()
	return nil
}

// RateFor returns the rates for model and whether the model is known
func (t *Table) RateFor(model string) (ModelRate, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.models[model]
	return r, ok
}

// CostForSplit computes the estimated USD cost for an input/output token
// split: (input/1e6)*input_rate + (output/1e6)*output_rate. Unknown models
// use a zero rate. Negative counts are clamped to zero.
func (t *Table) CostForSplit(model string, inputTokens, outputTokens int) decimal.Decimal {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}

	rate, ok := t.RateFor(model)
	if !ok {
		if model == "" {
			metrics.PricingFallbacks.WithLabelValues("missing_model").Inc()
		} else {
			metrics.PricingFallbacks.WithLabelValues("unknown_model").Inc()
		}
		return decimal.Zero
	}

	in := decimal.NewFromInt(int64(inputTokens)).Div(million).Mul(rate.InputPerMTok.Decimal)
	out := decimal.NewFromInt(int64(outputTokens)).Div(million).Mul(rate.OutputPerMTok.Decimal)
	return in.Add(out)
}
