package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPricingYAML = `
pricing:
  models:
    gpt-4o:
      input_per_1m: "2.50"
      output_per_1m: "10.00"
    gpt-4o-mini:
      input_per_1m: "0.15"
      output_per_1m: "0.60"
`

func writePricingFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTable(t *testing.T) {
	table, err := LoadTable(writePricingFile(t, testPricingYAML))
	require.NoError(t, err)

	rate, ok := table.RateFor("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, "2.5", rate.InputPerMTok.String())
	assert.Equal(t, "10", rate.OutputPerMTok.String())

	_, ok = table.RateFor("nonexistent")
	assert.False(t, ok)
}

func TestLoadTableMissingFile(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadTableRejectsNegativeRate(t *testing.T) {
	path := writePricingFile(t, `
pricing:
  models:
    bad:
      input_per_1m: "-1.00"
      output_per_1m: "0"
`)
	_, err := LoadTable(path)
	assert.ErrorContains(t, err, "must be >= 0")
}

func TestCostForSplit(t *testing.T) {
	table, err := LoadTable(writePricingFile(t, testPricingYAML))
	require.NoError(t, err)

	// 1M input at 2.50 + 500k output at 10.00 = 2.50 + 5.00
	cost := table.CostForSplit("gpt-4o", 1_000_000, 500_000)
	assert.Equal(t, "7.5", cost.String())

	// small counts keep full precision
	cost = table.CostForSplit("gpt-4o-mini", 1000, 1000)
	assert.Equal(t, "0.00075", cost.String())
}

func TestCostForSplitUnknownModel(t *testing.T) {
	table := NewTable(nil)
	assert.True(t, table.CostForSplit("mystery", 10_000, 10_000).IsZero())
	assert.True(t, table.CostForSplit("", 10_000, 10_000).IsZero())
}

func TestCostForSplitClampsNegatives(t *testing.T) {
	table, err := LoadTable(writePricingFile(t, testPricingYAML))
	require.NoError(t, err)
	assert.True(t, table.CostForSplit("gpt-4o", -100, -100).IsZero())
}

func TestReloadKeepsOldOnError(t *testing.T) {
	path := writePricingFile(t, testPricingYAML)
	table, err := LoadTable(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("pricing: ["), 0o644))
	assert.Error(t, table.Reload(path))

	_, ok := table.RateFor("gpt-4o")
	assert.True(t, ok)
}

func TestReloadPicksUpChanges(t *testing.T) {
	path := writePricingFile(t, testPricingYAML)
	table, err := LoadTable(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`
pricing:
  models:
    gpt-4o:
      input_per_1m: "5.00"
      output_per_1m: "20.00"
`), 0o644))
	require.NoError(t, table.Reload(path))

	rate, ok := table.RateFor("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, "5", rate.InputPerMTok.String())
	_, ok = table.RateFor("gpt-4o-mini")
	assert.False(t, ok)
}
