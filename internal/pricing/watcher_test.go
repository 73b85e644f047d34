package pricing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatchReturnsAfterRegistering(t *testing.T) {
	path := writePricingFile(t, testPricingYAML)
	table, err := LoadTable(path)
	require.NoError(t, err)

	stop := make(chan struct{})
	defer close(stop)

	done := make(chan error, 1)
	go func() { done <- table.Watch(path, zap.NewNop(), stop) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after registering the watcher")
	}
}

func TestWatchReloadsOnFileChange(t *testing.T) {
	path := writePricingFile(t, testPricingYAML)
	table, err := LoadTable(path)
	require.NoError(t, err)

	stop := make(chan struct{})
	defer close(stop)
	require.NoError(t, table.Watch(path, zap.NewNop(), stop))

	updated := strings.Replace(testPricingYAML, `"2.50"`, `"3.75"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		rate, ok := table.RateFor("gpt-4o")
		return ok && rate.InputPerMTok.String() == "3.75"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatchSetupError(t *testing.T) {
	table := NewTable(nil)
	stop := make(chan struct{})
	defer close(stop)

	err := table.Watch(filepath.Join(t.TempDir(), "missing", "pricing.yaml"), zap.NewNop(), stop)
	assert.Error(t, err)
}
