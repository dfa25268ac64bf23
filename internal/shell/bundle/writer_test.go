package bundle

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/autodeploy/internal/core/decision"
	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/core/synth"
)

func testPlan(t *testing.T) (domain.Plan, synth.Bundle) {
	t.Helper()
	plan := decision.Decide(domain.RepositorySummary{Framework: domain.FrameworkFlask, EntryPort: 5000},
		domain.DeploymentIntent{CloudProvider: domain.ProviderAWS})
	b, err := synth.Synthesize(plan)
	require.NoError(t, err)
	return plan, b
}

func testWriter(root string) *Writer {
	w := NewWriter(root, slog.New(slog.NewTextHandler(io.Discard, nil)))
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }
	return w
}

// =============================================================================
// Writer Tests
// =============================================================================

func TestWrite_CreatesCompleteDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	plan, b := testPlan(t)

	got, err := testWriter(root).Write(plan, b)
	require.NoError(t, err)

	assert.Equal(t, "deployment_20260301_120000", got.Name)
	assert.Equal(t, b.Digest(), got.Digest)
	for _, f := range b.Files() {
		data, err := os.ReadFile(filepath.Join(got.Dir, f.Name))
		require.NoError(t, err)
		assert.Equal(t, f.Content, data)
	}

	stored, err := ReadPlan(got.Dir)
	require.NoError(t, err)
	assert.Equal(t, plan.Provider, stored.Provider)
	assert.Equal(t, plan.VariableNames(), stored.VariableNames())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging directory left behind")
}

func TestWrite_NeverReusesDirectory(t *testing.T) {
	root := t.TempDir()
	plan, b := testPlan(t)
	w := testWriter(root)

	require.NoError(t, os.Mkdir(filepath.Join(root, "deployment_20260301_120000"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "deployment_20260301_120000", "keep.txt"), []byte("x"), 0o644))

	first, err := w.Write(plan, b)
	require.NoError(t, err)
	second, err := w.Write(plan, b)
	require.NoError(t, err)

	assert.Equal(t, "deployment_20260301_120000_1", first.Name)
	assert.Equal(t, "deployment_20260301_120000_2", second.Name)

	_, err = os.Stat(filepath.Join(root, "deployment_20260301_120000", synth.MainFile))
	assert.True(t, os.IsNotExist(err))
}

func TestWrite_Idempotent(t *testing.T) {
	root := t.TempDir()
	plan, b := testPlan(t)
	w := testWriter(root)

	first, err := w.Write(plan, b)
	require.NoError(t, err)
	again, err := synth.Synthesize(plan)
	require.NoError(t, err)
	second, err := w.Write(plan, again)
	require.NoError(t, err)

	assert.NotEqual(t, first.Dir, second.Dir)
	for _, name := range []string{synth.MainFile, synth.VariablesFile, synth.OutputsFile, PlanFile} {
		a, err := os.ReadFile(filepath.Join(first.Dir, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(second.Dir, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, name)
	}
}

func TestReadPlan_Missing(t *testing.T) {
	_, err := ReadPlan(t.TempDir())
	assert.True(t, os.IsNotExist(err))
}
