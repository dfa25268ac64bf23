package nlp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/autodeploy/internal/core/decision"
	"github.com/artpar/autodeploy/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeModel returns a canned response and records prompts.
type fakeModel struct {
	response string
	err      error
	prompts  []string
}

func (m *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

var flaskSummary = domain.RepositorySummary{
	PrimaryLanguage: "python",
	Framework:       domain.FrameworkFlask,
	NeedsDatabase:   true,
	EntryPort:       5000,
	StartCommand:    "python3 app.py",
}

// =============================================================================
// Extractor Tests
// =============================================================================

func TestNewExtractor_WithoutModel(t *testing.T) {
	ex := NewExtractor(nil, testLogger())
	_, ok := ex.(KeywordExtractor)
	require.True(t, ok)

	got, err := ex.Extract(context.Background(), "deploy on gcp")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderGCP, got.CloudProvider)
}

func TestModelExtractor_UsesModel(t *testing.T) {
	model := &fakeModel{response: "```json\n" + `{"cloud_provider": "GCP", "scaling": "Kubernetes", "database_requirements": ["None"]}` + "\n```"}
	ex := NewModelExtractor(model, testLogger())

	got, err := ex.Extract(context.Background(), "put it on a cluster in europe-west1")
	require.NoError(t, err)
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "put it on a cluster")
	assert.Equal(t, domain.ProviderGCP, got.CloudProvider)
	assert.Equal(t, domain.ScalingKubernetes, got.Scaling)
	assert.Equal(t, "europe-west1", got.Region)
}

func TestModelExtractor_FallsBackOnError(t *testing.T) {
	ex := NewModelExtractor(&fakeModel{err: errors.New("quota exceeded")}, testLogger())

	got, err := ex.Extract(context.Background(), "Deploy to Azure with a database")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderAzure, got.CloudProvider)
	assert.True(t, got.DatabaseRequested)
}

func TestModelExtractor_FallsBackOnGarbage(t *testing.T) {
	ex := NewModelExtractor(&fakeModel{response: "I'd be happy to help!"}, testLogger())

	got, err := ex.Extract(context.Background(), "serverless on aws")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionServerless, got.ExecutionModel)
}

func TestModelExtractor_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := NewModelExtractor(&fakeModel{err: context.Canceled}, testLogger())

	_, err := ex.Extract(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Strategy Tests
// =============================================================================

func TestNewStrategy_WithoutModel(t *testing.T) {
	_, ok := NewStrategy(nil, testLogger()).(decision.Rules)
	assert.True(t, ok)
}

func TestAIStrategy_ModelChoosesTopology(t *testing.T) {
	model := &fakeModel{response: `{"topology": "container_service", "reason": "Long-running web process"}`}
	s := NewAIStrategy(model, testLogger())

	plan, err := s.Plan(context.Background(), flaskSummary, domain.DeploymentIntent{Description: "ship it"})
	require.NoError(t, err)
	assert.Equal(t, domain.TopologyContainerService, plan.Topology)
	assert.Contains(t, plan.Rationale, "Long-running web process")
	assert.True(t, strings.Contains(model.prompts[0], "Framework: flask"))
}

func TestAIStrategy_StaticSiteNeedingDatabaseFallsBack(t *testing.T) {
	model := &fakeModel{response: `{"topology": "static_site", "reason": "looks static"}`}
	s := NewAIStrategy(model, testLogger())

	plan, err := s.Plan(context.Background(), flaskSummary, domain.DeploymentIntent{})
	require.NoError(t, err)
	assert.Equal(t, decision.Decide(flaskSummary, domain.DeploymentIntent{}), plan)
}

func TestAIStrategy_FallsBackOnError(t *testing.T) {
	s := NewAIStrategy(&fakeModel{err: errors.New("boom")}, testLogger())
	in := domain.DeploymentIntent{Scaling: domain.ScalingKubernetes}

	plan, err := s.Plan(context.Background(), flaskSummary, in)
	require.NoError(t, err)
	assert.Equal(t, decision.Decide(flaskSummary, in), plan)
	assert.Equal(t, domain.TopologyKubernetesCluster, plan.Topology)
}

func TestAIStrategy_UnsupportedProviderStaysUnsupported(t *testing.T) {
	model := &fakeModel{response: `{"topology": "single_vm"}`}
	s := NewAIStrategy(model, testLogger())

	plan, err := s.Plan(context.Background(), flaskSummary, domain.DeploymentIntent{CloudProvider: domain.ProviderAzure})
	require.NoError(t, err)
	assert.True(t, plan.IsUnsupported())
	assert.Empty(t, plan.Resources)
}
