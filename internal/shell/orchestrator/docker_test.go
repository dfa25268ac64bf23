package orchestrator

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/shell/docker"
)

func deploymentStep(name string, args ...string) deployment.Step {
	return deployment.Step{Name: name, Args: args}
}

// fakeDocker is an in-memory docker.Client.
type fakeDocker struct {
	imagePresent bool
	pulls        int
	created      []docker.ContainerSpec
	removed      []string
	logs         string
	exitCode     int
	stale        []docker.ContainerInfo
	listed       []docker.ListOptions
}

func (f *fakeDocker) CreateContainer(_ context.Context, spec docker.ContainerSpec) (string, error) {
	f.created = append(f.created, spec)
	return "c-" + spec.Name, nil
}
func (f *fakeDocker) StartContainer(context.Context, string) error { return nil }
func (f *fakeDocker) WaitContainer(context.Context, string) (int, error) {
	return f.exitCode, nil
}
func (f *fakeDocker) RemoveContainer(_ context.Context, id string, _ docker.RemoveOptions) error {
	f.removed = append(f.removed, id)
	return nil
}
func (f *fakeDocker) ListContainers(_ context.Context, opts docker.ListOptions) ([]docker.ContainerInfo, error) {
	f.listed = append(f.listed, opts)
	return f.stale, nil
}
func (f *fakeDocker) ContainerLogs(context.Context, string, docker.LogOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.logs)), nil
}
func (f *fakeDocker) PullImage(context.Context, string, docker.PullOptions) error {
	f.pulls++
	f.imagePresent = true
	return nil
}
func (f *fakeDocker) ImageExists(context.Context, string) (bool, error) { return f.imagePresent, nil }
func (f *fakeDocker) Ping(context.Context) error                       { return nil }
func (f *fakeDocker) Close() error                                     { return nil }

// =============================================================================
// Docker Runner Tests
// =============================================================================

func TestDockerRunner_Run(t *testing.T) {
	fd := &fakeDocker{logs: "Initializing...\nTerraform has been successfully initialized!\n"}
	r := NewDockerRunner(fd, "", testLogger())

	var lines []string
	out, err := r.Run(context.Background(), RunRequest{
		DeploymentID: "dep-1",
		Dir:          "/srv/out/deployment_20260301_120000",
		Step:         deploymentStep("init", "init", "-input=false"),
		Env:          []string{"AWS_ACCESS_KEY_ID=AKIA"},
	}, func(l string) { lines = append(lines, l) })
	require.NoError(t, err)

	assert.Equal(t, 1, fd.pulls)
	require.Len(t, fd.created, 1)
	spec := fd.created[0]
	assert.Equal(t, DefaultImage, spec.Image)
	assert.Equal(t, "autodeploy_dep-1_init", spec.Name)
	assert.Equal(t, []string{"init", "-input=false"}, spec.Command)
	assert.Equal(t, []string{"/srv/out/deployment_20260301_120000:/workspace"}, spec.Binds)
	assert.Equal(t, []string{"AWS_ACCESS_KEY_ID=AKIA", "TF_IN_AUTOMATION=1"}, spec.Env)
	assert.Equal(t, []string{"c-autodeploy_dep-1_init"}, fd.removed)
	assert.Equal(t, []string{"Initializing...", "Terraform has been successfully initialized!"}, lines)
	assert.Contains(t, string(out), "successfully initialized")

	_, err = r.Run(context.Background(), RunRequest{DeploymentID: "dep-1", Step: deploymentStep("validate", "validate")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, fd.pulls)
}

func TestDockerRunner_NonZeroExit(t *testing.T) {
	fd := &fakeDocker{imagePresent: true, exitCode: 1, logs: "Error: bad\n"}
	r := NewDockerRunner(fd, "hashicorp/terraform:1.8", testLogger())

	_, err := r.Run(context.Background(), RunRequest{DeploymentID: "d", Step: deploymentStep("plan", "plan")}, nil)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 1, stepErr.ExitCode)
	assert.Equal(t, 0, fd.pulls)
	assert.Len(t, fd.removed, 1)
}

func TestDockerRunner_RemovesStaleContainers(t *testing.T) {
	fd := &fakeDocker{
		imagePresent: true,
		stale:        []docker.ContainerInfo{{ID: "old-1", Name: "autodeploy_dep-7_apply", State: "exited"}},
	}
	r := NewDockerRunner(fd, "", testLogger())

	_, err := r.Run(context.Background(), RunRequest{DeploymentID: "dep-7", Step: deploymentStep("apply", "apply")}, nil)
	require.NoError(t, err)

	require.Len(t, fd.listed, 1)
	assert.True(t, fd.listed[0].All)
	assert.Equal(t, map[string]string{
		deployment.LabelDeployment: "dep-7",
		deployment.LabelStep:       "apply",
	}, fd.listed[0].Labels)
	assert.Equal(t, []string{"old-1", "c-autodeploy_dep-7_apply"}, fd.removed)
}
