package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

const testImage = "alpine:latest"

func skipIfNoDocker(t *testing.T) Client {
	t.Helper()
	cli, err := NewDockerClient("")
	if err != nil {
		t.Skip("Docker not available:", err)
	}
	if err := cli.Ping(context.Background()); err != nil {
		cli.Close()
		t.Skip("Docker not reachable:", err)
	}
	t.Cleanup(func() { cli.Close() })
	return cli
}

func ensureImage(t *testing.T, cli Client) {
	t.Helper()
	ctx := context.Background()
	exists, err := cli.ImageExists(ctx, testImage)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, cli.PullImage(ctx, testImage, PullOptions{}))
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestOpError(t *testing.T) {
	err := opError("start", "abc123", fmt.Errorf("%w: %w", ErrContainerNotFound, errors.New("No such container: abc123")))
	assert.Equal(t, "docker start abc123: container not found: No such container: abc123", err.Error())
	assert.ErrorIs(t, err, ErrContainerNotFound)

	err = opError("ping", "", fmt.Errorf("%w: %w", ErrDaemonUnavailable, context.DeadlineExceeded))
	assert.Equal(t, "docker ping: docker daemon unavailable: context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "ping", opErr.Op)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil, ErrContainerNotFound))

	plain := errors.New("boom")
	assert.Same(t, plain, classify(plain, ErrContainerNotFound))

	conflict := classify(errors.New(`Conflict. The container name "/x" is already in use`), ErrContainerNotFound)
	assert.ErrorIs(t, conflict, ErrNameConflict)
}

// =============================================================================
// Integration Tests (skipped without a Docker daemon)
// =============================================================================

func TestContainerRunToCompletion(t *testing.T) {
	cli := skipIfNoDocker(t)
	ensureImage(t, cli)
	ctx := context.Background()

	id, err := cli.CreateContainer(ctx, ContainerSpec{
		Image:   testImage,
		Command: []string{"sh", "-c", "echo hello; echo oops >&2; exit 3"},
		Env:     []string{"FOO=bar"},
		Labels:  map[string]string{"autodeploy.managed": "true"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { cli.RemoveContainer(context.Background(), id, RemoveOptions{Force: true}) })

	require.NoError(t, cli.StartContainer(ctx, id))
	code, err := cli.WaitContainer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	logs, err := cli.ContainerLogs(ctx, id, LogOptions{})
	require.NoError(t, err)
	out, err := io.ReadAll(logs)
	require.NoError(t, err)
	assert.Contains(t, string(out), "hello")
	assert.Contains(t, string(out), "oops")

	listed, err := cli.ListContainers(ctx, ListOptions{All: true, Labels: map[string]string{"autodeploy.managed": "true"}})
	require.NoError(t, err)
	var found *ContainerInfo
	for i := range listed {
		if listed[i].ID == id {
			found = &listed[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "exited", found.State)
}

func TestStartContainer_NotFound(t *testing.T) {
	cli := skipIfNoDocker(t)

	err := cli.StartContainer(context.Background(), "autodeploy-missing-container")
	assert.True(t, errors.Is(err, ErrContainerNotFound))
}

func TestImageExists_False(t *testing.T) {
	cli := skipIfNoDocker(t)

	exists, err := cli.ImageExists(context.Background(), "autodeploy/does-not-exist:never")
	require.NoError(t, err)
	assert.False(t, exists)
}
