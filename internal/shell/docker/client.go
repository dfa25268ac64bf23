package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
)

// =============================================================================
// Docker Client Implementation
// =============================================================================

// DockerClient implements Client with the Docker SDK.
type DockerClient struct {
	cli *client.Client
}

// NewDockerClient connects to host, or to the environment's daemon when host
// is empty. Without an explicit host the Docker Desktop user socket is tried
// when the default one does not answer.
func NewDockerClient(host string) (*DockerClient, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, opError("connect", host, fmt.Errorf("%w: %w", ErrDaemonUnavailable, err))
	}
	if host != "" {
		return &DockerClient{cli: cli}, nil
	}

	ctx := context.Background()
	if _, err := cli.Ping(ctx); err == nil {
		return &DockerClient{cli: cli}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return &DockerClient{cli: cli}, nil
	}
	desktop, err := client.NewClientWithOpts(
		client.WithHost("unix://"+filepath.Join(home, ".docker", "run", "docker.sock")),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return &DockerClient{cli: cli}, nil
	}
	if _, err := desktop.Ping(ctx); err != nil {
		desktop.Close()
		return &DockerClient{cli: cli}, nil
	}
	cli.Close()
	return &DockerClient{cli: desktop}, nil
}

// Ping checks that the daemon answers.
func (d *DockerClient) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return opError("ping", "", fmt.Errorf("%w: %w", ErrDaemonUnavailable, err))
	}
	return nil
}

func (d *DockerClient) Close() error {
	return d.cli.Close()
}

// =============================================================================
// Container Operations
// =============================================================================

func (d *DockerClient) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	config := &container.Config{
		Image:      spec.Image,
		Cmd:        spec.Command,
		Env:        spec.Env,
		WorkingDir: spec.WorkingDir,
		User:       spec.User,
		Labels:     spec.Labels,
	}
	hostConfig := &container.HostConfig{Binds: spec.Binds}

	resp, err := d.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, spec.Name)
	if err != nil {
		return "", opError("create", spec.Name, classify(err, ErrImageNotFound))
	}
	return resp.ID, nil
}

func (d *DockerClient) StartContainer(ctx context.Context, containerID string) error {
	if err := d.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return opError("start", containerID, classify(err, ErrContainerNotFound))
	}
	return nil
}

// WaitContainer blocks until the container stops and returns its exit code.
func (d *DockerClient) WaitContainer(ctx context.Context, containerID string) (int, error) {
	statusCh, errCh := d.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return -1, opError("wait", containerID, classify(err, ErrContainerNotFound))
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return int(status.StatusCode), opError("wait", containerID, errors.New(status.Error.Message))
		}
		return int(status.StatusCode), nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (d *DockerClient) RemoveContainer(ctx context.Context, containerID string, opts RemoveOptions) error {
	err := d.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         opts.Force,
		RemoveVolumes: opts.RemoveVolumes,
	})
	if err != nil {
		return opError("remove", containerID, classify(err, ErrContainerNotFound))
	}
	return nil
}

// ListContainers lists containers carrying every label in opts.Labels.
func (d *DockerClient) ListContainers(ctx context.Context, opts ListOptions) ([]ContainerInfo, error) {
	args := filters.NewArgs()
	for k, v := range opts.Labels {
		args.Add("label", k+"="+v)
	}
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{All: opts.All, Filters: args})
	if err != nil {
		return nil, opError("list", "", err)
	}

	out := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		var name string
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		out = append(out, ContainerInfo{
			ID:     c.ID,
			Name:   name,
			Image:  c.Image,
			State:  string(c.State),
			Labels: c.Labels,
		})
	}
	return out, nil
}

func (d *DockerClient) ContainerLogs(ctx context.Context, containerID string, opts LogOptions) (io.ReadCloser, error) {
	reader, err := d.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     opts.Follow,
		Tail:       opts.Tail,
		Timestamps: opts.Timestamps,
	})
	if err != nil {
		return nil, opError("logs", containerID, classify(err, ErrContainerNotFound))
	}

	pr, pw := io.Pipe()
	go func() {
		defer reader.Close()
		_, err := stdcopy.StdCopy(pw, pw, reader)
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// =============================================================================
// Image Operations
// =============================================================================

// PullImage pulls an image and waits for the pull to finish.
func (d *DockerClient) PullImage(ctx context.Context, ref string, opts PullOptions) error {
	reader, err := d.cli.ImagePull(ctx, ref, image.PullOptions{Platform: opts.Platform})
	if err != nil {
		if isNotFound(err) || strings.Contains(err.Error(), "manifest unknown") || strings.Contains(err.Error(), "pull access denied") {
			return opError("pull", ref, fmt.Errorf("%w: %w", ErrImageNotFound, err))
		}
		return opError("pull", ref, fmt.Errorf("%w: %w", ErrImagePull, err))
	}
	defer reader.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return opError("pull", ref, fmt.Errorf("%w: %w", ErrImagePull, err))
	}
	return nil
}

func (d *DockerClient) ImageExists(ctx context.Context, ref string) (bool, error) {
	if _, err := d.cli.ImageInspect(ctx, ref); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, opError("inspect", ref, err)
	}
	return true, nil
}

// =============================================================================
// Helpers
// =============================================================================

func isNotFound(err error) bool { return client.IsErrNotFound(err) }

func isConflict(err error) bool {
	return errdefs.IsConflict(err) || strings.Contains(err.Error(), "Conflict")
}
