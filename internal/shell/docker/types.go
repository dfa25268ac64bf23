// Package docker runs one-shot containers for containerized Terraform steps.
package docker

import (
	"context"
	"io"
)

// =============================================================================
// Container Types
// =============================================================================

// ContainerSpec describes a one-shot container.
type ContainerSpec struct {
	Name    string
	Image   string
	Command []string
	// Env entries are KEY=value.
	Env    []string
	Labels map[string]string
	// Binds are host:container bind mounts.
	Binds      []string
	WorkingDir string
	User       string
}

// ContainerInfo is the listing view of a container.
type ContainerInfo struct {
	ID     string
	Name   string
	Image  string
	State  string // "running", "exited", "created", ...
	Labels map[string]string
}

// =============================================================================
// Options
// =============================================================================

type RemoveOptions struct {
	Force         bool
	RemoveVolumes bool
}

// ListOptions selects containers. Every label must match.
type ListOptions struct {
	All    bool
	Labels map[string]string
}

type LogOptions struct {
	Follow     bool
	Tail       string // "all" or a number
	Timestamps bool
}

type PullOptions struct {
	Platform string // e.g. "linux/amd64"
}

// =============================================================================
// Client Interface
// =============================================================================

// Client is the part of the Docker API the Terraform runner needs.
type Client interface {
	CreateContainer(ctx context.Context, spec ContainerSpec) (containerID string, err error)
	StartContainer(ctx context.Context, containerID string) error
	WaitContainer(ctx context.Context, containerID string) (exitCode int, err error)
	RemoveContainer(ctx context.Context, containerID string, opts RemoveOptions) error
	ListContainers(ctx context.Context, opts ListOptions) ([]ContainerInfo, error)
	// ContainerLogs returns stdout and stderr merged into one plain stream.
	ContainerLogs(ctx context.Context, containerID string, opts LogOptions) (io.ReadCloser, error)

	PullImage(ctx context.Context, image string, opts PullOptions) error
	ImageExists(ctx context.Context, image string) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}
