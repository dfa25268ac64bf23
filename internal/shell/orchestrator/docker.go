package orchestrator

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/shell/docker"
)

// DefaultImage is the Terraform image used by the container runner.
const DefaultImage = "hashicorp/terraform:1.9"

// DockerRunner runs each Terraform step in a fresh container with the
// bundle directory bind-mounted as the working directory.
type DockerRunner struct {
	client docker.Client
	image  string
	logger *slog.Logger

	pullOnce sync.Once
	pullErr  error
}

// NewDockerRunner creates a container runner.
func NewDockerRunner(client docker.Client, image string, logger *slog.Logger) *DockerRunner {
	if image == "" {
		image = DefaultImage
	}
	return &DockerRunner{
		client: client,
		image:  image,
		logger: logger.With("component", "docker_runner", "image", image),
	}
}

// Run implements Runner.
func (r *DockerRunner) Run(ctx context.Context, req RunRequest, onLine LineFunc) ([]byte, error) {
	if err := r.ensureImage(ctx); err != nil {
		return nil, &StepError{Step: req.Step.Name, Err: err}
	}

	plan := deployment.BuildRunnerPlan(deployment.RunnerParams{
		DeploymentID: req.DeploymentID,
		Image:        r.image,
		BundleDir:    req.Dir,
		Step:         req.Step,
		Env:          append([]string{"TF_IN_AUTOMATION=1"}, req.Env...),
	})

	r.removeStale(ctx, plan.Labels)

	id, err := r.client.CreateContainer(ctx, docker.ContainerSpec{
		Name:       plan.Name,
		Image:      plan.Image,
		Command:    plan.Cmd,
		Env:        plan.Env,
		Labels:     plan.Labels,
		Binds:      plan.Binds,
		WorkingDir: plan.WorkDir,
	})
	if err != nil {
		return nil, &StepError{Step: req.Step.Name, Err: err}
	}
	defer func() {
		// Removal uses a fresh context so canceled runs still clean up.
		if err := r.client.RemoveContainer(context.Background(), id, docker.RemoveOptions{Force: true}); err != nil {
			r.logger.Warn("failed to remove runner container", "container", plan.Name, "error", err)
		}
	}()

	if err := r.client.StartContainer(ctx, id); err != nil {
		return nil, &StepError{Step: req.Step.Name, Err: err}
	}

	logs, err := r.client.ContainerLogs(ctx, id, docker.LogOptions{Follow: true})
	if err != nil {
		return nil, &StepError{Step: req.Step.Name, Err: err}
	}
	var captured bytes.Buffer
	scanLines(io.TeeReader(logs, &captured), func(line string) {
		if onLine != nil {
			onLine(line)
		}
	})
	logs.Close()

	code, err := r.client.WaitContainer(ctx, id)
	if err != nil {
		return captured.Bytes(), &StepError{Step: req.Step.Name, Err: err}
	}
	if code != 0 {
		return captured.Bytes(), &StepError{Step: req.Step.Name, ExitCode: code}
	}
	return captured.Bytes(), nil
}

func (r *DockerRunner) ensureImage(ctx context.Context) error {
	r.pullOnce.Do(func() {
		exists, err := r.client.ImageExists(ctx, r.image)
		if err != nil {
			r.pullErr = err
			return
		}
		if exists {
			return
		}
		r.logger.Info("pulling terraform image")
		r.pullErr = r.client.PullImage(ctx, r.image, docker.PullOptions{})
	})
	return r.pullErr
}

// removeStale removes containers left behind by an earlier run of the same
// step, which would otherwise hold the container name.
func (r *DockerRunner) removeStale(ctx context.Context, labels map[string]string) {
	stale, err := r.client.ListContainers(ctx, docker.ListOptions{
		All: true,
		Labels: map[string]string{
			deployment.LabelDeployment: labels[deployment.LabelDeployment],
			deployment.LabelStep:       labels[deployment.LabelStep],
		},
	})
	if err != nil {
		r.logger.Warn("failed to list runner containers", "error", err)
		return
	}
	for _, c := range stale {
		r.logger.Info("removing stale runner container", "container", c.Name, "state", c.State)
		if err := r.client.RemoveContainer(ctx, c.ID, docker.RemoveOptions{Force: true}); err != nil {
			r.logger.Warn("failed to remove stale runner container", "container", c.Name, "error", err)
		}
	}
}
