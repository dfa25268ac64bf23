package deployment

import "sort"

// =============================================================================
// Runner Container Planning
// =============================================================================

// Container labels for runner containers.
const (
	LabelManaged    = "autodeploy.managed"
	LabelDeployment = "autodeploy.deployment"
	LabelStep       = "autodeploy.step"
)

// WorkspaceDir is where the bundle is mounted inside a runner container.
const WorkspaceDir = "/workspace"

// RunnerPlan is a planned container that runs one Terraform step.
// This is the pure output of planning, ready for the shell to execute.
type RunnerPlan struct {
	Name    string
	Image   string
	Cmd     []string
	Env     []string
	WorkDir string
	Binds   []string
	Labels  map[string]string
}

// RunnerParams contains the parameters for BuildRunnerPlan.
type RunnerParams struct {
	DeploymentID string
	Image        string
	// BundleDir is the absolute host path of the bundle directory.
	BundleDir string
	Step      Step
	Env       []string
}

// BuildRunnerPlan builds the container plan for one lifecycle step. The
// image entrypoint is expected to be the terraform binary, as in the
// official hashicorp/terraform image.
//
// Example:
//
//	plan := BuildRunnerPlan(RunnerParams{
//	    DeploymentID: "abc123",
//	    Image:        "hashicorp/terraform:1.9",
//	    BundleDir:    "/srv/out/deployment_20260102_150405",
//	    Step:         Steps(true, nil)[0],
//	})
func BuildRunnerPlan(p RunnerParams) RunnerPlan {
	env := append([]string(nil), p.Env...)
	sort.Strings(env)
	return RunnerPlan{
		Name:    ContainerName(p.DeploymentID, p.Step.Name),
		Image:   p.Image,
		Cmd:     append([]string(nil), p.Step.Args...),
		Env:     env,
		WorkDir: WorkspaceDir,
		Binds:   []string{p.BundleDir + ":" + WorkspaceDir},
		Labels: map[string]string{
			LabelManaged:    "true",
			LabelDeployment: p.DeploymentID,
			LabelStep:       p.Step.Name,
		},
	}
}
