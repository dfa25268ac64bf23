package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/autodeploy/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const outputsJSON = `{
  "instance_ip": {"sensitive": false, "type": "string", "value": "203.0.113.7"},
  "db_endpoint": {"sensitive": true, "type": "string", "value": "secret"}
}`

// fakeRunner records requests and returns canned stdout per step.
type fakeRunner struct {
	requests []RunRequest
	stdout   map[string]string
	fail     string
}

func (r *fakeRunner) Run(_ context.Context, req RunRequest, onLine LineFunc) ([]byte, error) {
	r.requests = append(r.requests, req)
	onLine("running " + req.Step.Name)
	if req.Step.Name == r.fail {
		return nil, &StepError{Step: req.Step.Name, ExitCode: 1}
	}
	return []byte(r.stdout[req.Step.Name]), nil
}

func (r *fakeRunner) stepNames() []string {
	var names []string
	for _, req := range r.requests {
		names = append(names, req.Step.Name)
	}
	return names
}

func testPlan() domain.Plan {
	return domain.Plan{
		Provider: domain.ProviderAWS,
		Topology: domain.TopologySingleVM,
		Variables: map[string]domain.Variable{
			"region":      {Type: "string", Default: domain.String("us-east-1")},
			"db_password": {Type: "string", Sensitive: true},
		},
	}
}

// =============================================================================
// Orchestrator Tests
// =============================================================================

func TestRun_DryRunStopsAfterPlan(t *testing.T) {
	runner := &fakeRunner{}
	var lines []string
	o := New(runner, testLogger())

	res, err := o.Run(context.Background(), Request{
		DeploymentID:  "dep-1",
		Dir:           "/tmp/bundle",
		Plan:          testPlan(),
		Values:        map[string]string{"region": "eu-west-1"},
		CredentialEnv: map[string]string{"AWS_ACCESS_KEY_ID": "AKIA"},
		DryRun:        true,
		Sink:          func(step, line string) { lines = append(lines, step+": "+line) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"init", "validate", "plan"}, res.Steps)
	assert.Equal(t, []string{"init", "validate", "plan"}, runner.stepNames())
	assert.Equal(t, "plan: running plan", lines[2])

	planReq := runner.requests[2]
	assert.Contains(t, planReq.Step.Args, "region=eu-west-1")
	assert.NotContains(t, strings.Join(planReq.Step.Args, " "), "db_password")
	assert.Contains(t, planReq.Env, "AWS_ACCESS_KEY_ID=AKIA")

	var pw string
	for _, e := range planReq.Env {
		if strings.HasPrefix(e, "TF_VAR_db_password=") {
			pw = strings.TrimPrefix(e, "TF_VAR_db_password=")
		}
	}
	assert.Len(t, pw, 24)
}

func TestRun_ApplyReadsOutputs(t *testing.T) {
	runner := &fakeRunner{stdout: map[string]string{"output": outputsJSON}}
	o := New(runner, testLogger())

	res, err := o.Run(context.Background(), Request{
		DeploymentID: "dep-1",
		Plan:         testPlan(),
		Values:       map[string]string{"db_password": "given"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"init", "validate", "plan", "apply", "output"}, res.Steps)
	assert.Equal(t, "http://203.0.113.7", res.AppURL)
	assert.Equal(t, "(sensitive)", res.Outputs["db_endpoint"])
	assert.Contains(t, runner.requests[0].Env, "TF_VAR_db_password=given")
}

func TestRun_UnsupportedNeverRuns(t *testing.T) {
	runner := &fakeRunner{}
	o := New(runner, testLogger())

	_, err := o.Run(context.Background(), Request{
		Plan: domain.Plan{Provider: domain.ProviderAzure, Topology: domain.TopologyUnsupported},
	})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedProvider))
	assert.Empty(t, runner.requests)
}

func TestRun_MissingVariable(t *testing.T) {
	runner := &fakeRunner{}
	plan := testPlan()
	plan.Variables["project_id"] = domain.Variable{Type: "string"}

	_, err := New(runner, testLogger()).Run(context.Background(), Request{Plan: plan})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project_id")
	assert.Empty(t, runner.requests)
}

func TestRun_ConfirmDeclined(t *testing.T) {
	runner := &fakeRunner{}
	asked := 0

	res, err := New(runner, testLogger()).Run(context.Background(), Request{
		Plan: testPlan(),
		Confirm: func(context.Context, domain.Plan) (bool, error) {
			asked++
			return false, nil
		},
	})
	assert.ErrorIs(t, err, ErrApplyDeclined)
	assert.Equal(t, 1, asked)
	assert.Equal(t, []string{"init", "validate", "plan"}, res.Steps)
}

func TestRun_StepFailureStops(t *testing.T) {
	runner := &fakeRunner{fail: "validate"}

	_, err := New(runner, testLogger()).Run(context.Background(), Request{Plan: testPlan(), DryRun: true})
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "validate", stepErr.Step)
	assert.Equal(t, []string{"init", "validate"}, runner.stepNames())
}

// =============================================================================
// Local Runner Tests
// =============================================================================

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terraform")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestLocalRunner_StreamsAndCaptures(t *testing.T) {
	bin := writeScript(t, `echo "args: $*"
echo "dir: $(basename "$(pwd -P)")"
echo "secret: $TF_VAR_db_password"
echo "warning" >&2
`)
	dir := filepath.Join(t.TempDir(), "bundle")
	require.NoError(t, os.Mkdir(dir, 0o755))

	var lines []string
	out, err := NewLocalRunner(bin).Run(context.Background(), RunRequest{
		Dir:  dir,
		Step: deploymentStep("init", "init", "-input=false"),
		Env:  []string{"TF_VAR_db_password=pw"},
	}, func(line string) { lines = append(lines, line) })
	require.NoError(t, err)

	assert.Contains(t, string(out), "args: init -input=false")
	assert.Contains(t, string(out), "dir: bundle")
	assert.Contains(t, string(out), "secret: pw")
	assert.NotContains(t, string(out), "warning")
	assert.Contains(t, lines, "warning")
	assert.Len(t, lines, 4)
}

func TestLocalRunner_ExitCode(t *testing.T) {
	bin := writeScript(t, "echo failing\nexit 3\n")

	_, err := NewLocalRunner(bin).Run(context.Background(), RunRequest{
		Dir:  t.TempDir(),
		Step: deploymentStep("plan", "plan"),
	}, nil)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, 3, stepErr.ExitCode)
	assert.Equal(t, "terraform plan exited with code 3", stepErr.Error())
}

func TestLocalRunner_MissingBinary(t *testing.T) {
	_, err := NewLocalRunner(filepath.Join(t.TempDir(), "nope")).Run(context.Background(), RunRequest{
		Dir:  t.TempDir(),
		Step: deploymentStep("init", "init"),
	}, nil)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, 0, stepErr.ExitCode)
}
