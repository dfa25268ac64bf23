package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"

	"github.com/artpar/autodeploy/internal/core/crypto"
	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/core/domain"
)

// ErrApplyDeclined is returned when the confirmation hook refuses to apply.
var ErrApplyDeclined = errors.New("apply declined")

// generatedPasswordVar is filled with a random password when not supplied.
const generatedPasswordVar = "db_password"

// LogSink receives every output line with the step that produced it.
type LogSink func(step, line string)

// ConfirmFunc is asked before the first mutating step.
type ConfirmFunc func(ctx context.Context, plan domain.Plan) (bool, error)

// Request is one Terraform run over a written bundle.
type Request struct {
	DeploymentID string
	Dir          string
	Plan         domain.Plan
	// Values are input variable values; sensitive ones go through TF_VAR_.
	Values map[string]string
	// CredentialEnv holds the provider environment, e.g. AWS_ACCESS_KEY_ID.
	CredentialEnv map[string]string
	DryRun        bool
	Confirm       ConfirmFunc
	Sink          LogSink
}

// Result is what a completed run produced.
type Result struct {
	// Steps lists the steps that ran, in order.
	Steps   []string
	Outputs map[string]string
	AppURL  string
}

// Orchestrator drives the Terraform lifecycle through a Runner.
type Orchestrator struct {
	runner Runner
	logger *slog.Logger
}

// New creates an orchestrator over a runner.
func New(runner Runner, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{runner: runner, logger: logger.With("component", "orchestrator")}
}

// Run executes init, validate and plan, then apply and output unless the
// request is a dry run. Unsupported plans are refused before any process
// starts.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	if req.Plan.IsUnsupported() {
		return Result{}, &domain.UnsupportedProviderError{Provider: req.Plan.Provider}
	}

	values, err := withGeneratedSecrets(req.Plan, req.Values)
	if err != nil {
		return Result{}, err
	}
	if errs := deployment.MissingVariables(req.Plan, values); len(errs) > 0 {
		return Result{}, errors.Join(errs...)
	}

	env := append(deployment.SensitiveEnv(req.Plan, values), envList(req.CredentialEnv)...)
	steps := deployment.Steps(req.DryRun, deployment.VarArgs(req.Plan, values))
	logger := o.logger.With("deployment_id", req.DeploymentID)

	var result Result
	for _, step := range steps {
		if step.Mutating && req.Confirm != nil {
			ok, err := req.Confirm(ctx, req.Plan)
			if err != nil {
				return result, err
			}
			if !ok {
				return result, ErrApplyDeclined
			}
		}

		logger.Info("running terraform step", "step", step.Name)
		out, err := o.runner.Run(ctx, RunRequest{
			DeploymentID: req.DeploymentID,
			Dir:          req.Dir,
			Step:         step,
			Env:          env,
		}, func(line string) {
			if req.Sink != nil {
				req.Sink(step.Name, line)
			}
		})
		if err != nil {
			logger.Error("terraform step failed", "step", step.Name, "error", err)
			return result, err
		}
		result.Steps = append(result.Steps, step.Name)

		if step.Name == "output" {
			outputs, err := deployment.ParseOutputs(out)
			if err != nil {
				return result, fmt.Errorf("read terraform outputs: %w", err)
			}
			result.Outputs = outputs
			result.AppURL = deployment.AppURL(outputs)
		}
	}

	logger.Info("terraform run finished", "dry_run", req.DryRun, "app_url", result.AppURL)
	return result, nil
}

// withGeneratedSecrets copies values and fills a missing database password.
func withGeneratedSecrets(plan domain.Plan, values map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(values)+1)
	maps.Copy(out, values)
	if _, declared := plan.Variables[generatedPasswordVar]; declared && out[generatedPasswordVar] == "" {
		pw, err := crypto.GeneratePassword(24)
		if err != nil {
			return nil, err
		}
		out[generatedPasswordVar] = pw
	}
	return out, nil
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
