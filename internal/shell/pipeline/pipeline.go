// Package pipeline wires analysis, decision, validation, synthesis and the
// Terraform lifecycle into deployments recorded in the history store.
// This is part of the Imperative Shell.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/autodeploy/internal/core/decision"
	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/core/domain"
	coreprovider "github.com/artpar/autodeploy/internal/core/provider"
	"github.com/artpar/autodeploy/internal/core/synth"
	"github.com/artpar/autodeploy/internal/core/validation"
	"github.com/artpar/autodeploy/internal/shell/analyzer"
	"github.com/artpar/autodeploy/internal/shell/artifacts"
	"github.com/artpar/autodeploy/internal/shell/bundle"
	"github.com/artpar/autodeploy/internal/shell/credentials"
	"github.com/artpar/autodeploy/internal/shell/nlp"
	"github.com/artpar/autodeploy/internal/shell/orchestrator"
	"github.com/artpar/autodeploy/internal/shell/provider"
	"github.com/artpar/autodeploy/internal/shell/store"
)

// =============================================================================
// Dependencies
// =============================================================================

// Analyzer produces repository summaries.
type Analyzer interface {
	Analyze(ctx context.Context, ref string) (analyzer.Result, error)
}

// Credentials supplies decrypted provider credentials.
type Credentials interface {
	Load(ctx context.Context, p domain.Provider) ([]byte, error)
	Env(ctx context.Context, p domain.Provider) (map[string]string, error)
}

// ClientFactory builds a provider API client from stored credentials.
type ClientFactory func(p domain.Provider, credJSON []byte) (provider.Client, error)

// Deps are the collaborators of a Pipeline. Publisher and Clients may be nil.
type Deps struct {
	Analyzer     Analyzer
	Extractor    nlp.Extractor
	Strategy     decision.Strategy
	Writer       *bundle.Writer
	Store        store.Store
	Credentials  Credentials
	Orchestrator *orchestrator.Orchestrator
	Publisher    *artifacts.Publisher
	Clients      ClientFactory
}

// Pipeline runs deployment requests end to end.
type Pipeline struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// New creates a pipeline.
func New(deps Deps, logger *slog.Logger) *Pipeline {
	if deps.Strategy == nil {
		deps.Strategy = decision.Rules{}
	}
	if deps.Extractor == nil {
		deps.Extractor = nlp.KeywordExtractor{}
	}
	return &Pipeline{
		deps:   deps,
		logger: logger.With("component", "pipeline"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// =============================================================================
// Requests
// =============================================================================

// Request is one deployment request.
type Request struct {
	Description string
	// Repository is a local path, a git URL or owner/repo. Empty skips analysis.
	Repository string
	// Provider overrides the provider named in the description.
	Provider domain.Provider
	DryRun   bool
	// Values are input variable values, including sensitive ones.
	Values map[string]string
	// Confirm is asked before apply. Nil applies without asking.
	Confirm orchestrator.ConfirmFunc
	// Sink receives Terraform output lines as they are produced.
	Sink orchestrator.LogSink
}

// Planned is the outcome of the planning half of a request.
type Planned struct {
	Deployment *deployment.Deployment
	Summary    domain.RepositorySummary
	Intent     domain.DeploymentIntent
	Plan       domain.Plan
	Bundle     bundle.Written
	Warnings   []string
}

// Outcome is a finished deployment.
type Outcome struct {
	Planned
	Result orchestrator.Result
}

// =============================================================================
// Planning
// =============================================================================

// Understand analyzes the repository and extracts the intent of a request.
func (p *Pipeline) Understand(ctx context.Context, req Request) (domain.RepositorySummary, domain.DeploymentIntent, []string, error) {
	var (
		summary  domain.RepositorySummary
		warnings []string
	)
	if req.Repository != "" {
		if p.deps.Analyzer == nil {
			return summary, domain.DeploymentIntent{}, nil, errors.New("no repository analyzer configured")
		}
		res, err := p.deps.Analyzer.Analyze(ctx, req.Repository)
		if err != nil {
			return summary, domain.DeploymentIntent{}, nil, fmt.Errorf("analyze repository: %w", err)
		}
		summary, warnings = res.Summary, res.Warnings
	}

	in, err := p.deps.Extractor.Extract(ctx, req.Description)
	if err != nil {
		return summary, in, warnings, fmt.Errorf("extract intent: %w", err)
	}
	if req.Provider != "" {
		in.CloudProvider = req.Provider
	}
	return summary, in, warnings, nil
}

// Decide runs the strategy and validates the plan. Unsupported plans are
// returned together with a *domain.UnsupportedProviderError so callers can
// still show the rationale.
func (p *Pipeline) Decide(ctx context.Context, summary domain.RepositorySummary, in domain.DeploymentIntent) (domain.Plan, error) {
	plan, err := p.deps.Strategy.Plan(ctx, summary, in)
	if err != nil {
		return plan, fmt.Errorf("decide: %w", err)
	}

	if err := validation.ValidatePlan(plan); err != nil {
		if errors.Is(err, validation.ErrInconsistentPlan) {
			planJSON, _ := json.Marshal(plan)
			p.logger.Error("inconsistent plan", "error", err, "plan", string(planJSON))
		}
		return plan, err
	}
	return plan, nil
}

// Plan analyzes, decides, synthesizes and writes the bundle for a new
// deployment, recording it as planned. Nothing is written when validation or
// synthesis fails.
func (p *Pipeline) Plan(ctx context.Context, req Request) (*Planned, error) {
	d := deployment.New(p.newID(), req.Description, "", req.DryRun, p.now())
	d.Values = persistableValues(req.Values)
	if err := p.deps.Store.CreateDeployment(ctx, d); err != nil {
		return nil, err
	}
	return p.planRecord(ctx, d, req)
}

// Enqueue records a pending deployment for a worker to pick up.
func (p *Pipeline) Enqueue(ctx context.Context, req Request) (*deployment.Deployment, error) {
	d := deployment.New(p.newID(), req.Description, req.Repository, req.DryRun, p.now())
	d.Values = persistableValues(req.Values)
	if err := p.deps.Store.CreateDeployment(ctx, d); err != nil {
		return nil, err
	}
	p.logger.Info("deployment queued", "deployment_id", d.ID)
	return d, nil
}

func (p *Pipeline) planRecord(ctx context.Context, d *deployment.Deployment, req Request) (*Planned, error) {
	out := &Planned{Deployment: d}

	summary, in, warnings, err := p.Understand(ctx, req)
	out.Summary, out.Intent, out.Warnings = summary, in, warnings
	if err != nil {
		return out, p.fail(ctx, d, err)
	}
	d.RepositoryURL = summary.RepositoryURL
	if d.RepositoryURL == "" {
		d.RepositoryURL = req.Repository
	}

	plan, err := p.Decide(ctx, summary, in)
	out.Plan = plan
	if err != nil {
		d.Provider, d.Topology = plan.Provider, plan.Topology
		return out, p.fail(ctx, d, err)
	}
	return out, p.commit(ctx, out)
}

// Commit synthesizes and writes an already decided plan for a new
// deployment. Sessions use it to plan from explicit state.
func (p *Pipeline) Commit(ctx context.Context, description string, summary domain.RepositorySummary, in domain.DeploymentIntent, plan domain.Plan, dryRun bool) (*Planned, error) {
	d := deployment.New(p.newID(), description, summary.RepositoryURL, dryRun, p.now())
	if err := p.deps.Store.CreateDeployment(ctx, d); err != nil {
		return nil, err
	}
	out := &Planned{Deployment: d, Summary: summary, Intent: in, Plan: plan}
	if err := validation.ValidatePlan(plan); err != nil {
		return out, p.fail(ctx, d, err)
	}
	return out, p.commit(ctx, out)
}

func (p *Pipeline) commit(ctx context.Context, out *Planned) error {
	d := out.Deployment
	b, err := synth.Synthesize(out.Plan)
	if err == nil {
		err = b.Check()
	}
	if err != nil {
		return p.fail(ctx, d, fmt.Errorf("synthesize: %w", err))
	}

	written, err := p.deps.Writer.Write(out.Plan, b)
	if err != nil {
		return p.fail(ctx, d, err)
	}
	out.Bundle = written

	planJSON, err := json.Marshal(out.Plan)
	if err != nil {
		return p.fail(ctx, d, fmt.Errorf("marshal plan: %w", err))
	}
	if err := d.Planned(out.Plan, written.Dir, written.Digest, p.now()); err != nil {
		return err
	}

	err = p.deps.Store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.UpdateDeployment(ctx, d); err != nil {
			return err
		}
		return tx.SavePlan(ctx, d.ID, planJSON)
	})
	if err != nil {
		return err
	}
	p.logger.Info("deployment planned",
		"deployment_id", d.ID,
		"provider", out.Plan.Provider,
		"topology", out.Plan.Topology,
		"dir", written.Dir,
	)
	return nil
}

// =============================================================================
// Execution
// =============================================================================

// Execute runs Terraform for a planned deployment and records the result.
// Values supplement the values stored with the deployment.
func (p *Pipeline) Execute(ctx context.Context, id string, req Request) (orchestrator.Result, error) {
	d, err := p.deps.Store.GetDeployment(ctx, id)
	if err != nil {
		return orchestrator.Result{}, err
	}
	planJSON, err := p.deps.Store.GetPlan(ctx, id)
	if err != nil {
		return orchestrator.Result{}, err
	}
	plan, err := domain.DecodePlan(planJSON)
	if err != nil {
		return orchestrator.Result{}, p.fail(ctx, d, err)
	}
	if plan.IsUnsupported() {
		return orchestrator.Result{}, p.fail(ctx, d, &domain.UnsupportedProviderError{Provider: plan.Provider})
	}

	credJSON, err := p.deps.Credentials.Load(ctx, plan.Provider)
	if err != nil {
		return orchestrator.Result{}, p.fail(ctx, d, err)
	}
	env, err := p.deps.Credentials.Env(ctx, plan.Provider)
	if err != nil {
		return orchestrator.Result{}, p.fail(ctx, d, err)
	}
	values := p.resolveValues(ctx, plan, credJSON, d.Values, req.Values)

	if err := d.Transition(deployment.StatusApplying, p.now()); err != nil {
		return orchestrator.Result{}, err
	}
	if err := p.deps.Store.UpdateDeployment(ctx, d); err != nil {
		return orchestrator.Result{}, err
	}

	result, err := p.deps.Orchestrator.Run(ctx, orchestrator.Request{
		DeploymentID:  d.ID,
		Dir:           d.Dir,
		Plan:          plan,
		Values:        values,
		CredentialEnv: env,
		DryRun:        d.DryRun,
		Confirm:       req.Confirm,
		Sink:          p.sink(d.ID, req.Sink),
	})
	if err != nil {
		return result, p.fail(ctx, d, err)
	}

	if err := d.Succeed(result.Outputs, p.now()); err != nil {
		return result, err
	}
	if p.deps.Publisher != nil {
		url, err := p.deps.Publisher.Publish(ctx, d.ID, d.Dir)
		if err != nil {
			p.logger.Warn("failed to publish bundle archive", "deployment_id", d.ID, "error", err)
		} else {
			d.ArchiveURL = url
		}
	}
	if err := p.deps.Store.UpdateDeployment(ctx, d); err != nil {
		return result, err
	}
	p.logger.Info("deployment finished", "deployment_id", d.ID, "dry_run", d.DryRun, "app_url", d.AppURL)
	return result, nil
}

// Deploy plans a request and executes it.
func (p *Pipeline) Deploy(ctx context.Context, req Request) (*Outcome, error) {
	planned, err := p.Plan(ctx, req)
	if err != nil {
		return &Outcome{Planned: derefPlanned(planned)}, err
	}
	result, err := p.Execute(ctx, planned.Deployment.ID, req)
	if d, getErr := p.deps.Store.GetDeployment(context.WithoutCancel(ctx), planned.Deployment.ID); getErr == nil {
		planned.Deployment = d
	}
	return &Outcome{Planned: *planned, Result: result}, err
}

// Process plans and executes a queued deployment. Workers call it after
// claiming the deployment.
func (p *Pipeline) Process(ctx context.Context, id string) error {
	d, err := p.deps.Store.GetDeployment(ctx, id)
	if err != nil {
		return err
	}
	req := Request{Description: d.Description, Repository: d.RepositoryURL, DryRun: d.DryRun, Values: d.Values}
	if d.Status == deployment.StatusPending {
		if _, err := p.planRecord(ctx, d, req); err != nil {
			return err
		}
	}
	_, err = p.Execute(ctx, id, req)
	return err
}

// resolveValues merges variable values by precedence: request values, then
// stored values, then values implied by credentials, then a freshly
// resolved machine image.
func (p *Pipeline) resolveValues(ctx context.Context, plan domain.Plan, credJSON []byte, stored, given map[string]string) map[string]string {
	values := coreprovider.TerraformVars(plan.Provider, credJSON)
	maps.Copy(values, stored)
	maps.Copy(values, given)

	if _, declared := plan.Variables["ami_id"]; declared && values["ami_id"] == "" && p.deps.Clients != nil {
		if ami, err := p.resolveImage(ctx, plan, credJSON); err != nil {
			p.logger.Warn("machine image lookup failed, keeping default", "error", err)
		} else if ami != "" {
			values["ami_id"] = ami
		}
	}
	return values
}

func (p *Pipeline) resolveImage(ctx context.Context, plan domain.Plan, credJSON []byte) (string, error) {
	client, err := p.deps.Clients(plan.Provider, credJSON)
	if err != nil {
		return "", err
	}
	resolver, ok := client.(provider.ImageResolver)
	if !ok {
		return "", nil
	}
	return resolver.ResolveImage(ctx, plan.Region)
}

// sink records every line in the store and forwards it.
func (p *Pipeline) sink(id string, next orchestrator.LogSink) orchestrator.LogSink {
	return func(step, line string) {
		if err := p.deps.Store.AppendLog(context.Background(), id, step, line); err != nil {
			p.logger.Warn("failed to record log line", "deployment_id", id, "error", err)
		}
		if next != nil {
			next(step, line)
		}
	}
}

// fail marks the deployment failed and returns cause.
func (p *Pipeline) fail(ctx context.Context, d *deployment.Deployment, cause error) error {
	if err := d.Fail(cause.Error(), p.now()); err != nil {
		p.logger.Warn("cannot mark deployment failed", "deployment_id", d.ID, "error", err)
		return cause
	}
	if err := p.deps.Store.UpdateDeployment(context.WithoutCancel(ctx), d); err != nil {
		p.logger.Warn("failed to record deployment failure", "deployment_id", d.ID, "error", err)
	}
	return cause
}

// persistableValues drops values that look like secrets.
func persistableValues(values map[string]string) map[string]string {
	var out map[string]string
	for k, v := range values {
		if validation.IsCredentialName(k) {
			continue
		}
		if out == nil {
			out = map[string]string{}
		}
		out[k] = v
	}
	return out
}

func derefPlanned(p *Planned) Planned {
	if p == nil {
		return Planned{}
	}
	return *p
}

// IsNotConfigured reports whether err means the provider has no stored
// credentials.
func IsNotConfigured(err error) bool {
	return errors.Is(err, credentials.ErrNotConfigured)
}
