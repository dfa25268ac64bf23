// Package session implements the interactive chat shell: a line-oriented
// command loop over an explicitly owned session State.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/core/synth"
	"github.com/artpar/autodeploy/internal/shell/analyzer"
	"github.com/artpar/autodeploy/internal/shell/orchestrator"
	"github.com/artpar/autodeploy/internal/shell/pipeline"
	"github.com/artpar/autodeploy/internal/shell/store"
)

// ErrNoRepository is returned by plan and deploy before a repository is
// loaded.
var ErrNoRepository = errors.New("no repository loaded, use 'load <repo_url>' first")

// =============================================================================
// Dependencies
// =============================================================================

// Analyzer produces repository summaries.
type Analyzer interface {
	Analyze(ctx context.Context, ref string) (analyzer.Result, error)
}

// Engine is the part of the pipeline a session drives.
type Engine interface {
	Understand(ctx context.Context, req pipeline.Request) (domain.RepositorySummary, domain.DeploymentIntent, []string, error)
	Decide(ctx context.Context, summary domain.RepositorySummary, in domain.DeploymentIntent) (domain.Plan, error)
	Commit(ctx context.Context, description string, summary domain.RepositorySummary, in domain.DeploymentIntent, plan domain.Plan, dryRun bool) (*pipeline.Planned, error)
	Execute(ctx context.Context, id string, req pipeline.Request) (orchestrator.Result, error)
}

// History lists past deployments.
type History interface {
	ListDeployments(ctx context.Context, opts store.ListOptions) ([]deployment.Deployment, error)
}

// Config configures a Shell.
type Config struct {
	In       io.Reader
	Out      io.Writer
	Analyzer Analyzer
	Engine   Engine
	History  History
	Renderer *Renderer
	// Provider overrides the provider named in requests.
	Provider domain.Provider
	DryRun   bool
	// Values are input variable values passed to every apply.
	Values  map[string]string
	Confirm orchestrator.ConfirmFunc
	Logger  *slog.Logger
}

// =============================================================================
// State
// =============================================================================

// State is what one session has learned. It belongs to a single Shell and
// is never shared.
type State struct {
	Repository string
	Summary    domain.RepositorySummary
	Warnings   []string
	// LastPlan is the most recent plan shown or deployed.
	LastPlan *domain.Plan
	// Deployments are the IDs created by this session, oldest first.
	Deployments []string
}

// Loaded reports whether a repository has been analyzed.
func (s State) Loaded() bool {
	return s.Repository != ""
}

// =============================================================================
// Shell
// =============================================================================

// Shell is an interactive deployment session.
type Shell struct {
	cfg    Config
	in     *bufio.Scanner
	out    io.Writer
	render *Renderer
	logger *slog.Logger
	state  State
}

// New creates a shell.
func New(cfg Config) *Shell {
	if cfg.Renderer == nil {
		cfg.Renderer = NewRenderer(false)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Shell{
		cfg:    cfg,
		in:     bufio.NewScanner(cfg.In),
		out:    cfg.Out,
		render: cfg.Renderer,
		logger: cfg.Logger.With("component", "session"),
	}
}

// State returns a copy of the session state.
func (s *Shell) State() State {
	return s.state
}

// Run reads commands until quit, end of input or cancellation. An initial
// repository is loaded first when ref is not empty.
func (s *Shell) Run(ctx context.Context, ref string) error {
	fmt.Fprintln(s.out, s.render.title.Render("autodeploy chat"))
	fmt.Fprintln(s.out, s.render.Muted("Type 'help' for commands, 'quit' to exit."))

	if ref != "" {
		if err := s.load(ctx, ref); err != nil {
			s.report(err)
		}
	}

	for {
		fmt.Fprint(s.out, "\n> ")
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		quit, err := s.Handle(ctx, s.in.Text())
		if err != nil {
			s.report(err)
		}
		if quit {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}
	}
}

// Handle runs one command line. It reports whether the session should end.
// Command errors never end the session.
func (s *Shell) Handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(norm.NFC.String(line))
	if line == "" {
		return false, nil
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "quit", "exit":
		return true, nil
	case "help":
		s.help()
	case "status":
		s.status()
	case "load":
		if arg == "" {
			return false, errors.New("usage: load <repo_url>")
		}
		return false, s.load(ctx, arg)
	case "plan":
		if arg == "" {
			return false, errors.New("usage: plan <description>")
		}
		return false, s.plan(ctx, arg)
	case "deploy":
		if arg == "" {
			return false, errors.New("usage: deploy <description>")
		}
		return false, s.deploy(ctx, arg)
	case "history":
		return false, s.history(ctx)
	default:
		if s.state.Loaded() {
			fmt.Fprintf(s.out, "Did you mean to deploy? Use 'deploy %s' to proceed,\n", line)
			fmt.Fprintf(s.out, "or 'plan %s' to see the deployment plan.\n", line)
		} else {
			fmt.Fprintln(s.out, "Unknown command. Type 'help' for available commands.")
		}
	}
	return false, nil
}

// =============================================================================
// Commands
// =============================================================================

func (s *Shell) help() {
	fmt.Fprintln(s.out, s.render.label.Render("Commands"))
	for _, c := range [][2]string{
		{"load <repo_url>", "clone and analyze a repository"},
		{"status", "show the loaded repository"},
		{"plan <description>", "show the infrastructure plan for a request"},
		{"deploy <description>", "plan, write and apply the configuration"},
		{"history", "list recent deployments"},
		{"quit", "leave the session"},
	} {
		fmt.Fprintf(s.out, "  %-22s %s\n", c[0], s.render.Muted(c[1]))
	}
}

func (s *Shell) status() {
	if !s.state.Loaded() {
		fmt.Fprintln(s.out, "No repository loaded. Use 'load <repo_url>' to load a repository.")
		return
	}
	fmt.Fprintln(s.out, s.render.Summary(s.state.Repository, s.state.Summary, s.state.Warnings))
	if n := len(s.state.Deployments); n > 0 {
		fmt.Fprintf(s.out, "  %s %d this session, last %s\n", s.render.label.Render("Deployments:"), n, s.state.Deployments[n-1])
	}
}

func (s *Shell) load(ctx context.Context, ref string) error {
	fmt.Fprintln(s.out, s.render.Muted("Analyzing "+ref+"..."))
	res, err := s.cfg.Analyzer.Analyze(ctx, ref)
	if err != nil {
		return fmt.Errorf("load repository: %w", err)
	}
	// A new repository starts a new context; plans of the old one no longer apply.
	s.state = State{
		Repository:  ref,
		Summary:     res.Summary,
		Warnings:    res.Warnings,
		Deployments: s.state.Deployments,
	}
	fmt.Fprintln(s.out, s.render.Success("Repository analyzed"))
	fmt.Fprintln(s.out, s.render.Summary(ref, res.Summary, res.Warnings))
	return nil
}

// decide turns a request into a validated plan for the loaded repository.
// Unsupported plans are shown before the refusal is returned.
func (s *Shell) decide(ctx context.Context, description string) (domain.DeploymentIntent, domain.Plan, error) {
	if !s.state.Loaded() {
		return domain.DeploymentIntent{}, domain.Plan{}, ErrNoRepository
	}
	_, in, _, err := s.cfg.Engine.Understand(ctx, pipeline.Request{Description: description, Provider: s.cfg.Provider})
	if err != nil {
		return in, domain.Plan{}, err
	}
	plan, err := s.cfg.Engine.Decide(ctx, s.state.Summary, in)
	if err != nil {
		if plan.IsUnsupported() {
			fmt.Fprintln(s.out, s.render.Plan(plan))
		}
		return in, plan, err
	}
	s.state.LastPlan = &plan
	return in, plan, nil
}

func (s *Shell) plan(ctx context.Context, description string) error {
	_, plan, err := s.decide(ctx, description)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, s.render.Plan(plan))

	b, err := synth.Synthesize(plan)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	fmt.Fprintln(s.out, s.render.label.Render(synth.MainFile))
	fmt.Fprintln(s.out, s.render.HCL(b.Main))
	fmt.Fprintln(s.out, s.render.Muted("Use 'deploy "+description+"' to apply this plan."))
	return nil
}

func (s *Shell) deploy(ctx context.Context, description string) error {
	in, plan, err := s.decide(ctx, description)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, s.render.Plan(plan))

	planned, err := s.cfg.Engine.Commit(ctx, description, s.state.Summary, in, plan, s.cfg.DryRun)
	if planned != nil && planned.Deployment != nil {
		s.state.Deployments = append(s.state.Deployments, planned.Deployment.ID)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, s.render.Success("Configuration written to "+planned.Bundle.Dir))

	result, err := s.cfg.Engine.Execute(ctx, planned.Deployment.ID, pipeline.Request{
		Values:  s.cfg.Values,
		Confirm: s.cfg.Confirm,
		Sink: func(step, line string) {
			fmt.Fprintln(s.out, s.render.Muted("["+step+"]"), line)
		},
	})
	if err != nil {
		return err
	}

	if s.cfg.DryRun {
		fmt.Fprintln(s.out, s.render.Success("Dry run finished, nothing was applied"))
		return nil
	}
	fmt.Fprintln(s.out, s.render.Success("Deployment successful!"))
	if result.AppURL != "" {
		fmt.Fprintf(s.out, "  %s %s\n", s.render.label.Render("URL:"), result.AppURL)
	}
	fmt.Fprintf(s.out, "  %s %s\n", s.render.label.Render("Infrastructure:"), plan.Topology.DisplayName())
	if len(result.Outputs) > 0 {
		fmt.Fprintln(s.out, s.render.Outputs(result.Outputs))
	}
	return nil
}

func (s *Shell) history(ctx context.Context) error {
	if s.cfg.History == nil {
		return errors.New("history is not available")
	}
	deployments, err := s.cfg.History.ListDeployments(ctx, store.ListOptions{Limit: 20})
	if err != nil {
		return fmt.Errorf("list deployments: %w", err)
	}
	fmt.Fprintln(s.out, s.render.History(deployments))
	return nil
}

// report prints a command error. Declined applies are not errors to the
// user.
func (s *Shell) report(err error) {
	if errors.Is(err, orchestrator.ErrApplyDeclined) {
		fmt.Fprintln(s.out, s.render.Muted("Deployment cancelled."))
		return
	}
	s.logger.Debug("command failed", "error", err)
	fmt.Fprintln(s.out, s.render.Failure(err.Error()))
}
