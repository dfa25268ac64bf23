package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/core/synth"
	"github.com/artpar/autodeploy/internal/shell/orchestrator"
	"github.com/artpar/autodeploy/internal/shell/pipeline"
	"github.com/artpar/autodeploy/internal/shell/session"
	"github.com/artpar/autodeploy/internal/shell/store"
)

// =============================================================================
// Request Flags
// =============================================================================

// requestFlags are shared by commands that take a deployment request.
type requestFlags struct {
	description string
	repository  string
	provider    string
	dryRun      bool
	values      map[string]string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.description, "description", "d", "", "what to deploy, in plain language")
	flags.StringVarP(&f.repository, "repository", "r", "", "local path, git URL or owner/repo")
	flags.StringVarP(&f.provider, "provider", "p", "", "cloud provider, overrides the one named in the description")
	flags.BoolVar(&f.dryRun, "dry-run", false, "stop after terraform plan")
	flags.StringToStringVar(&f.values, "var", nil, "input variable value, e.g. --var app_port=5000 (repeatable)")
}

// request builds a pipeline request. Positional arguments are the
// description when --description is not given.
func (f *requestFlags) request(args []string) (pipeline.Request, error) {
	description := strings.TrimSpace(f.description)
	if description == "" {
		description = strings.TrimSpace(strings.Join(args, " "))
	}
	if description == "" {
		return pipeline.Request{}, errors.New("a description is required, e.g. autodeploy deploy -d \"Deploy this Flask app on AWS\"")
	}
	req := pipeline.Request{
		Description: description,
		Repository:  strings.TrimSpace(f.repository),
		DryRun:      f.dryRun,
		Values:      f.values,
	}
	if f.provider != "" {
		p, err := parseProviderArg(f.provider)
		if err != nil {
			return req, err
		}
		req.Provider = p
	}
	return req, nil
}

func (c *CLI) logSink(r *session.Renderer) orchestrator.LogSink {
	return func(step, line string) {
		fmt.Fprintln(c.out, r.Muted("["+step+"]"), line)
	}
}

// =============================================================================
// Deploy
// =============================================================================

func (c *CLI) deployCommand() *cobra.Command {
	var (
		req   requestFlags
		force bool
	)
	cmd := &cobra.Command{
		Use:   "deploy [description]",
		Short: "Plan, write and apply infrastructure for a repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			request, err := req.request(args)
			if err != nil {
				return err
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			r := c.renderer()
			shown := false
			request.Sink = c.logSink(r)
			if !force {
				confirm := c.confirmApply(r)
				request.Confirm = func(ctx context.Context, plan domain.Plan) (bool, error) {
					shown = true
					return confirm(ctx, plan)
				}
			}

			outcome, err := a.pipeline.Deploy(ctx, request)
			return c.reportDeploy(r, outcome, shown, err)
		},
	}
	req.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "apply without asking for confirmation")
	return cmd
}

func (c *CLI) reportDeploy(r *session.Renderer, outcome *pipeline.Outcome, shown bool, err error) error {
	if errors.Is(err, orchestrator.ErrApplyDeclined) {
		fmt.Fprintln(c.out, r.Muted("Deployment cancelled."))
		return nil
	}
	if outcome == nil {
		return err
	}
	for _, w := range outcome.Warnings {
		fmt.Fprintln(c.out, r.Muted("warning: "+w))
	}
	if !shown && (err == nil || outcome.Plan.IsUnsupported()) {
		fmt.Fprintln(c.out, r.Plan(outcome.Plan))
	}
	if err != nil {
		if d := outcome.Deployment; d != nil {
			fmt.Fprintln(c.out, r.Muted("Deployment "+d.ID+" recorded as failed, see 'autodeploy history "+d.ID+"'"))
		}
		return err
	}

	d := outcome.Deployment
	fmt.Fprintln(c.out, r.Success("Configuration written to "+outcome.Bundle.Dir))
	if d.ArchiveURL != "" {
		fmt.Fprintln(c.out, r.Muted("Archive: "+d.ArchiveURL))
	}
	if d.DryRun {
		fmt.Fprintln(c.out, r.Success("Dry run finished, nothing was applied"))
		return nil
	}
	fmt.Fprintln(c.out, r.Success("Deployment successful!"))
	if outcome.Result.AppURL != "" {
		fmt.Fprintf(c.out, "Application URL: %s\n", outcome.Result.AppURL)
	}
	fmt.Fprintf(c.out, "Infrastructure: %s\n", outcome.Plan.Topology.DisplayName())
	if len(outcome.Result.Outputs) > 0 {
		fmt.Fprintln(c.out, r.Outputs(outcome.Result.Outputs))
	}
	return nil
}

// =============================================================================
// Plan
// =============================================================================

// planDocument is the machine-readable output of the plan command.
type planDocument struct {
	DeploymentID string          `json:"deployment_id"`
	Dir          string          `json:"dir"`
	Digest       string          `json:"digest,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
	Plan         json.RawMessage `json:"plan"`
}

func (c *CLI) planCommand() *cobra.Command {
	var (
		req    requestFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "plan [description]",
		Short: "Decide and write the configuration without applying it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch format {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("unknown format %q, use text, json or yaml", format)
			}
			request, err := req.request(args)
			if err != nil {
				return err
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			planned, err := a.pipeline.Plan(ctx, request)
			if err != nil {
				if planned != nil && planned.Plan.IsUnsupported() && format == "text" {
					fmt.Fprintln(c.out, c.renderer().Plan(planned.Plan))
				}
				return err
			}
			if format == "text" {
				return c.printPlanText(planned)
			}
			return writePlanDocument(c.out, planned, format)
		},
	}
	req.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "o", "text", "output format: text, json or yaml")
	return cmd
}

func (c *CLI) printPlanText(planned *pipeline.Planned) error {
	r := c.renderer()
	for _, w := range planned.Warnings {
		fmt.Fprintln(c.out, r.Muted("warning: "+w))
	}
	fmt.Fprintln(c.out, r.Plan(planned.Plan))

	mainTF, err := os.ReadFile(filepath.Join(planned.Bundle.Dir, synth.MainFile))
	if err != nil {
		return fmt.Errorf("read %s: %w", synth.MainFile, err)
	}
	fmt.Fprintln(c.out, r.HCL(mainTF))
	fmt.Fprintln(c.out, r.Success("Configuration written to "+planned.Bundle.Dir))
	fmt.Fprintln(c.out, r.Muted("Deployment "+planned.Deployment.ID+" is planned, run 'terraform apply' there or use 'autodeploy deploy'"))
	return nil
}

// writePlanDocument writes the plan as JSON or YAML. YAML keys follow the
// JSON field names.
func writePlanDocument(w io.Writer, planned *pipeline.Planned, format string) error {
	planJSON, err := json.Marshal(planned.Plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	doc := planDocument{
		DeploymentID: planned.Deployment.ID,
		Dir:          planned.Bundle.Dir,
		Digest:       planned.Bundle.Digest,
		Warnings:     planned.Warnings,
		Plan:         planJSON,
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(docJSON, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// =============================================================================
// History
// =============================================================================

func (c *CLI) historyCommand() *cobra.Command {
	var (
		limit  int
		status string
		logs   bool
	)
	cmd := &cobra.Command{
		Use:   "history [deployment-id]",
		Short: "List past deployments, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			r := c.renderer()

			if len(args) == 1 {
				d, err := a.store.GetDeployment(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, r.Deployment(*d))
				if logs {
					lines, err := a.store.ListLogs(ctx, d.ID, 0, 10000)
					if err != nil {
						return err
					}
					for _, l := range lines {
						fmt.Fprintln(c.out, r.Muted("["+l.Step+"]"), l.Line)
					}
				}
				return nil
			}

			opts := store.ListOptions{Limit: limit}
			var deployments []deployment.Deployment
			if status != "" {
				s, ok := deployment.ParseStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				deployments, err = a.store.ListDeploymentsByStatus(ctx, s, opts)
			} else {
				deployments, err = a.store.ListDeployments(ctx, opts)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, r.History(deployments))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "how many deployments to list")
	cmd.Flags().StringVar(&status, "status", "", "only list deployments with this status")
	cmd.Flags().BoolVar(&logs, "logs", false, "include Terraform output when showing one deployment")
	return cmd
}
