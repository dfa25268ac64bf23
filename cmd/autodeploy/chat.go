package main

import (
	"github.com/spf13/cobra"

	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/shell/session"
)

func (c *CLI) chatCommand() *cobra.Command {
	var (
		repository string
		provider   string
		dryRun     bool
		force      bool
		values     map[string]string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive deployment session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var p domain.Provider
			if provider != "" {
				var err error
				if p, err = parseProviderArg(provider); err != nil {
					return err
				}
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			r := c.renderer()
			cfg := session.Config{
				In:       c.in,
				Out:      c.out,
				Analyzer: a.analyzer,
				Engine:   a.pipeline,
				History:  a.store,
				Renderer: r,
				Provider: p,
				DryRun:   dryRun,
				Values:   values,
				Logger:   c.logger,
			}
			if !force {
				cfg.Confirm = c.confirmApply(r)
			}
			return session.New(cfg).Run(ctx, repository)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&repository, "repository", "r", "", "repository to load at start")
	flags.StringVarP(&provider, "provider", "p", "", "cloud provider for every request")
	flags.BoolVar(&dryRun, "dry-run", false, "stop every deployment after terraform plan")
	flags.BoolVar(&force, "force", false, "apply without asking for confirmation")
	flags.StringToStringVar(&values, "var", nil, "input variable value (repeatable)")
	return cmd
}
