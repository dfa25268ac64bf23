package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/shell/session"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Exit codes.
const (
	ExitSuccess         = 0
	ExitFailure         = 1
	ExitConfigError     = 2
	ExitDatabaseError   = 3
	ExitDockerError     = 4
	ExitHTTPServerError = 5
	ExitUnsupported     = 6
	ExitInterrupted     = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &CLI{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	err := c.Command().ExecuteContext(ctx)
	return c.exitCode(ctx, err)
}

// =============================================================================
// CLI
// =============================================================================

// CLI carries global flags and the state every command shares.
type CLI struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	envFile    string
	logLevel   string
	noColor    bool

	config *Config
	logger *slog.Logger

	// newApp is replaced in tests.
	newApp func(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error)
}

// Command builds the root command.
func (c *CLI) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "autodeploy",
		Short: "Deploy applications from a plain-language request",
		Long: `autodeploy turns a request such as "Deploy this Flask app on AWS with
Postgres" and a repository into a Terraform configuration, then applies it.

Examples:
  autodeploy deploy -d "Deploy this Flask app on AWS with Postgres" -r acme/shop
  autodeploy plan -d "static site on gcp" -r ./site --format yaml
  autodeploy chat -r acme/shop
  autodeploy credentials setup aws`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to config file")
	flags.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	flags.StringVar(&c.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	flags.BoolVar(&c.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		c.deployCommand(),
		c.planCommand(),
		c.chatCommand(),
		c.credentialsCommand(),
		c.historyCommand(),
		c.serveCommand(),
		c.versionCommand(),
	)
	return root
}

func (c *CLI) setup() error {
	if c.config != nil {
		return nil
	}
	if c.envFile != "" {
		if err := LoadDotEnv(c.envFile); err != nil {
			return &AppError{Op: "setup", Err: err, ExitCode: ExitConfigError}
		}
	}
	cfg, err := LoadConfig(c.configPath)
	if err != nil {
		return &AppError{Op: "setup", Err: err, ExitCode: ExitConfigError}
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	c.config = cfg
	c.logger = SetupLogger(cfg, c.errOut)
	return nil
}

// open wires the application for one command.
func (c *CLI) open(ctx context.Context) (*App, error) {
	if c.newApp != nil {
		return c.newApp(ctx, c.config, c.logger)
	}
	return NewApp(ctx, c.config, c.logger)
}

// renderer colors output only on a terminal.
func (c *CLI) renderer() *session.Renderer {
	return session.NewRenderer(!c.noColor && isTerminal(c.out))
}

// interactive reports whether prompts can be shown.
func (c *CLI) interactive() bool {
	return isTerminal(c.in)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// exitCode reports err and maps it to a process exit code.
func (c *CLI) exitCode(ctx context.Context, err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		fmt.Fprintln(c.errOut, "\nOperation cancelled by user")
		return ExitInterrupted
	}

	fmt.Fprintf(c.errOut, "Error: %v\n", err)
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return appErr.ExitCode
	case errors.Is(err, domain.ErrUnsupportedProvider):
		return ExitUnsupported
	default:
		return ExitFailure
	}
}

func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "autodeploy %s (built %s)\n", Version, BuildTime)
		},
	}
}
