package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/artpar/autodeploy/internal/shell/api"
	"github.com/artpar/autodeploy/internal/shell/api/middleware"
	"github.com/artpar/autodeploy/internal/shell/workers"
)

// =============================================================================
// Server
// =============================================================================

// Server is serve mode: the HTTP API plus the worker that runs queued
// deployments.
type Server struct {
	config     *Config
	httpServer *http.Server
	deployer   *workers.Deployer
	logger     *slog.Logger
}

// NewServer creates a new server over a wired application.
func NewServer(cfg *Config, a *App, logger *slog.Logger) *Server {
	auth := middleware.NewAuthMiddleware(middleware.AuthConfig{
		Tokens: cfg.Server.Tokens,
		Logger: logger,
	})
	var mws []func(http.Handler) http.Handler
	if auth.Enabled() {
		mws = append(mws, auth.Handler)
		logger.Info("api token authentication enabled", "tokens", len(cfg.Server.Tokens))
	} else {
		logger.Warn("api token authentication disabled, set server.tokens to enable it")
	}

	handler := api.NewHandler(a.pipeline, a.store, a.credentials, api.Config{
		Middleware: mws,
		StreamPoll: cfg.Server.StreamPoll,
		Version:    Version,
	}, logger)

	deployer := workers.NewDeployer(a.store, a.pipeline, workers.DeployerConfig{
		Interval:      cfg.Server.PollInterval,
		MaxConcurrent: cfg.Server.Workers,
		Timeout:       cfg.Server.DeployTimeout,
	}, logger)

	return &Server{
		config: cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      handler.Routes(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		deployer: deployer,
		logger:   logger,
	}
}

// Start starts the server and blocks until ctx is cancelled or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	s.deployer.Start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case err := <-errCh:
		runErr = &AppError{Op: "Start", Err: err, ExitCode: ExitHTTPServerError}
	case <-ctx.Done():
		s.logger.Info("received shutdown signal")
	}

	s.Shutdown(context.WithoutCancel(ctx))
	return runErr
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Running deployments finish or hit their timeout before the store closes.
	s.deployer.Stop()

	s.logger.Info("shutdown complete")
}

// =============================================================================
// Command
// =============================================================================

func (c *CLI) serveCommand() *cobra.Command {
	var (
		host   string
		port   int
		tokens []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the deployment workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := *c.config
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			cfg.Server.Tokens = append(cfg.Server.Tokens, splitTokens(tokens)...)

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			c.logger.Info("starting autodeploy", "version", Version, "config", c.configPath)
			return NewServer(&cfg, a, c.logger).Start(ctx)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&host, "host", "", "listen host, overrides server.host")
	flags.IntVar(&port, "port", 0, "listen port, overrides server.port")
	flags.StringSliceVar(&tokens, "token", nil, "accepted API bearer token (repeatable)")
	return cmd
}
