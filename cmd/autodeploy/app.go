package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/shell/analyzer"
	"github.com/artpar/autodeploy/internal/shell/artifacts"
	"github.com/artpar/autodeploy/internal/shell/bundle"
	"github.com/artpar/autodeploy/internal/shell/credentials"
	"github.com/artpar/autodeploy/internal/shell/docker"
	"github.com/artpar/autodeploy/internal/shell/nlp"
	"github.com/artpar/autodeploy/internal/shell/orchestrator"
	"github.com/artpar/autodeploy/internal/shell/pipeline"
	"github.com/artpar/autodeploy/internal/shell/provider"
	"github.com/artpar/autodeploy/internal/shell/store"
)

// =============================================================================
// Application
// =============================================================================

// App holds the wired components shared by every command.
type App struct {
	config      *Config
	store       *store.SQLiteStore
	credentials *credentials.Manager
	analyzer    *analyzer.Analyzer
	pipeline    *pipeline.Pipeline
	docker      *docker.DockerClient
	logger      *slog.Logger
}

// AppError represents a failure to build the application.
type AppError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *AppError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewApp opens the history store and wires the pipeline. Docker is only
// contacted when Terraform runs in a container.
func NewApp(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o700); err != nil {
		return nil, &AppError{Op: "NewApp", Err: fmt.Errorf("create data directory: %w", err), ExitCode: ExitDatabaseError}
	}
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, &AppError{Op: "NewApp", Err: err, ExitCode: ExitDatabaseError}
	}

	key, err := credentials.LoadOrCreateKey(cfg.Credentials.KeyFile)
	if err != nil {
		st.Close()
		return nil, &AppError{Op: "NewApp", Err: err, ExitCode: ExitConfigError}
	}
	creds := credentials.NewManager(st, key, logger)

	an, err := analyzer.New(analyzer.Config{
		WorkDir:      cfg.Analyzer.WorkDir,
		CloneTimeout: cfg.Analyzer.CloneTimeout,
		CacheSize:    cfg.Analyzer.CacheSize,
	}, logger)
	if err != nil {
		st.Close()
		return nil, &AppError{Op: "NewApp", Err: err, ExitCode: ExitConfigError}
	}

	a := &App{
		config:      cfg,
		store:       st,
		credentials: creds,
		analyzer:    an,
		logger:      logger,
	}

	runner, err := a.newRunner(ctx)
	if err != nil {
		a.Close()
		return nil, &AppError{Op: "NewApp", Err: err, ExitCode: ExitDockerError}
	}

	publisher, err := a.newPublisher()
	if err != nil {
		a.Close()
		return nil, &AppError{Op: "NewApp", Err: err, ExitCode: ExitConfigError}
	}

	model := a.newModel(ctx)
	a.pipeline = pipeline.New(pipeline.Deps{
		Analyzer:     an,
		Extractor:    nlp.NewExtractor(model, logger),
		Strategy:     nlp.NewStrategy(model, logger),
		Writer:       bundle.NewWriter(cfg.Output.Dir, logger),
		Store:        st,
		Credentials:  creds,
		Orchestrator: orchestrator.New(runner, logger),
		Publisher:    publisher,
		Clients: func(p domain.Provider, credJSON []byte) (provider.Client, error) {
			return provider.NewClient(p, credJSON, logger)
		},
	}, logger)

	return a, nil
}

// newModel connects to Gemini when a key is configured. Any failure falls
// back to keyword extraction and the rule table.
func (a *App) newModel(ctx context.Context) nlp.Model {
	if strings.TrimSpace(a.config.Gemini.APIKey) == "" {
		a.logger.Debug("no gemini api key, using keyword extraction")
		return nil
	}
	m, err := nlp.NewGeminiModel(ctx, a.config.Gemini.APIKey, a.config.Gemini.Model, a.logger)
	if err != nil {
		a.logger.Warn("gemini unavailable, using keyword extraction", "error", err)
		return nil
	}
	return m
}

func (a *App) newRunner(ctx context.Context) (orchestrator.Runner, error) {
	if !strings.EqualFold(a.config.Terraform.Runner, "docker") {
		return orchestrator.NewLocalRunner(a.config.Terraform.Binary), nil
	}
	d, err := docker.NewDockerClient(a.config.Terraform.DockerHost)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, err
	}
	a.docker = d
	a.logger.Info("running terraform in containers", "image", a.config.Terraform.Image)
	return orchestrator.NewDockerRunner(d, a.config.Terraform.Image, a.logger), nil
}

func (a *App) newPublisher() (*artifacts.Publisher, error) {
	ac := a.config.Artifacts
	if !ac.Enabled {
		return nil, nil
	}
	s3 := artifacts.S3Config{
		Endpoint:  ac.Endpoint,
		Region:    ac.Region,
		AccessKey: ac.AccessKey,
		SecretKey: ac.SecretKey,
		Bucket:    ac.Bucket,
		UseSSL:    ac.UseSSL,
	}
	if !s3.Enabled() {
		a.logger.Info("bundle archives kept locally")
		return artifacts.NewPublisher(nil, a.logger), nil
	}
	uploader, err := artifacts.NewS3Uploader(s3)
	if err != nil {
		return nil, fmt.Errorf("artifact storage: %w", err)
	}
	a.logger.Info("bundle archives uploaded", "endpoint", ac.Endpoint, "bucket", ac.Bucket)
	return artifacts.NewPublisher(uploader, a.logger), nil
}

// Close releases the store and the Docker client.
func (a *App) Close() error {
	var errs []error
	if a.docker != nil {
		errs = append(errs, a.docker.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
