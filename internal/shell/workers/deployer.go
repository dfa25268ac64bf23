// Package workers runs background jobs for serve mode.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/shell/store"
)

// Processor plans and executes one claimed deployment.
type Processor interface {
	Process(ctx context.Context, id string) error
}

// DeployerConfig configures the deployer worker.
type DeployerConfig struct {
	Interval      time.Duration
	MaxConcurrent int
	// Timeout bounds one deployment from claim to finish.
	Timeout time.Duration
}

// DefaultDeployerConfig returns default configuration.
func DefaultDeployerConfig() DeployerConfig {
	return DeployerConfig{
		Interval:      5 * time.Second,
		MaxConcurrent: 2,
		Timeout:       time.Hour,
	}
}

// Deployer polls for pending deployments, claims them and hands them to a
// Processor with bounded concurrency.
type Deployer struct {
	store     store.Store
	processor Processor
	config    DeployerConfig
	workerID  string
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDeployer creates a new deployer worker.
func NewDeployer(s store.Store, processor Processor, config DeployerConfig, logger *slog.Logger) *Deployer {
	defaults := DefaultDeployerConfig()
	if config.Interval == 0 {
		config.Interval = defaults.Interval
	}
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	workerID := uuid.NewString()
	return &Deployer{
		store:     s,
		processor: processor,
		config:    config,
		workerID:  workerID,
		logger:    logger.With("component", "deployer", "worker_id", workerID),
	}
}

// Start begins the deployer background goroutine.
func (d *Deployer) Start() {
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.wg.Add(1)
	go d.run()
	d.logger.Info("deployer started", "interval", d.config.Interval, "max_concurrent", d.config.MaxConcurrent)
}

// Stop cancels running deployments and waits for them to finish.
func (d *Deployer) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.logger.Info("deployer stopped")
}

func (d *Deployer) run() {
	defer d.wg.Done()

	// Run immediately on start
	d.runCycle()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.runCycle()
		}
	}
}

func (d *Deployer) runCycle() {
	pending, err := d.store.ListDeploymentsByStatus(d.ctx, deployment.StatusPending, store.DefaultListOptions())
	if err != nil {
		if d.ctx.Err() == nil {
			d.logger.Error("failed to list pending deployments", "error", err)
		}
		return
	}
	if len(pending) == 0 {
		return
	}

	d.logger.Debug("processing pending deployments", "count", len(pending))

	sem := make(chan struct{}, d.config.MaxConcurrent)
	var wg sync.WaitGroup

	for i := range pending {
		id := pending[i].ID
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-d.ctx.Done():
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}
			d.processDeployment(id)
		}()
	}

	wg.Wait()
}

func (d *Deployer) processDeployment(id string) {
	logger := d.logger.With("deployment_id", id)

	claimed, err := d.store.ClaimDeployment(d.ctx, id, d.workerID)
	if err != nil {
		logger.Error("failed to claim deployment", "error", err)
		return
	}
	if !claimed {
		logger.Debug("deployment claimed by another worker")
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, d.config.Timeout)
	defer cancel()

	start := time.Now()
	if err := d.processor.Process(ctx, id); err != nil {
		logger.Warn("deployment failed", "error", err, "duration", time.Since(start))
		return
	}
	logger.Info("deployment completed", "duration", time.Since(start))
}
