// Package analyzer clones or opens a repository and summarizes it for the
// decision engine.
// This is part of the Imperative Shell - it runs git and reads the checkout.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/artpar/autodeploy/internal/core/analysis"
	"github.com/artpar/autodeploy/internal/core/domain"
)

// GitRunner runs a git command.
type GitRunner func(ctx context.Context, args ...string) error

// runGit shells out to the git binary.
func runGit(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Config configures an Analyzer.
type Config struct {
	// WorkDir holds temporary clones. Empty means the system temp dir.
	WorkDir      string
	CloneTimeout time.Duration
	// CacheSize is how many remote summaries are kept. Zero disables caching.
	CacheSize int
}

// Result is a repository summary and the warnings raised while building it.
type Result struct {
	Summary  domain.RepositorySummary
	Warnings []string
}

// Analyzer produces RepositorySummary values from repository references.
type Analyzer struct {
	config Config
	git    GitRunner
	cache  *lru.Cache[string, Result]
	logger *slog.Logger
}

// New creates an Analyzer that uses the git binary.
func New(cfg Config, logger *slog.Logger) (*Analyzer, error) {
	return NewWithGit(cfg, runGit, logger)
}

// NewWithGit creates an Analyzer with a custom git runner.
func NewWithGit(cfg Config, git GitRunner, logger *slog.Logger) (*Analyzer, error) {
	if cfg.CloneTimeout <= 0 {
		cfg.CloneTimeout = 2 * time.Minute
	}
	a := &Analyzer{
		config: cfg,
		git:    git,
		logger: logger.With("component", "analyzer"),
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, Result](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create summary cache: %w", err)
		}
		a.cache = cache
	}
	return a, nil
}

// Analyze resolves a repository reference, reads it and summarizes it.
// Remote summaries are cached by clone URL; local directories are always
// read fresh.
func (a *Analyzer) Analyze(ctx context.Context, ref string) (Result, error) {
	src, err := ResolveSource(ref)
	if err != nil {
		return Result{}, err
	}

	if src.IsLocal() {
		return a.analyzeDir(src.LocalPath, src.String())
	}

	if a.cache != nil {
		if res, ok := a.cache.Get(src.CloneURL); ok {
			a.logger.Debug("summary cache hit", "repository", src.CloneURL)
			return res, nil
		}
	}

	dir, err := a.clone(ctx, src.CloneURL)
	if err != nil {
		return Result{}, err
	}
	defer os.RemoveAll(filepath.Dir(dir))

	res, err := a.analyzeDir(dir, src.CloneURL)
	if err != nil {
		return Result{}, err
	}
	if a.cache != nil {
		a.cache.Add(src.CloneURL, res)
	}
	return res, nil
}

// Forget drops a cached summary so the next Analyze clones again.
func (a *Analyzer) Forget(ref string) {
	if a.cache == nil {
		return
	}
	if src, err := ResolveSource(ref); err == nil {
		a.cache.Remove(src.CloneURL)
	}
}

func (a *Analyzer) clone(ctx context.Context, cloneURL string) (string, error) {
	parent, err := os.MkdirTemp(a.config.WorkDir, "autodeploy-clone-*")
	if err != nil {
		return "", fmt.Errorf("create clone directory: %w", err)
	}
	dir := filepath.Join(parent, "repo")

	ctx, cancel := context.WithTimeout(ctx, a.config.CloneTimeout)
	defer cancel()

	a.logger.Info("cloning repository", "repository", cloneURL)
	if err := a.git(ctx, "clone", "--depth", "1", "--quiet", cloneURL, dir); err != nil {
		os.RemoveAll(parent)
		return "", fmt.Errorf("clone %s: %w", cloneURL, err)
	}
	return dir, nil
}

func (a *Analyzer) analyzeDir(dir, repositoryURL string) (Result, error) {
	snap, err := readSnapshot(dir, repositoryURL)
	if err != nil {
		return Result{}, err
	}
	summary, warnings := analysis.Summarize(snap)
	for _, w := range warnings {
		a.logger.Warn("repository analysis warning", "repository", repositoryURL, "warning", w)
	}
	a.logger.Info("repository analyzed",
		"repository", repositoryURL,
		"language", summary.PrimaryLanguage,
		"framework", summary.Framework,
		"needs_database", summary.NeedsDatabase,
		"files", len(snap.Files),
	)
	return Result{Summary: summary, Warnings: warnings}, nil
}
