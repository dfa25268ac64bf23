// Package bundle writes synthesized configuration to disk.
// This is part of the Imperative Shell - it owns the output directory.
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/core/synth"
)

// PlanFile is the audit copy of the plan written next to the configuration.
const PlanFile = "plan.json"

// stagingPattern names staging directories; they never match DirPrefix.
const stagingPattern = ".staging-*"

// maxRenameAttempts bounds the retries when a concurrent writer takes the
// chosen name between the existence check and the rename.
const maxRenameAttempts = 16

// Written describes a bundle on disk.
type Written struct {
	// Dir is the absolute bundle directory.
	Dir    string
	Name   string
	Digest string
}

// Writer places bundles under a root output directory.
type Writer struct {
	root   string
	now    func() time.Time
	logger *slog.Logger
}

// NewWriter creates a writer rooted at dir. The directory is created on
// first write.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{root: dir, now: time.Now, logger: logger.With("component", "bundle_writer")}
}

// Root returns the absolute output directory.
func (w *Writer) Root() (string, error) {
	return filepath.Abs(w.root)
}

// Write stores the bundle and the plan in a fresh directory. Files are
// written to a staging directory first and renamed into place, so a bundle
// directory is either complete or absent. Existing directories are never
// reused or merged.
func (w *Writer) Write(plan domain.Plan, b synth.Bundle) (Written, error) {
	root, err := w.Root()
	if err != nil {
		return Written{}, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Written{}, fmt.Errorf("create output directory: %w", err)
	}

	planJSON, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return Written{}, fmt.Errorf("marshal plan: %w", err)
	}

	staging, err := os.MkdirTemp(root, stagingPattern)
	if err != nil {
		return Written{}, fmt.Errorf("create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := os.RemoveAll(staging); err != nil {
				w.logger.Warn("failed to remove staging directory", "dir", staging, "error", err)
			}
		}
	}()

	files := append(b.Files(), synth.File{Name: PlanFile, Content: planJSON})
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(staging, f.Name), f.Content, 0o644); err != nil {
			return Written{}, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if err := os.Chmod(staging, 0o755); err != nil {
		return Written{}, fmt.Errorf("chmod staging directory: %w", err)
	}

	exists := func(name string) bool {
		_, err := os.Lstat(filepath.Join(root, name))
		return err == nil || !errors.Is(err, os.ErrNotExist)
	}

	now := w.now()
	for attempt := 0; attempt < maxRenameAttempts; attempt++ {
		name := deployment.DirName(now, exists)
		target := filepath.Join(root, name)
		if err := os.Rename(staging, target); err != nil {
			if exists(name) {
				continue
			}
			return Written{}, fmt.Errorf("move bundle into place: %w", err)
		}
		committed = true
		w.logger.Info("bundle written", "dir", target)
		return Written{Dir: target, Name: name, Digest: b.Digest()}, nil
	}
	return Written{}, fmt.Errorf("no free bundle directory name after %d attempts", maxRenameAttempts)
}

// ReadPlan loads the audit plan of a bundle directory.
func ReadPlan(dir string) (domain.Plan, error) {
	data, err := os.ReadFile(filepath.Join(dir, PlanFile))
	if err != nil {
		return domain.Plan{}, err
	}
	return domain.DecodePlan(data)
}
