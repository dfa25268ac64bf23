// Package orchestrator runs the Terraform lifecycle against a written bundle,
// either with a local terraform binary or inside a container.
// This is part of the Imperative Shell - it starts processes.
package orchestrator

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/artpar/autodeploy/internal/core/deployment"
)

// LineFunc receives one line of Terraform output.
type LineFunc func(line string)

// RunRequest describes one Terraform step.
type RunRequest struct {
	DeploymentID string
	// Dir is the absolute bundle directory.
	Dir  string
	Step deployment.Step
	// Env entries are KEY=value and are added to the step's environment.
	Env []string
}

// Runner executes one Terraform step, streaming its output line by line,
// and returns what the step wrote to stdout.
type Runner interface {
	Run(ctx context.Context, req RunRequest, onLine LineFunc) ([]byte, error)
}

// StepError is returned when a Terraform step exits unsuccessfully.
type StepError struct {
	Step     string
	ExitCode int
	Err      error
}

func (e *StepError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("terraform %s exited with code %d", e.Step, e.ExitCode)
	}
	return fmt.Sprintf("terraform %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Local Runner
// =============================================================================

// LocalRunner runs the terraform binary as a subprocess.
type LocalRunner struct {
	Binary string
}

// NewLocalRunner creates a runner for a terraform binary on PATH or at a path.
func NewLocalRunner(binary string) *LocalRunner {
	if binary == "" {
		binary = "terraform"
	}
	return &LocalRunner{Binary: binary}
}

// Run implements Runner.
func (r *LocalRunner) Run(ctx context.Context, req RunRequest, onLine LineFunc) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.Binary, req.Step.Args...)
	cmd.Dir = req.Dir
	cmd.Env = append(append(os.Environ(), "TF_IN_AUTOMATION=1"), req.Env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &StepError{Step: req.Step.Name, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &StepError{Step: req.Step.Name, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &StepError{Step: req.Step.Name, Err: err}
	}

	var (
		captured bytes.Buffer
		mu       sync.Mutex
		wg       sync.WaitGroup
	)
	emit := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		if onLine != nil {
			onLine(line)
		}
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(io.TeeReader(stdout, &captured), emit)
	}()
	go func() {
		defer wg.Done()
		scanLines(stderr, emit)
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return captured.Bytes(), &StepError{Step: req.Step.Name, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return captured.Bytes(), &StepError{Step: req.Step.Name, Err: err}
	}
	return captured.Bytes(), nil
}

// scanLines feeds every line of r to emit. Long lines are allowed up to 1 MiB.
func scanLines(r io.Reader, emit func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		emit(scanner.Text())
	}
	// Drain whatever a scanner error left so the process never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}
