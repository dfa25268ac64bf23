package deployment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/autodeploy/internal/core/domain"
)

// =============================================================================
// Deployment Errors
// =============================================================================

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMissingVariable   = errors.New("required variable is missing")
)

// =============================================================================
// Deployment Status
// =============================================================================

// Status is where a deployment is in its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPlanned   Status = "planned"
	StatusApplying  Status = "applying"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ParseStatus maps a status name onto a Status.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusPlanned, StatusApplying, StatusSucceeded, StatusFailed:
		return st, true
	}
	return "", false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// validTransitions defines the allowed state transitions.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusPlanned, StatusFailed},
	StatusPlanned:   {StatusApplying, StatusFailed},
	StatusApplying:  {StatusSucceeded, StatusFailed},
	StatusSucceeded: {}, // Terminal state
	StatusFailed:    {}, // Terminal state
}

// ValidateTransition checks if a status transition is valid.
func ValidateTransition(from, to Status) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// =============================================================================
// Deployment Record
// =============================================================================

// Deployment is one run of the pipeline, from plan to apply.
type Deployment struct {
	ID            string          `json:"id"`
	Description   string          `json:"description"`
	RepositoryURL string          `json:"repository_url,omitempty"`
	Provider      domain.Provider `json:"provider"`
	Topology      domain.Topology `json:"topology"`
	Region        string          `json:"region,omitempty"`
	InstanceType  string          `json:"instance_type,omitempty"`
	EstimatedCost float64         `json:"estimated_cost"`
	// Dir is the bundle directory the configuration was written to.
	Dir string `json:"dir,omitempty"`
	// Digest is the blake3 digest of the bundle.
	Digest       string    `json:"digest,omitempty"`
	DryRun       bool      `json:"dry_run"`
	Status       Status    `json:"status"`
	AppURL       string    `json:"app_url,omitempty"`
	ArchiveURL   string    `json:"archive_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Values are the non-sensitive input variable values supplied with the
	// request. Sensitive values are never persisted.
	Values map[string]string `json:"values,omitempty"`
	// Outputs are the Terraform outputs after a successful apply.
	Outputs map[string]string `json:"outputs,omitempty"`
}

// New creates a pending deployment for a request.
func New(id, description, repositoryURL string, dryRun bool, now time.Time) *Deployment {
	return &Deployment{
		ID:            id,
		Description:   description,
		RepositoryURL: repositoryURL,
		DryRun:        dryRun,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Planned records the validated plan and the bundle it was written to.
func (d *Deployment) Planned(plan domain.Plan, dir, digest string, now time.Time) error {
	if err := d.Transition(StatusPlanned, now); err != nil {
		return err
	}
	d.Provider = plan.Provider
	d.Topology = plan.Topology
	d.Region = plan.Region
	d.InstanceType = plan.InstanceType
	d.EstimatedCost = plan.EstimatedMonthlyCost.Amount
	d.Dir = dir
	d.Digest = digest
	return nil
}

// Transition moves the deployment to a new status.
func (d *Deployment) Transition(to Status, now time.Time) error {
	if err := ValidateTransition(d.Status, to); err != nil {
		return err
	}
	d.Status = to
	d.UpdatedAt = now
	return nil
}

// Fail marks the deployment as failed with a reason. Failing a deployment
// that already finished is an invalid transition.
func (d *Deployment) Fail(reason string, now time.Time) error {
	if err := d.Transition(StatusFailed, now); err != nil {
		return err
	}
	d.ErrorMessage = reason
	return nil
}

// Succeed records the outputs of a completed apply.
func (d *Deployment) Succeed(outputs map[string]string, now time.Time) error {
	if err := d.Transition(StatusSucceeded, now); err != nil {
		return err
	}
	d.Outputs = outputs
	d.AppURL = AppURL(outputs)
	return nil
}
