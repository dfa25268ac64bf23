package store

import (
	"context"
	"time"

	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for credentials and deployment
// history.
type Store interface {
	// Credential operations. One credential per provider; Put replaces.
	PutCredential(ctx context.Context, cred *Credential) error
	GetCredential(ctx context.Context, provider domain.Provider) (*Credential, error)
	ListCredentials(ctx context.Context) ([]Credential, error)
	DeleteCredential(ctx context.Context, provider domain.Provider) error
	DeleteAllCredentials(ctx context.Context) (int, error)

	// Deployment operations
	CreateDeployment(ctx context.Context, d *deployment.Deployment) error
	GetDeployment(ctx context.Context, id string) (*deployment.Deployment, error)
	UpdateDeployment(ctx context.Context, d *deployment.Deployment) error
	ListDeployments(ctx context.Context, opts ListOptions) ([]deployment.Deployment, error)
	ListDeploymentsByStatus(ctx context.Context, status deployment.Status, opts ListOptions) ([]deployment.Deployment, error)
	// ClaimDeployment marks a pending deployment as taken by a worker. It
	// returns false when another worker claimed it first.
	ClaimDeployment(ctx context.Context, id, workerID string) (bool, error)
	SavePlan(ctx context.Context, id string, planJSON []byte) error
	GetPlan(ctx context.Context, id string) ([]byte, error)

	// Log operations
	AppendLog(ctx context.Context, deploymentID, step, line string) error
	ListLogs(ctx context.Context, deploymentID string, afterSeq int64, limit int) ([]LogLine, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Records
// =============================================================================

// Credential is a provider secret as stored: encrypted, with a non-secret
// hint for status listings.
type Credential struct {
	Provider domain.Provider `json:"provider"`
	// Ciphertext is the base64 sealed credential JSON.
	Ciphertext string `json:"-"`
	// Hint identifies the credential without revealing it, e.g. "AKIA...WXYZ".
	Hint      string    `json:"hint"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LogLine is one line of Terraform output captured during a deployment.
type LogLine struct {
	Seq          int64     `json:"seq"`
	DeploymentID string    `json:"deployment_id"`
	Step         string    `json:"step"`
	Line         string    `json:"line"`
	CreatedAt    time.Time `json:"created_at"`
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
