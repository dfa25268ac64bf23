package api

import (
	"time"

	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/shell/store"
)

// =============================================================================
// Request Types
// =============================================================================

// DeploymentRequest is the request body for planning or queueing a
// deployment.
type DeploymentRequest struct {
	Description string `json:"description"`
	// Repository is a git URL or owner/repo shorthand.
	Repository string `json:"repository,omitempty"`
	// Provider overrides the provider named in the description.
	Provider string            `json:"provider,omitempty"`
	DryRun   bool              `json:"dry_run,omitempty"`
	Values   map[string]string `json:"values,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// DeploymentResponse is the response for deployment operations.
type DeploymentResponse struct {
	ID            string            `json:"id"`
	Description   string            `json:"description"`
	RepositoryURL string            `json:"repository_url,omitempty"`
	Provider      string            `json:"provider"`
	Topology      string            `json:"topology"`
	Region        string            `json:"region,omitempty"`
	InstanceType  string            `json:"instance_type,omitempty"`
	EstimatedCost float64           `json:"estimated_cost"`
	Status        string            `json:"status"`
	DryRun        bool              `json:"dry_run"`
	Digest        string            `json:"digest,omitempty"`
	AppURL        string            `json:"app_url,omitempty"`
	ArchiveURL    string            `json:"archive_url,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	Outputs       map[string]string `json:"outputs,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// PlanResponse is the response for a synchronous plan.
type PlanResponse struct {
	Deployment DeploymentResponse `json:"deployment"`
	Plan       PlanSummary        `json:"plan"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// PlanSummary describes a decided plan without its resource bodies.
type PlanSummary struct {
	Provider             string   `json:"provider"`
	Topology             string   `json:"topology"`
	TopologyName         string   `json:"topology_name"`
	Region               string   `json:"region,omitempty"`
	InstanceType         string   `json:"instance_type,omitempty"`
	Resources            []string `json:"resources"`
	EstimatedMonthlyCost float64  `json:"estimated_monthly_cost"`
	Currency             string   `json:"currency"`
	Rationale            []string `json:"rationale"`
}

// ListDeploymentsResponse is the response for listing deployments.
type ListDeploymentsResponse struct {
	Deployments []DeploymentResponse `json:"deployments"`
	Total       int                  `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// LogsResponse is the response for reading captured Terraform output.
type LogsResponse struct {
	Lines []LogLineResponse `json:"lines"`
	// Next is the sequence to pass as "after" for the following page.
	Next int64 `json:"next"`
}

// LogLineResponse is one captured output line.
type LogLineResponse struct {
	Seq       int64     `json:"seq"`
	Step      string    `json:"step"`
	Line      string    `json:"line"`
	CreatedAt time.Time `json:"created_at"`
}

// CredentialStatusResponse describes the stored credential of one provider.
type CredentialStatusResponse struct {
	Provider   string `json:"provider"`
	Configured bool   `json:"configured"`
	Hint       string `json:"hint,omitempty"`
}

// ListCredentialsResponse is the response for the credential status listing.
type ListCredentialsResponse struct {
	Credentials []CredentialStatusResponse `json:"credentials"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// =============================================================================
// Conversions
// =============================================================================

func deploymentToResponse(d *deployment.Deployment) DeploymentResponse {
	return DeploymentResponse{
		ID:            d.ID,
		Description:   d.Description,
		RepositoryURL: d.RepositoryURL,
		Provider:      string(d.Provider),
		Topology:      string(d.Topology),
		Region:        d.Region,
		InstanceType:  d.InstanceType,
		EstimatedCost: d.EstimatedCost,
		Status:        string(d.Status),
		DryRun:        d.DryRun,
		Digest:        d.Digest,
		AppURL:        d.AppURL,
		ArchiveURL:    d.ArchiveURL,
		ErrorMessage:  d.ErrorMessage,
		Outputs:       d.Outputs,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func planToSummary(p domain.Plan) PlanSummary {
	s := PlanSummary{
		Provider:             string(p.Provider),
		Topology:             string(p.Topology),
		TopologyName:         p.Topology.DisplayName(),
		Region:               p.Region,
		InstanceType:         p.InstanceType,
		Resources:            make([]string, 0, len(p.Resources)),
		EstimatedMonthlyCost: p.EstimatedMonthlyCost.Amount,
		Currency:             p.EstimatedMonthlyCost.Currency,
		Rationale:            p.Rationale,
	}
	for _, r := range p.AllResources() {
		s.Resources = append(s.Resources, r.Type+"."+r.Name)
	}
	return s
}

func logLineToResponse(l store.LogLine) LogLineResponse {
	return LogLineResponse{
		Seq:       l.Seq,
		Step:      l.Step,
		Line:      l.Line,
		CreatedAt: l.CreatedAt,
	}
}
