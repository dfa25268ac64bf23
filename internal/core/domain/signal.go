// Package domain contains the signal model shared by the decision engine,
// the plan validator and the template synthesizer.
// This is part of the Functional Core - all types are plain values with no I/O.
package domain

import (
	"slices"
	"strings"
)

// =============================================================================
// Framework
// =============================================================================

// Framework identifies the web/app framework detected in a repository.
type Framework string

const (
	FrameworkFlask   Framework = "flask"
	FrameworkDjango  Framework = "django"
	FrameworkFastAPI Framework = "fastapi"
	FrameworkExpress Framework = "express"
	FrameworkNextJS  Framework = "nextjs"
	FrameworkReact   Framework = "react"
	FrameworkNodeJS  Framework = "nodejs"
	FrameworkRails   Framework = "rails"
	FrameworkSpring  Framework = "spring"
	FrameworkGo      Framework = "go"
	FrameworkStatic  Framework = "static"
	FrameworkUnknown Framework = "unknown"
)

// ParseFramework maps a free-form framework name onto a known Framework.
func ParseFramework(s string) Framework {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flask":
		return FrameworkFlask
	case "django":
		return FrameworkDjango
	case "fastapi":
		return FrameworkFastAPI
	case "express", "expressjs":
		return FrameworkExpress
	case "next", "nextjs", "next.js":
		return FrameworkNextJS
	case "react", "reactjs":
		return FrameworkReact
	case "node", "nodejs", "node.js":
		return FrameworkNodeJS
	case "rails", "ruby on rails":
		return FrameworkRails
	case "spring", "spring boot", "springboot":
		return FrameworkSpring
	case "go", "golang":
		return FrameworkGo
	case "static", "html":
		return FrameworkStatic
	default:
		return FrameworkUnknown
	}
}

// =============================================================================
// Cloud Provider
// =============================================================================

// Provider identifies a cloud provider named by a deployment intent.
type Provider string

const (
	ProviderUnspecified  Provider = ""
	ProviderAWS          Provider = "aws"
	ProviderGCP          Provider = "gcp"
	ProviderAzure        Provider = "azure"
	ProviderDigitalOcean Provider = "digitalocean"
	ProviderHetzner      Provider = "hetzner"
)

// ParseProvider maps a provider name or common alias onto a Provider.
// Unknown names resolve to ProviderUnspecified.
func ParseProvider(s string) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aws", "amazon", "amazon web services", "ec2":
		return ProviderAWS
	case "gcp", "google", "google cloud", "google cloud platform", "gce":
		return ProviderGCP
	case "azure", "microsoft azure", "microsoft":
		return ProviderAzure
	case "digitalocean", "digital ocean", "do":
		return ProviderDigitalOcean
	case "hetzner", "hcloud", "hetzner cloud":
		return ProviderHetzner
	default:
		return ProviderUnspecified
	}
}

// Supported reports whether the provider has resource templates.
func (p Provider) Supported() bool {
	return p == ProviderAWS || p == ProviderGCP
}

// DisplayName returns a human-readable name for the provider.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderAWS:
		return "AWS"
	case ProviderGCP:
		return "GCP"
	case ProviderAzure:
		return "Azure"
	case ProviderDigitalOcean:
		return "DigitalOcean"
	case ProviderHetzner:
		return "Hetzner"
	case ProviderUnspecified:
		return "unspecified"
	default:
		return string(p)
	}
}

// =============================================================================
// Scaling and Execution Model
// =============================================================================

// Scaling is the scaling shape requested for the deployment.
type Scaling string

const (
	ScalingSingle      Scaling = "single"
	ScalingAutoScaling Scaling = "autoscaling"
	ScalingKubernetes  Scaling = "kubernetes"
)

// ParseScaling maps a scaling name onto a Scaling. Unknown names are Single.
func ParseScaling(s string) Scaling {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "autoscaling", "auto_scaling", "auto-scaling", "loadbalanced", "load_balanced":
		return ScalingAutoScaling
	case "kubernetes", "k8s":
		return ScalingKubernetes
	default:
		return ScalingSingle
	}
}

// ExecutionModel is how the application code is run.
type ExecutionModel string

const (
	ExecutionVM         ExecutionModel = "vm"
	ExecutionContainer  ExecutionModel = "container"
	ExecutionServerless ExecutionModel = "serverless"
)

// ParseExecutionModel maps an execution model name onto an ExecutionModel.
// Unknown names are VM.
func ParseExecutionModel(s string) ExecutionModel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "container", "docker":
		return ExecutionContainer
	case "serverless", "function", "lambda":
		return ExecutionServerless
	default:
		return ExecutionVM
	}
}

// =============================================================================
// Repository Summary
// =============================================================================

// RepositorySummary is what the repository analyzer learned about a checkout.
// It is constructed once per analyzed checkout and never modified afterwards.
type RepositorySummary struct {
	RepositoryURL   string    `json:"repository_url,omitempty"`
	PrimaryLanguage string    `json:"primary_language"`
	Framework       Framework `json:"framework"`
	// EntryPort is the port the application listens on; zero when unknown.
	EntryPort       int      `json:"entry_port,omitempty"`
	Dependencies    []string `json:"dependencies,omitempty"`
	NeedsDatabase   bool     `json:"needs_database"`
	HasStaticAssets bool     `json:"has_static_assets"`
	HasMigrations   bool     `json:"has_migrations"`
	HasDockerfile   bool     `json:"has_dockerfile"`
	BuildCommand    string   `json:"build_command,omitempty"`
	StartCommand    string   `json:"start_command,omitempty"`
	PackageManager  string   `json:"package_manager,omitempty"`
	StaticDir       string   `json:"static_dir,omitempty"`
	EnvVars         []string `json:"env_vars,omitempty"`
}

// HasBackend reports whether the repository declares a server process to
// run. The framework alone does not count: a NextJS or React project without
// a start command is served as built assets.
func (s RepositorySummary) HasBackend() bool {
	return strings.TrimSpace(s.StartCommand) != ""
}

// HasDependency reports whether name is a declared dependency.
func (s RepositorySummary) HasDependency(name string) bool {
	return slices.Contains(s.Dependencies, strings.ToLower(name))
}

// =============================================================================
// Deployment Intent
// =============================================================================

// DeploymentIntent is the structured form of a natural-language request.
type DeploymentIntent struct {
	// Description is the original request text.
	Description       string         `json:"description,omitempty"`
	CloudProvider     Provider       `json:"cloud_provider"`
	Scaling           Scaling        `json:"scaling"`
	ExecutionModel    ExecutionModel `json:"execution_model"`
	DatabaseRequested bool           `json:"database_requested"`
	CDNRequested      bool           `json:"cdn_requested"`
	Region            string         `json:"region,omitempty"`
	Domain            string         `json:"domain,omitempty"`
	SSL               bool           `json:"ssl,omitempty"`
}

// MentionsServerless reports whether the request text asks for serverless.
func (i DeploymentIntent) MentionsServerless() bool {
	return strings.Contains(strings.ToLower(i.Description), "serverless")
}

// Normalized fills zero-valued enums with their defaults.
func (i DeploymentIntent) Normalized() DeploymentIntent {
	if i.Scaling == "" {
		i.Scaling = ScalingSingle
	}
	if i.ExecutionModel == "" {
		i.ExecutionModel = ExecutionVM
	}
	i.Region = strings.TrimSpace(i.Region)
	return i
}
