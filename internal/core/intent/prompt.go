package intent

import (
	"fmt"
	"strings"

	"github.com/artpar/autodeploy/internal/core/domain"
)

// RequirementsPrompt asks a model for the structured requirements behind a
// deployment request.
func RequirementsPrompt(description string) string {
	return fmt.Sprintf(`Analyze this deployment description and extract structured deployment requirements.

Description: %q

Respond with ONLY a JSON object (no markdown, no explanation) of this shape:

{
  "cloud_provider": "AWS|GCP|Azure|DigitalOcean|Hetzner|Unspecified",
  "scaling": "Single|AutoScaling|LoadBalanced|Kubernetes",
  "execution_model": "VM|Container|Serverless",
  "database_requirements": ["PostgreSQL", "MySQL", "MongoDB", "Redis", "None"],
  "cdn": false,
  "region": "us-east-1 or null",
  "custom_domain": "example.com or null",
  "ssl_required": true
}

Rules:
- cloud_provider: "Unspecified" unless a provider is named
- scaling: "Single" unless auto-scaling, load balancing or Kubernetes is mentioned
- execution_model: "Serverless" for serverless, functions or lambda; "Container" for Docker or containers
- database_requirements: the databases mentioned, ["None"] if none
- cdn: true only if a CDN or edge caching is requested
- region: the cloud region if one is named, otherwise null
- custom_domain: the domain if one is mentioned, otherwise null
- ssl_required: true for production deployments or when HTTPS is mentioned`, description)
}

// TopologyPrompt asks a model to choose a topology for an analyzed
// repository and a parsed intent.
func TopologyPrompt(summary domain.RepositorySummary, intent domain.DeploymentIntent) string {
	var b strings.Builder
	b.WriteString("Choose the deployment topology for this application.\n\n")
	fmt.Fprintf(&b, "Request: %q\n", intent.Description)
	fmt.Fprintf(&b, "Language: %s\n", orUnknown(summary.PrimaryLanguage))
	fmt.Fprintf(&b, "Framework: %s\n", orUnknown(string(summary.Framework)))
	fmt.Fprintf(&b, "Start command: %s\n", orUnknown(summary.StartCommand))
	fmt.Fprintf(&b, "Needs database: %t\n", summary.NeedsDatabase || intent.DatabaseRequested)
	fmt.Fprintf(&b, "Has static assets: %t\n", summary.HasStaticAssets)
	fmt.Fprintf(&b, "Has Dockerfile: %t\n", summary.HasDockerfile)
	fmt.Fprintf(&b, "Requested scaling: %s\n", intent.Scaling)
	fmt.Fprintf(&b, "Requested execution model: %s\n\n", intent.ExecutionModel)

	b.WriteString("Topologies:\n")
	for _, t := range []domain.Topology{
		domain.TopologySingleVM,
		domain.TopologyContainerService,
		domain.TopologyKubernetesCluster,
		domain.TopologyServerless,
		domain.TopologyStaticSite,
	} {
		fmt.Fprintf(&b, "- %s (%s)\n", t, t.DisplayName())
	}
	b.WriteString("\nA static_site cannot run a backend process or use a database.\n")
	b.WriteString(`Respond with ONLY a JSON object: {"topology": "<one of the names above>", "reason": "<one sentence>"}`)
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
