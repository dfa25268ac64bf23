package intent

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/artpar/autodeploy/internal/core/domain"
)

// =============================================================================
// Keyword Extraction
// =============================================================================

var (
	awsRegionPattern = regexp.MustCompile(`\b(us|eu|ap|sa|ca|me|af)-(east|west|north|south|central|northeast|southeast|northwest|southwest)-\d\b`)
	gcpRegionPattern = regexp.MustCompile(`\b(us|europe|asia|australia|northamerica|southamerica)-(east|west|north|south|central|northeast|southeast|northwest|southwest)\d\b`)
	domainPattern    = regexp.MustCompile(`\b(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+(?:com|io|dev|app|net|org|co|cloud|ai)\b`)
)

// ExtractKeywords derives an intent from the request text alone. It is
// deterministic and never fails.
func ExtractKeywords(description string) domain.DeploymentIntent {
	lower := strings.ToLower(description)
	words := wordSet(lower)
	has := func(terms ...string) bool {
		for _, term := range terms {
			if strings.Contains(term, " ") || strings.Contains(term, "-") {
				if strings.Contains(lower, term) {
					return true
				}
				continue
			}
			if words[term] {
				return true
			}
		}
		return false
	}

	intent := domain.DeploymentIntent{Description: description}

	switch {
	case has("gcp", "google cloud", "google", "gce", "gke", "cloud run"):
		intent.CloudProvider = domain.ProviderGCP
	case has("azure", "microsoft"):
		intent.CloudProvider = domain.ProviderAzure
	case has("digitalocean", "digital ocean"):
		intent.CloudProvider = domain.ProviderDigitalOcean
	case has("hetzner", "hcloud"):
		intent.CloudProvider = domain.ProviderHetzner
	case has("aws", "amazon", "ec2", "eks", "lambda", "cloudfront"):
		intent.CloudProvider = domain.ProviderAWS
	}

	switch {
	case has("kubernetes", "k8s", "eks", "gke"):
		intent.Scaling = domain.ScalingKubernetes
	case has("autoscaling", "auto-scaling", "auto scaling", "autoscale", "auto-scale", "load balanced", "load-balanced", "scalable", "high traffic"):
		intent.Scaling = domain.ScalingAutoScaling
	}

	switch {
	case has("serverless", "lambda", "faas", "cloud function", "cloud functions"):
		intent.ExecutionModel = domain.ExecutionServerless
	case has("container", "containers", "containerized", "docker", "cloud run", "app runner"):
		intent.ExecutionModel = domain.ExecutionContainer
	}

	intent.DatabaseRequested = has("database", "db", "postgres", "postgresql", "mysql", "mariadb", "mongodb", "redis", "sql", "rds", "cloud sql")
	intent.CDNRequested = has("cdn", "cloudfront", "content delivery", "edge caching")
	intent.SSL = has("ssl", "https", "tls", "production", "secure")

	if m := awsRegionPattern.FindString(lower); m != "" {
		intent.Region = m
	} else if m := gcpRegionPattern.FindString(lower); m != "" {
		intent.Region = m
	}
	if m := domainPattern.FindString(lower); m != "" {
		intent.Domain = m
	}
	return intent.Normalized()
}

func wordSet(s string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}
	return words
}
