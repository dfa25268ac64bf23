// Package provider contains pure cloud provider catalogs and credential rules.
// This is part of the Functional Core - all functions are pure with no I/O.
package provider

import "github.com/artpar/autodeploy/internal/core/domain"

// Region represents a cloud provider region.
type Region struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// InstanceSize represents an instance type/size option.
type InstanceSize struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	CPUCores    float64 `json:"cpu_cores"`
	MemoryMB    int64   `json:"memory_mb"`
	PriceHourly float64 `json:"price_hourly"`
}

// Default regions used when an intent does not name one.
const (
	DefaultAWSRegion = "us-east-1"
	DefaultGCPRegion = "us-central1"
)

// DefaultAMI is the Ubuntu image used when no region-specific lookup ran.
const DefaultAMI = "ami-0c02fb55956c7d316"

// =============================================================================
// AWS Catalog
// =============================================================================

// AWSRegions returns the commonly used AWS regions.
func AWSRegions() []Region {
	return []Region{
		{ID: "us-east-1", Name: "US East (N. Virginia)", Available: true},
		{ID: "us-east-2", Name: "US East (Ohio)", Available: true},
		{ID: "us-west-1", Name: "US West (N. California)", Available: true},
		{ID: "us-west-2", Name: "US West (Oregon)", Available: true},
		{ID: "eu-west-1", Name: "EU (Ireland)", Available: true},
		{ID: "eu-west-2", Name: "EU (London)", Available: true},
		{ID: "eu-central-1", Name: "EU (Frankfurt)", Available: true},
		{ID: "ap-southeast-1", Name: "Asia Pacific (Singapore)", Available: true},
		{ID: "ap-northeast-1", Name: "Asia Pacific (Tokyo)", Available: true},
	}
}

// AWSSizes returns the EC2 instance types the engine chooses from.
func AWSSizes() []InstanceSize {
	return []InstanceSize{
		{ID: "t3.micro", Name: "t3.micro (2 vCPU, 1 GB)", CPUCores: 2, MemoryMB: 1024, PriceHourly: 0.0104},
		{ID: "t3.small", Name: "t3.small (2 vCPU, 2 GB)", CPUCores: 2, MemoryMB: 2048, PriceHourly: 0.0208},
		{ID: "t3.medium", Name: "t3.medium (2 vCPU, 4 GB)", CPUCores: 2, MemoryMB: 4096, PriceHourly: 0.0416},
	}
}

// =============================================================================
// GCP Catalog
// =============================================================================

// GCPRegions returns the commonly used GCP regions.
func GCPRegions() []Region {
	return []Region{
		{ID: "us-central1", Name: "Iowa", Available: true},
		{ID: "us-east1", Name: "South Carolina", Available: true},
		{ID: "us-west1", Name: "Oregon", Available: true},
		{ID: "europe-west1", Name: "Belgium", Available: true},
		{ID: "europe-west4", Name: "Netherlands", Available: true},
		{ID: "asia-southeast1", Name: "Singapore", Available: true},
		{ID: "asia-northeast1", Name: "Tokyo", Available: true},
	}
}

// GCPSizes returns the Compute Engine machine types the engine chooses from.
func GCPSizes() []InstanceSize {
	return []InstanceSize{
		{ID: "e2-micro", Name: "e2-micro (2 vCPU, 1 GB)", CPUCores: 2, MemoryMB: 1024, PriceHourly: 0.0076},
		{ID: "e2-small", Name: "e2-small (2 vCPU, 2 GB)", CPUCores: 2, MemoryMB: 2048, PriceHourly: 0.0151},
		{ID: "e2-medium", Name: "e2-medium (2 vCPU, 4 GB)", CPUCores: 2, MemoryMB: 4096, PriceHourly: 0.0302},
	}
}

// =============================================================================
// Catalog Lookup
// =============================================================================

// StaticRegions returns the static region catalog for a provider.
func StaticRegions(p domain.Provider) []Region {
	switch p {
	case domain.ProviderAWS:
		return AWSRegions()
	case domain.ProviderGCP:
		return GCPRegions()
	default:
		return nil
	}
}

// StaticSizes returns the static size catalog for a provider.
func StaticSizes(p domain.Provider) []InstanceSize {
	switch p {
	case domain.ProviderAWS:
		return AWSSizes()
	case domain.ProviderGCP:
		return GCPSizes()
	default:
		return nil
	}
}

// LookupSize returns the InstanceSize for a given provider and size ID, or nil if not found.
func LookupSize(p domain.Provider, sizeID string) *InstanceSize {
	for _, s := range StaticSizes(p) {
		if s.ID == sizeID {
			return &s
		}
	}
	return nil
}

// DefaultRegion returns the region used when the intent names none.
func DefaultRegion(p domain.Provider) string {
	switch p {
	case domain.ProviderAWS:
		return DefaultAWSRegion
	case domain.ProviderGCP:
		return DefaultGCPRegion
	default:
		return ""
	}
}

// DefaultZone returns the first zone of a GCP region.
func DefaultZone(region string) string {
	return region + "-a"
}

// InstanceTypeFor returns the size identifier for a topology.
//
//   - SingleVM: smallest general purpose size (t3.micro, e2-micro)
//   - ContainerService: t3.small, e2-small
//   - KubernetesCluster: node size t3.medium, e2-medium
//   - Serverless and StaticSite: managed, no instance size
func InstanceTypeFor(p domain.Provider, t domain.Topology) string {
	sizes := StaticSizes(p)
	if len(sizes) < 3 {
		return ""
	}
	switch t {
	case domain.TopologySingleVM:
		return sizes[0].ID
	case domain.TopologyContainerService:
		return sizes[1].ID
	case domain.TopologyKubernetesCluster:
		return sizes[2].ID
	case domain.TopologyServerless:
		if p == domain.ProviderAWS {
			return "lambda"
		}
		return "cloud-function"
	case domain.TopologyStaticSite:
		return "static-hosting"
	default:
		return ""
	}
}
