package domain

import (
	"fmt"
	"sort"
)

// =============================================================================
// Topology
// =============================================================================

// Topology is the high-level shape of the chosen infrastructure.
type Topology string

const (
	TopologySingleVM          Topology = "single_vm"
	TopologyContainerService  Topology = "container_service"
	TopologyKubernetesCluster Topology = "kubernetes_cluster"
	TopologyServerless        Topology = "serverless"
	TopologyStaticSite        Topology = "static_site"
	// TopologyUnsupported marks a plan for a provider without resource templates.
	TopologyUnsupported Topology = "unsupported"
)

// ParseTopology maps a topology name onto a Topology.
// It returns false for names that are not a deployable topology.
func ParseTopology(s string) (Topology, bool) {
	switch Topology(s) {
	case TopologySingleVM, TopologyContainerService, TopologyKubernetesCluster,
		TopologyServerless, TopologyStaticSite:
		return Topology(s), true
	}
	return "", false
}

// DisplayName returns a human-readable name for the topology.
func (t Topology) DisplayName() string {
	switch t {
	case TopologySingleVM:
		return "Single VM"
	case TopologyContainerService:
		return "Container service"
	case TopologyKubernetesCluster:
		return "Kubernetes cluster"
	case TopologyServerless:
		return "Serverless"
	case TopologyStaticSite:
		return "Static site"
	case TopologyUnsupported:
		return "Unsupported"
	default:
		return string(t)
	}
}

// =============================================================================
// Resources
// =============================================================================

// ResourceKind classifies a resource independently of its provider type.
type ResourceKind string

const (
	KindCompute              ResourceKind = "compute"
	KindNetworkSecurityGroup ResourceKind = "network_security_group"
	KindManagedDatabase      ResourceKind = "managed_database"
	KindObjectStorage        ResourceKind = "object_storage"
	KindCdnDistribution      ResourceKind = "cdn_distribution"
	KindContainerRegistry    ResourceKind = "container_registry"
	KindFunctionApp          ResourceKind = "function_app"
	KindClusterControlPlane  ResourceKind = "cluster_control_plane"
)

// IsComputeFamily reports whether resources of this kind run application code.
func (k ResourceKind) IsComputeFamily() bool {
	switch k {
	case KindCompute, KindFunctionApp, KindClusterControlPlane:
		return true
	}
	return false
}

// Block is a nested configuration block inside a resource, such as an
// ingress rule.
type Block struct {
	Type       string           `json:"type"`
	Attributes map[string]Value `json:"attributes,omitempty"`
	Blocks     []Block          `json:"blocks,omitempty"`
}

// ResourceSpec declares one infrastructure resource.
type ResourceSpec struct {
	Kind ResourceKind `json:"kind"`
	// Type is the provider-native resource type, e.g. "aws_instance".
	Type string `json:"type"`
	// Name is the logical name, unique within a plan.
	Name       string           `json:"name"`
	Attributes map[string]Value `json:"attributes,omitempty"`
	Blocks     []Block          `json:"blocks,omitempty"`
	// Companions are provider resources that only exist to wire this one,
	// such as a security group attachment. They are emitted right after
	// their owner and share its kind.
	Companions []ResourceSpec `json:"companions,omitempty"`
}

// WalkAttributes calls fn for every attribute of the resource and of its
// nested blocks. The path names the attribute, e.g. "ingress[1].from_port".
// Companions are not visited.
func (r ResourceSpec) WalkAttributes(fn func(path string, v Value)) {
	walkAttributes("", r.Attributes, r.Blocks, fn)
}

func walkAttributes(prefix string, attrs map[string]Value, blocks []Block, fn func(string, Value)) {
	for _, k := range SortedKeys(attrs) {
		fn(prefix+k, attrs[k])
	}
	seen := map[string]int{}
	for _, b := range blocks {
		idx := seen[b.Type]
		seen[b.Type]++
		walkAttributes(fmt.Sprintf("%s%s[%d].", prefix, b.Type, idx), b.Attributes, b.Blocks, fn)
	}
}

// =============================================================================
// Variables, Outputs and Cost
// =============================================================================

// Variable is an input variable of the generated configuration.
type Variable struct {
	Description string `json:"description"`
	// Type is a type constraint such as "string", "number" or "list(string)".
	Type string `json:"type"`
	// Default is nil for required variables.
	Default   Value `json:"default,omitempty"`
	Sensitive bool  `json:"sensitive,omitempty"`
}

// Output exposes a resource attribute after apply.
type Output struct {
	Value       Value  `json:"value"`
	Description string `json:"description"`
	Sensitive   bool   `json:"sensitive,omitempty"`
}

// Cost is a monthly cost estimate.
type Cost struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// =============================================================================
// Infrastructure Plan
// =============================================================================

// Plan is the decision engine's output. It is handed by value to the
// validator and the synthesizer and never modified after validation.
type Plan struct {
	Provider Provider `json:"provider"`
	Topology Topology `json:"topology"`
	Region   string   `json:"region,omitempty"`
	// InstanceType is the size chosen for the compute root, for display.
	InstanceType string `json:"instance_type,omitempty"`
	// ProviderConfig holds the provider block arguments.
	ProviderConfig       map[string]Value    `json:"provider_config,omitempty"`
	Resources            []ResourceSpec      `json:"resources"`
	Variables            map[string]Variable `json:"variables"`
	Outputs              map[string]Output   `json:"outputs"`
	EstimatedMonthlyCost Cost                `json:"estimated_monthly_cost"`
	Rationale            []string            `json:"rationale"`
}

// IsUnsupported reports whether the plan carries the unsupported sentinel.
func (p Plan) IsUnsupported() bool {
	return p.Topology == TopologyUnsupported
}

// AllResources returns every resource including companions, in emission order.
func (p Plan) AllResources() []ResourceSpec {
	var out []ResourceSpec
	for _, r := range p.Resources {
		out = append(out, r)
		out = append(out, r.Companions...)
	}
	return out
}

// Resource looks up a resource or companion by logical name.
func (p Plan) Resource(name string) (ResourceSpec, bool) {
	for _, r := range p.AllResources() {
		if r.Name == name {
			return r, true
		}
	}
	return ResourceSpec{}, false
}

// Kinds returns the kind of each top-level resource in order.
func (p Plan) Kinds() []ResourceKind {
	kinds := make([]ResourceKind, len(p.Resources))
	for i, r := range p.Resources {
		kinds[i] = r.Kind
	}
	return kinds
}

// CountKind returns how many top-level resources have the given kind.
func (p Plan) CountKind(kind ResourceKind) int {
	n := 0
	for _, r := range p.Resources {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

// VariableNames returns the declared variable names in sorted order.
func (p Plan) VariableNames() []string {
	names := make([]string, 0, len(p.Variables))
	for name := range p.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OutputNames returns the declared output names in sorted order.
func (p Plan) OutputNames() []string {
	names := make([]string, 0, len(p.Outputs))
	for name := range p.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedKeys returns the keys of an attribute map in sorted order.
func SortedKeys(attrs map[string]Value) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
