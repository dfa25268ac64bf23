package decision

import (
	"context"
	"fmt"

	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/core/provider"
)

// =============================================================================
// Strategy
// =============================================================================

// Strategy produces a plan from a summary and an intent.
type Strategy interface {
	Plan(ctx context.Context, summary domain.RepositorySummary, intent domain.DeploymentIntent) (domain.Plan, error)
}

// Rules is the deterministic rule-table strategy. It never fails.
type Rules struct{}

// Plan implements Strategy.
func (Rules) Plan(_ context.Context, summary domain.RepositorySummary, intent domain.DeploymentIntent) (domain.Plan, error) {
	return Decide(summary, intent), nil
}

// =============================================================================
// Topology Precedence
// =============================================================================

// Rule is one row of the topology precedence table.
type Rule struct {
	Name     string
	Topology domain.Topology
	Reason   string
	Matches  func(domain.RepositorySummary, domain.DeploymentIntent) bool
}

// TopologyRules returns the precedence table, highest priority first.
func TopologyRules() []Rule {
	return []Rule{
		{
			Name:     "kubernetes",
			Topology: domain.TopologyKubernetesCluster,
			Reason:   "Kubernetes scaling requested: provisioning a managed Kubernetes cluster",
			Matches: func(_ domain.RepositorySummary, i domain.DeploymentIntent) bool {
				return i.Scaling == domain.ScalingKubernetes
			},
		},
		{
			Name:     "serverless",
			Topology: domain.TopologyServerless,
			Reason:   "Serverless execution requested: deploying as a function",
			Matches: func(_ domain.RepositorySummary, i domain.DeploymentIntent) bool {
				return i.ExecutionModel == domain.ExecutionServerless || i.MentionsServerless()
			},
		},
		{
			Name:     "static",
			Topology: domain.TopologyStaticSite,
			Reason:   "Static assets with no backend process or database: hosting as a static site",
			Matches: func(s domain.RepositorySummary, i domain.DeploymentIntent) bool {
				return s.HasStaticAssets && !s.HasBackend() && !s.NeedsDatabase && !i.DatabaseRequested
			},
		},
		{
			Name:     "autoscaling",
			Topology: domain.TopologyContainerService,
			Reason:   "Auto-scaling requested: running the application on a managed container service",
			Matches: func(_ domain.RepositorySummary, i domain.DeploymentIntent) bool {
				return i.Scaling == domain.ScalingAutoScaling
			},
		},
	}
}

const defaultTopologyReason = "No scaling, serverless or static-site signal: deploying to a single virtual machine"

// SelectTopology applies the precedence table and returns the topology of
// the first matching rule together with its rationale.
func SelectTopology(summary domain.RepositorySummary, intent domain.DeploymentIntent) (domain.Topology, string) {
	intent = intent.Normalized()
	for _, rule := range TopologyRules() {
		if rule.Matches(summary, intent) {
			return rule.Topology, rule.Reason
		}
	}
	return domain.TopologySingleVM, defaultTopologyReason
}

// =============================================================================
// Decide
// =============================================================================

// Decide builds the plan for a summary and an intent. It is total: ambiguous
// or missing signals fall back to documented defaults.
func Decide(summary domain.RepositorySummary, intent domain.DeploymentIntent) domain.Plan {
	intent = intent.Normalized()
	topology, reason := SelectTopology(summary, intent)
	return assemble(summary, intent, topology, reason)
}

// DecideTopology builds the plan for a topology chosen by another strategy.
// Names that are not a deployable topology fall back to the rule table, as
// does a static site for an application that needs a database.
func DecideTopology(summary domain.RepositorySummary, intent domain.DeploymentIntent, topology domain.Topology, reason string) domain.Plan {
	intent = intent.Normalized()
	if _, ok := domain.ParseTopology(string(topology)); !ok {
		return Decide(summary, intent)
	}
	if topology == domain.TopologyStaticSite && (summary.NeedsDatabase || intent.DatabaseRequested) {
		return Decide(summary, intent)
	}
	if reason == "" {
		reason = fmt.Sprintf("Topology %s selected by an alternate strategy", topology.DisplayName())
	}
	return assemble(summary, intent, topology, reason)
}

func resolveProvider(intent domain.DeploymentIntent) (domain.Provider, string) {
	if intent.CloudProvider == domain.ProviderUnspecified {
		return domain.ProviderAWS, "No cloud provider specified: defaulting to AWS"
	}
	return intent.CloudProvider, fmt.Sprintf("Cloud provider %s requested", intent.CloudProvider.DisplayName())
}

func assemble(summary domain.RepositorySummary, intent domain.DeploymentIntent, topology domain.Topology, topologyReason string) domain.Plan {
	p, providerReason := resolveProvider(intent)
	plan := domain.Plan{
		Provider:  p,
		Rationale: []string{providerReason},
	}

	if !p.Supported() {
		plan.Topology = domain.TopologyUnsupported
		plan.Resources = []domain.ResourceSpec{}
		plan.Variables = map[string]domain.Variable{}
		plan.Outputs = map[string]domain.Output{}
		plan.EstimatedMonthlyCost = domain.Cost{Currency: "USD"}
		plan.Rationale = append(plan.Rationale,
			topologyReason,
			fmt.Sprintf("%s has no resource templates (supported: AWS, GCP); no %s resources were generated",
				p.DisplayName(), topology.DisplayName()),
		)
		return plan
	}

	region := intent.Region
	regionReason := fmt.Sprintf("Region %s requested", region)
	if region == "" {
		region = provider.DefaultRegion(p)
		regionReason = fmt.Sprintf("No region specified: using %s default %s", p.DisplayName(), region)
	}

	b := newBuilder(summary, intent, p, topology, region)
	plan.Topology = topology
	plan.Region = region
	plan.InstanceType = b.instanceType
	plan.Rationale = append(plan.Rationale, regionReason, topologyReason)

	resources, notes := b.resources()
	plan.Resources = resources
	plan.Rationale = append(plan.Rationale, notes...)
	plan.ProviderConfig = b.templates.providerConfig()
	plan.Outputs = b.templates.outputs(b, resources)
	plan.Variables = deriveVariables(plan, b.variableCatalog())

	cost, costReason := estimateCost(plan)
	plan.EstimatedMonthlyCost = cost
	plan.Rationale = append(plan.Rationale, costReason)
	return plan
}
