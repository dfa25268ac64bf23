// Package decision turns a repository summary and a deployment intent into
// an infrastructure plan.
//
// This package is part of the functional core: every function is pure and
// deterministic, so the same inputs always produce the same plan. The shell
// can swap in another Strategy (for example one backed by a language model)
// without touching the rule table.
//
// # Resolution order
//
//   - Provider: Unspecified resolves to AWS; anything but AWS or GCP yields
//     the Unsupported sentinel with no resources.
//   - Topology: the first matching row of TopologyRules wins.
//   - Resources: a compute-family root and a network security group, then a
//     managed database, object storage, CDN and registry as signalled.
//   - Variables and outputs are derived from what the resources reference.
//   - Cost: base rate per topology plus fixed increments.
//
// # Usage
//
//	plan := decision.Decide(summary, intent)
//	if err := validation.ValidatePlan(plan); err != nil {
//	    return err
//	}
package decision
