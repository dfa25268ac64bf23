package deployment

// =============================================================================
// Terraform Lifecycle Planning
// =============================================================================

// PlanFile is the saved plan written by the plan step and consumed by apply.
const PlanFile = "tfplan"

// Step is one Terraform invocation.
type Step struct {
	// Name is the Terraform subcommand.
	Name string
	// Args are the full arguments, subcommand first.
	Args []string
	// Mutating steps change real infrastructure.
	Mutating bool
}

// Steps determines the Terraform invocations for a deployment.
//
// A dry run stops after plan. Otherwise the saved plan is applied and the
// outputs are read back as JSON:
//   - init → validate → plan
//   - init → validate → plan → apply → output
//
// Example:
//
//	for _, step := range Steps(false, VarArgs(plan, values)) {
//	    runner.Run(ctx, dir, step)
//	}
func Steps(dryRun bool, varArgs []string) []Step {
	planArgs := append([]string{"plan", "-input=false", "-no-color", "-out=" + PlanFile}, varArgs...)
	steps := []Step{
		{Name: "init", Args: []string{"init", "-input=false", "-no-color"}},
		{Name: "validate", Args: []string{"validate", "-no-color"}},
		{Name: "plan", Args: planArgs},
	}
	if dryRun {
		return steps
	}
	return append(steps,
		Step{Name: "apply", Args: []string{"apply", "-input=false", "-no-color", "-auto-approve", PlanFile}, Mutating: true},
		Step{Name: "output", Args: []string{"output", "-json"}},
	)
}
