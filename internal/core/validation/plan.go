package validation

import (
	"strconv"
	"strings"

	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// =============================================================================
// Plan Validation
// =============================================================================

// ValidatePlan checks a plan for internal consistency. It returns nil for a
// valid plan, a *domain.UnsupportedProviderError for the unsupported
// sentinel, or an *InconsistentPlanError naming the first failed check.
func ValidatePlan(plan domain.Plan) error {
	if plan.IsUnsupported() || (plan.Provider != domain.ProviderUnspecified && !plan.Provider.Supported()) {
		if len(plan.Resources) > 0 {
			return inconsistent(CheckUnsupportedSentinel,
				"plan for unsupported provider %s carries %d resources", plan.Provider.DisplayName(), len(plan.Resources))
		}
		return &domain.UnsupportedProviderError{Provider: plan.Provider}
	}
	if plan.Provider == domain.ProviderUnspecified {
		return inconsistent(CheckProvider, "provider was not resolved")
	}

	checks := []func(domain.Plan) error{
		checkReferentialClosure,
		checkUniqueNames,
		checkResourceTypes,
		checkDeclaredVariables,
		checkNonEmpty,
		checkDatabaseWiring,
		checkSecurityGroupTargets,
		checkSensitiveVariables,
	}
	for _, check := range checks {
		if err := check(plan); err != nil {
			return err
		}
	}
	return nil
}

func checkResourceTypes(plan domain.Plan) error {
	for i, r := range plan.AllResources() {
		if strings.TrimSpace(r.Name) == "" {
			return inconsistent(CheckResourceType, "resource %d has no logical name", i)
		}
		if strings.TrimSpace(r.Type) == "" {
			return inconsistent(CheckResourceType, "resource %q has no provider type", r.Name)
		}
	}
	return nil
}

func checkReferentialClosure(plan domain.Plan) error {
	names := resourceNames(plan)

	var err error
	visit := func(where string, v domain.Value) {
		if err != nil {
			return
		}
		for _, ref := range domain.RefsIn(v) {
			if !names[ref.Resource] {
				err = inconsistent(CheckReferentialClosure, "%s references missing resource %q (%s)", where, ref.Resource, ref)
				return
			}
			if step, ok := badAttributeStep(ref); !ok {
				err = inconsistent(CheckReferentialClosure, "%s references %s with invalid attribute step %q", where, ref, step)
				return
			}
		}
	}

	forEachValue(plan, visit)
	return err
}

func checkUniqueNames(plan domain.Plan) error {
	seen := map[string]bool{}
	for _, r := range plan.AllResources() {
		if seen[r.Name] {
			return inconsistent(CheckUniqueNames, "logical name %q is used by more than one resource", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

func checkDeclaredVariables(plan domain.Plan) error {
	var err error
	visit := func(where string, v domain.Value) {
		if err != nil {
			return
		}
		for _, ref := range domain.VarRefsIn(v) {
			if _, ok := plan.Variables[ref.Name]; !ok {
				err = inconsistent(CheckDeclaredVariables, "%s uses undeclared variable %q", where, ref.Name)
				return
			}
		}
	}

	forEachValue(plan, visit)
	return err
}

func checkNonEmpty(plan domain.Plan) error {
	for _, r := range plan.Resources {
		if r.Kind.IsComputeFamily() || r.Kind == domain.KindObjectStorage {
			return nil
		}
	}
	return inconsistent(CheckNonEmpty, "plan provisions no compute or object storage resource")
}

func checkDatabaseWiring(plan domain.Plan) error {
	for _, db := range plan.Resources {
		if db.Kind != domain.KindManagedDatabase {
			continue
		}
		if !anyReferences(plan, domain.KindNetworkSecurityGroup, func(name string) bool { return name == db.Name }) {
			return inconsistent(CheckDatabaseWiring, "managed database %q is not referenced by any network security group", db.Name)
		}
	}
	return nil
}

func checkSecurityGroupTargets(plan domain.Plan) error {
	compute := map[string]bool{}
	for _, r := range plan.AllResources() {
		if r.Kind.IsComputeFamily() {
			compute[r.Name] = true
		}
	}
	if len(compute) == 0 {
		return nil
	}

	for _, sg := range plan.Resources {
		if sg.Kind != domain.KindNetworkSecurityGroup {
			continue
		}
		if !referencesAny(sg, compute) {
			return inconsistent(CheckSecurityGroupTarget, "network security group %q does not reference a compute resource", sg.Name)
		}
	}
	return nil
}

// =============================================================================
// Sensitive Variable Policy
// =============================================================================

var credentialMarkers = []string{
	"password", "passwd", "secret", "token", "private_key", "access_key", "api_key", "credentials",
}

// IsCredentialName reports whether an attribute or variable name looks like
// it carries a credential.
func IsCredentialName(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range credentialMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func checkSensitiveVariables(plan domain.Plan) error {
	for _, name := range plan.VariableNames() {
		if IsCredentialName(name) && !plan.Variables[name].Sensitive {
			return inconsistent(CheckSensitiveVariables, "variable %q holds a credential but is not sensitive", name)
		}
	}

	var err error
	for _, r := range plan.AllResources() {
		r.WalkAttributes(func(path string, v domain.Value) {
			if err != nil || !IsCredentialName(lastStep(path)) {
				return
			}
			if lit, ok := v.(domain.Literal); ok {
				if s, isString := lit.V.(string); !isString || s != "" {
					err = inconsistent(CheckSensitiveVariables, "%s.%s holds a literal credential", r.Name, path)
					return
				}
			}
			for _, ref := range domain.VarRefsIn(v) {
				if !plan.Variables[ref.Name].Sensitive {
					err = inconsistent(CheckSensitiveVariables, "%s.%s is backed by non-sensitive variable %q", r.Name, path, ref.Name)
					return
				}
			}
		})
		if err != nil {
			return err
		}
	}

	for _, name := range plan.OutputNames() {
		out := plan.Outputs[name]
		if out.Sensitive {
			continue
		}
		for _, ref := range domain.VarRefsIn(out.Value) {
			if plan.Variables[ref.Name].Sensitive {
				return inconsistent(CheckSensitiveVariables, "output %q exposes sensitive variable %q", name, ref.Name)
			}
		}
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func resourceNames(plan domain.Plan) map[string]bool {
	names := map[string]bool{}
	for _, r := range plan.AllResources() {
		names[r.Name] = true
	}
	return names
}

// forEachValue visits every value in the plan that may hold references:
// provider arguments, resource attributes, variable defaults and outputs.
func forEachValue(plan domain.Plan, fn func(where string, v domain.Value)) {
	for _, k := range domain.SortedKeys(plan.ProviderConfig) {
		fn("provider."+k, plan.ProviderConfig[k])
	}
	for _, r := range plan.AllResources() {
		r.WalkAttributes(func(path string, v domain.Value) {
			fn(r.Name+"."+path, v)
		})
	}
	for _, name := range plan.VariableNames() {
		if def := plan.Variables[name].Default; def != nil {
			fn("variable."+name, def)
		}
	}
	for _, name := range plan.OutputNames() {
		fn("output."+name, plan.Outputs[name].Value)
	}
}

// anyReferences reports whether a top-level resource of the given kind
// references a resource whose name satisfies match.
func anyReferences(plan domain.Plan, kind domain.ResourceKind, match func(string) bool) bool {
	for _, r := range plan.Resources {
		if r.Kind != kind {
			continue
		}
		found := false
		r.WalkAttributes(func(_ string, v domain.Value) {
			for _, ref := range domain.RefsIn(v) {
				if match(ref.Resource) {
					found = true
				}
			}
		})
		if found {
			return true
		}
	}
	return false
}

func referencesAny(r domain.ResourceSpec, names map[string]bool) bool {
	found := false
	r.WalkAttributes(func(_ string, v domain.Value) {
		for _, ref := range domain.RefsIn(v) {
			if names[ref.Resource] {
				found = true
			}
		}
	})
	return found
}

// badAttributeStep returns the first step of the reference's attribute path
// that is neither an identifier nor an index.
func badAttributeStep(ref domain.Ref) (string, bool) {
	for _, step := range ref.Path() {
		if hclsyntax.ValidIdentifier(step) {
			continue
		}
		if n, err := strconv.Atoi(step); err == nil && n >= 0 {
			continue
		}
		return step, false
	}
	return "", true
}

func lastStep(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}
