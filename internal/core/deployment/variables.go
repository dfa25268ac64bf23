package deployment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/autodeploy/internal/core/domain"
)

// =============================================================================
// Variable Functions
// =============================================================================

// MissingVariables returns one error per required plan variable that has
// no value. Variables with a default are never missing.
func MissingVariables(plan domain.Plan, values map[string]string) []error {
	var errs []error
	for _, name := range plan.VariableNames() {
		if plan.Variables[name].Default != nil {
			continue
		}
		if v, ok := values[name]; !ok || strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingVariable, name))
		}
	}
	return errs
}

// VarArgs renders `-var name=value` arguments for the non-sensitive
// declared variables that have a value, sorted by name. Values for
// undeclared names are ignored.
//
// Example:
//
//	VarArgs(plan, map[string]string{"region": "eu-west-1"})
//	// Returns: []string{"-var", "region=eu-west-1"}
func VarArgs(plan domain.Plan, values map[string]string) []string {
	var args []string
	for _, name := range plan.VariableNames() {
		v, ok := values[name]
		if !ok || plan.Variables[name].Sensitive {
			continue
		}
		args = append(args, "-var", name+"="+v)
	}
	return args
}

// SensitiveEnv renders TF_VAR_ environment entries for the sensitive
// declared variables that have a value, so they never appear in argv.
func SensitiveEnv(plan domain.Plan, values map[string]string) []string {
	var env []string
	for _, name := range plan.VariableNames() {
		v, ok := values[name]
		if !ok || !plan.Variables[name].Sensitive {
			continue
		}
		env = append(env, "TF_VAR_"+name+"="+v)
	}
	sort.Strings(env)
	return env
}
