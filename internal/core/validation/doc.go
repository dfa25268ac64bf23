// Package validation checks infrastructure plans before synthesis.
//
// This package is part of the functional core. ValidatePlan is pure: it
// reads the plan, allocates nothing shared and performs no I/O, so it is
// safe to call concurrently from independent sessions.
//
// # Checks
//
// Checks run in a fixed order and the first failure is returned:
//
//   - provider: the plan names a concrete provider
//   - resource_type: every resource has a provider type and logical name
//   - referential_closure: every Ref resolves to a resource in the plan
//   - unique_names: logical names are unique, companions included
//   - declared_variables: every VarRef names a declared variable
//   - non_empty: at least one compute-family or object storage resource
//   - database_wiring: each managed database is referenced by a security group
//   - security_group_target: each security group references its compute root
//   - sensitive_variables: credential-like values are backed by sensitive
//     variables and never by literals
//
// # Usage
//
//	if err := validation.ValidatePlan(plan); err != nil {
//	    var ipe *validation.InconsistentPlanError
//	    if errors.As(err, &ipe) {
//	        // log the plan, stop before synthesis
//	    }
//	}
package validation
