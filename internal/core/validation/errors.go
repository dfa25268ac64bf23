package validation

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

// ErrInconsistentPlan is matched by every InconsistentPlanError.
var ErrInconsistentPlan = errors.New("inconsistent plan")

// Check names reported by InconsistentPlanError.
const (
	CheckProvider            = "provider"
	CheckResourceType        = "resource_type"
	CheckReferentialClosure  = "referential_closure"
	CheckUniqueNames         = "unique_names"
	CheckDeclaredVariables   = "declared_variables"
	CheckNonEmpty            = "non_empty"
	CheckDatabaseWiring      = "database_wiring"
	CheckSecurityGroupTarget = "security_group_target"
	CheckSensitiveVariables  = "sensitive_variables"
	CheckUnsupportedSentinel = "unsupported_sentinel"
)

// InconsistentPlanError reports a referential or policy violation in a plan.
// It always points at a defect in plan construction, not at user input.
type InconsistentPlanError struct {
	Check  string
	Detail string
}

func (e *InconsistentPlanError) Error() string {
	return fmt.Sprintf("inconsistent plan (%s): %s", e.Check, e.Detail)
}

func (e *InconsistentPlanError) Unwrap() error {
	return ErrInconsistentPlan
}

func inconsistent(check, format string, args ...any) *InconsistentPlanError {
	return &InconsistentPlanError{Check: check, Detail: fmt.Sprintf(format, args...)}
}
