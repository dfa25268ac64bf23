package deployment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Variable Tests
// =============================================================================

func TestMissingVariables(t *testing.T) {
	errs := MissingVariables(testPlan(), map[string]string{"project_id": "  "})
	require.Len(t, errs, 2)
	assert.True(t, errors.Is(errs[0], ErrMissingVariable))
	assert.Contains(t, errs[0].Error(), "db_password")
	assert.Contains(t, errs[1].Error(), "project_id")

	assert.Empty(t, MissingVariables(testPlan(), map[string]string{"db_password": "s3cret", "project_id": "acme"}))
}

func TestVarArgs(t *testing.T) {
	values := map[string]string{
		"region":      "eu-west-1",
		"app_port":    "8080",
		"db_password": "s3cret",
		"undeclared":  "ignored",
	}

	assert.Equal(t, []string{"-var", "app_port=8080", "-var", "region=eu-west-1"}, VarArgs(testPlan(), values))
	assert.Equal(t, []string{"TF_VAR_db_password=s3cret"}, SensitiveEnv(testPlan(), values))
	assert.Empty(t, VarArgs(testPlan(), nil))
}
