package deployment

import (
	"errors"
	"testing"
	"time"

	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func testPlan() domain.Plan {
	return domain.Plan{
		Provider:             domain.ProviderAWS,
		Topology:             domain.TopologySingleVM,
		Region:               "us-east-1",
		InstanceType:         "t3.micro",
		EstimatedMonthlyCost: domain.Cost{Amount: 23.76, Currency: "USD"},
		Variables: map[string]domain.Variable{
			"region":      {Type: "string", Default: domain.String("us-east-1")},
			"app_port":    {Type: "number", Default: domain.Int(5000)},
			"db_password": {Type: "string", Sensitive: true},
			"key_name":    {Type: "string", Default: domain.Null{}},
			"project_id":  {Type: "string"},
		},
	}
}

// =============================================================================
// Record Tests
// =============================================================================

func TestNew(t *testing.T) {
	d := New("dep-1", "deploy my app", "https://github.com/acme/app", true, t0)

	assert.Equal(t, "dep-1", d.ID)
	assert.Equal(t, StatusPending, d.Status)
	assert.True(t, d.DryRun)
	assert.Equal(t, t0, d.CreatedAt)
	assert.Equal(t, t0, d.UpdatedAt)
	assert.Empty(t, d.Provider)
}

func TestPlanned(t *testing.T) {
	d := New("dep-1", "", "", false, t0)
	later := t0.Add(time.Second)

	require.NoError(t, d.Planned(testPlan(), "/out/deployment_20260102_150405", "abc", later))
	assert.Equal(t, StatusPlanned, d.Status)
	assert.Equal(t, domain.ProviderAWS, d.Provider)
	assert.Equal(t, domain.TopologySingleVM, d.Topology)
	assert.Equal(t, "us-east-1", d.Region)
	assert.Equal(t, "t3.micro", d.InstanceType)
	assert.Equal(t, 23.76, d.EstimatedCost)
	assert.Equal(t, "/out/deployment_20260102_150405", d.Dir)
	assert.Equal(t, "abc", d.Digest)
	assert.Equal(t, later, d.UpdatedAt)

	err := d.Planned(testPlan(), "", "", later)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_HappyPath(t *testing.T) {
	d := New("dep-1", "", "", false, t0)
	later := t0.Add(time.Minute)

	require.NoError(t, d.Planned(testPlan(), "dir", "digest", t0))
	require.NoError(t, d.Transition(StatusApplying, t0))
	require.NoError(t, d.Succeed(map[string]string{"instance_ip": "203.0.113.7"}, later))

	assert.Equal(t, StatusSucceeded, d.Status)
	assert.Equal(t, "http://203.0.113.7", d.AppURL)
	assert.Equal(t, later, d.UpdatedAt)
	assert.True(t, d.Status.IsTerminal())
}

func TestTransition_Invalid(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
	}{
		{StatusPending, StatusApplying},
		{StatusPending, StatusSucceeded},
		{StatusPlanned, StatusSucceeded},
		{StatusSucceeded, StatusFailed},
		{StatusFailed, StatusPlanned},
		{Status("bogus"), StatusPlanned},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
		})
	}
}

func TestFail(t *testing.T) {
	d := New("dep-1", "", "", false, t0)
	require.NoError(t, d.Transition(StatusPlanned, t0))
	require.NoError(t, d.Fail("terraform apply exited with status 1", t0))

	assert.Equal(t, StatusFailed, d.Status)
	assert.Equal(t, "terraform apply exited with status 1", d.ErrorMessage)

	err := d.Fail("again", t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, "terraform apply exited with status 1", d.ErrorMessage)
}

// =============================================================================
// Naming Tests
// =============================================================================

func TestDirName(t *testing.T) {
	none := func(string) bool { return false }
	assert.Equal(t, "deployment_20260102_150405", DirName(t0, none))

	taken := map[string]bool{
		"deployment_20260102_150405":   true,
		"deployment_20260102_150405_1": true,
	}
	assert.Equal(t, "deployment_20260102_150405_2", DirName(t0, func(n string) bool { return taken[n] }))

	local := t0.In(time.FixedZone("X", 3*3600))
	assert.Equal(t, "deployment_20260102_150405", DirName(local, none))
}

func TestArchiveAndContainerName(t *testing.T) {
	assert.Equal(t, "deployment_20260102_150405.tar.zst", ArchiveName("deployment_20260102_150405"))
	assert.Equal(t, "autodeploy_abc123_plan", ContainerName("abc123", "plan"))
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus(" Succeeded ")
	assert.True(t, ok)
	assert.Equal(t, StatusSucceeded, s)

	_, ok = ParseStatus("running")
	assert.False(t, ok)
}
