package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Parsing Tests
// =============================================================================

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want Provider
	}{
		{"aws", ProviderAWS},
		{"Amazon", ProviderAWS},
		{" GCP ", ProviderGCP},
		{"google cloud", ProviderGCP},
		{"Azure", ProviderAzure},
		{"digital ocean", ProviderDigitalOcean},
		{"hcloud", ProviderHetzner},
		{"", ProviderUnspecified},
		{"oracle", ProviderUnspecified},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseProvider(tt.in))
		})
	}
}

func TestProvider_Supported(t *testing.T) {
	assert.True(t, ProviderAWS.Supported())
	assert.True(t, ProviderGCP.Supported())
	assert.False(t, ProviderAzure.Supported())
	assert.False(t, ProviderDigitalOcean.Supported())
	assert.False(t, ProviderUnspecified.Supported())
}

func TestParseScaling(t *testing.T) {
	assert.Equal(t, ScalingKubernetes, ParseScaling("K8s"))
	assert.Equal(t, ScalingAutoScaling, ParseScaling("LoadBalanced"))
	assert.Equal(t, ScalingAutoScaling, ParseScaling("auto-scaling"))
	assert.Equal(t, ScalingSingle, ParseScaling("Single"))
	assert.Equal(t, ScalingSingle, ParseScaling("whatever"))
}

func TestParseExecutionModel(t *testing.T) {
	assert.Equal(t, ExecutionServerless, ParseExecutionModel("Lambda"))
	assert.Equal(t, ExecutionContainer, ParseExecutionModel("docker"))
	assert.Equal(t, ExecutionVM, ParseExecutionModel(""))
}

func TestParseFramework(t *testing.T) {
	assert.Equal(t, FrameworkNextJS, ParseFramework("Next.js"))
	assert.Equal(t, FrameworkSpring, ParseFramework("spring boot"))
	assert.Equal(t, FrameworkUnknown, ParseFramework("cobol"))
}

func TestParseTopology(t *testing.T) {
	got, ok := ParseTopology("static_site")
	assert.True(t, ok)
	assert.Equal(t, TopologyStaticSite, got)

	_, ok = ParseTopology("unsupported")
	assert.False(t, ok, "the sentinel is not selectable")
}

// =============================================================================
// Summary and Intent Tests
// =============================================================================

func TestRepositorySummary_HasBackend(t *testing.T) {
	assert.False(t, RepositorySummary{}.HasBackend())
	assert.False(t, RepositorySummary{StartCommand: "  "}.HasBackend())
	assert.True(t, RepositorySummary{StartCommand: "npm start"}.HasBackend())
	assert.False(t, RepositorySummary{Framework: FrameworkFlask}.HasBackend())
	assert.True(t, RepositorySummary{Framework: FrameworkFlask, StartCommand: "gunicorn app:app"}.HasBackend())
	assert.False(t, RepositorySummary{Framework: FrameworkReact}.HasBackend())
	assert.False(t, RepositorySummary{Framework: FrameworkStatic}.HasBackend())
}

func TestDeploymentIntent_Normalized(t *testing.T) {
	got := DeploymentIntent{Region: " eu-west-1 "}.Normalized()
	assert.Equal(t, ScalingSingle, got.Scaling)
	assert.Equal(t, ExecutionVM, got.ExecutionModel)
	assert.Equal(t, "eu-west-1", got.Region)
}

func TestDeploymentIntent_MentionsServerless(t *testing.T) {
	assert.True(t, DeploymentIntent{Description: "Deploy as a Serverless API"}.MentionsServerless())
	assert.False(t, DeploymentIntent{Description: "deploy on a VM"}.MentionsServerless())
}

// =============================================================================
// Value Tests
// =============================================================================

func TestRefsIn_Nested(t *testing.T) {
	v := Map{
		"tags": Map{"AttachedTo": Ref{Resource: "app", Attribute: "id"}},
		"cmd":  Template{String("host="), Ref{Resource: "db", Attribute: "address"}, VarRef{Name: "x"}},
		"list": List{Ref{Resource: "assets", Attribute: "arn"}},
	}

	refs := RefsIn(v)
	require.Len(t, refs, 3)
	// Map keys are walked in sorted order.
	assert.Equal(t, "db", refs[0].Resource)
	assert.Equal(t, "assets", refs[1].Resource)
	assert.Equal(t, "app", refs[2].Resource)

	vars := VarRefsIn(v)
	require.Len(t, vars, 1)
	assert.Equal(t, "x", vars[0].Name)
}

func TestRef_Path(t *testing.T) {
	r := Ref{Resource: "app", Attribute: "network_interface.0.access_config.0.nat_ip"}
	assert.Equal(t, []string{"network_interface", "0", "access_config", "0", "nat_ip"}, r.Path())
	assert.Equal(t, "app.network_interface.0.access_config.0.nat_ip", r.String())
}

func TestValue_MarshalJSON(t *testing.T) {
	attrs := map[string]Value{
		"port":  Ref{Resource: "db", Attribute: "port"},
		"pass":  VarRef{Name: "db_password"},
		"name":  String("app"),
		"size":  Int(20),
		"key":   Null{},
		"user":  Template{String("u-"), VarRef{Name: "user"}},
		"ports": Strings("80", "443"),
	}

	data, err := json.Marshal(attrs)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"port": {"ref": "db.port"},
		"pass": {"var": "db_password"},
		"name": "app",
		"size": 20,
		"key": null,
		"user": {"template": ["u-", {"var": "user"}]},
		"ports": ["80", "443"]
	}`, string(data))
}

// =============================================================================
// Plan Tests
// =============================================================================

func TestPlan_ResourceIncludesCompanions(t *testing.T) {
	plan := Plan{
		Resources: []ResourceSpec{
			{Kind: KindCompute, Name: "app"},
			{Kind: KindNetworkSecurityGroup, Name: "app_firewall", Companions: []ResourceSpec{
				{Kind: KindNetworkSecurityGroup, Name: "app_firewall_attachment"},
			}},
		},
	}

	_, ok := plan.Resource("app_firewall_attachment")
	assert.True(t, ok)
	assert.Len(t, plan.AllResources(), 3)
	assert.Equal(t, []ResourceKind{KindCompute, KindNetworkSecurityGroup}, plan.Kinds())
	assert.Equal(t, 1, plan.CountKind(KindNetworkSecurityGroup))
}

func TestUnsupportedProviderError(t *testing.T) {
	var err error = &UnsupportedProviderError{Provider: ProviderAzure}
	assert.True(t, errors.Is(err, ErrUnsupportedProvider))
	assert.Contains(t, err.Error(), "Azure")
}
