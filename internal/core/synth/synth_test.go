package synth

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/artpar/autodeploy/internal/core/decision"
	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func flaskPlan() domain.Plan {
	return decision.Decide(domain.RepositorySummary{
		RepositoryURL: "https://github.com/acme/flask-app",
		Framework:     domain.FrameworkFlask,
		EntryPort:     5000,
		Dependencies:  []string{"flask", "psycopg2"},
		NeedsDatabase: true,
		StartCommand:  "gunicorn app:app",
	}, domain.DeploymentIntent{CloudProvider: domain.ProviderAWS, DatabaseRequested: true})
}

func parseBody(t *testing.T, src []byte, name string) *hclsyntax.Body {
	t.Helper()
	file, diags := hclsyntax.ParseConfig(src, name, hcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors(), diags.Error())
	return file.Body.(*hclsyntax.Body)
}

func findBlock(body *hclsyntax.Body, typ string, labels ...string) *hclsyntax.Block {
	for _, b := range body.Blocks {
		if b.Type != typ || len(b.Labels) != len(labels) {
			continue
		}
		match := true
		for i := range labels {
			if b.Labels[i] != labels[i] {
				match = false
			}
		}
		if match {
			return b
		}
	}
	return nil
}

var varUse = regexp.MustCompile(`var\.([a-z0-9_]+)`)

// =============================================================================
// Synthesize Tests
// =============================================================================

func TestSynthesize_FlaskPostgresOnAWS(t *testing.T) {
	plan := flaskPlan()

	bundle, err := Synthesize(plan)
	require.NoError(t, err)
	require.NoError(t, bundle.Check())

	main := parseBody(t, bundle.Main, MainFile)
	require.NotNil(t, findBlock(main, "terraform"))
	require.NotNil(t, findBlock(main, "provider", "aws"))
	require.NotNil(t, findBlock(main, "resource", "aws_instance", "app"))
	require.NotNil(t, findBlock(main, "resource", "aws_security_group", "app_firewall"))
	require.NotNil(t, findBlock(main, "resource", "aws_network_interface_sg_attachment", "app_firewall_attachment"))
	require.NotNil(t, findBlock(main, "resource", "aws_db_instance", "db"))

	text := string(bundle.Main)
	assert.Contains(t, text, `"hashicorp/aws"`)
	assert.Contains(t, text, "aws_db_instance.db.port")
	assert.Contains(t, text, "aws_instance.app.primary_network_interface_id")

	vars := parseBody(t, bundle.Variables, VariablesFile)
	password := findBlock(vars, "variable", "db_password")
	require.NotNil(t, password)
	assert.Contains(t, password.Body.Attributes, "sensitive")
	assert.NotContains(t, password.Body.Attributes, "default")

	outputs := parseBody(t, bundle.Outputs, OutputsFile)
	require.NotNil(t, findBlock(outputs, "output", "instance_ip"))
	assert.Contains(t, string(bundle.Outputs), `"http://${aws_instance.app.public_ip}:${var.app_port}"`)
}

func TestSynthesize_EveryVariableDeclaredOnce(t *testing.T) {
	plan := flaskPlan()
	bundle, err := Synthesize(plan)
	require.NoError(t, err)

	vars := parseBody(t, bundle.Variables, VariablesFile)
	assert.Len(t, vars.Blocks, len(plan.Variables))
	for _, name := range plan.VariableNames() {
		assert.Equal(t, 1, strings.Count(string(bundle.Variables), `variable "`+name+`"`), name)
	}

	for _, src := range [][]byte{bundle.Main, bundle.Outputs} {
		for _, m := range varUse.FindAllStringSubmatch(string(src), -1) {
			assert.Contains(t, plan.Variables, m[1])
		}
	}

	outputs := parseBody(t, bundle.Outputs, OutputsFile)
	assert.Len(t, outputs.Blocks, len(plan.Outputs))
}

func TestSynthesize_Deterministic(t *testing.T) {
	first, err := Synthesize(flaskPlan())
	require.NoError(t, err)
	second, err := Synthesize(flaskPlan())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first.Digest(), second.Digest())
	assert.Len(t, first.Digest(), 64)
}

func TestSynthesize_StoredPlanReproducesBundle(t *testing.T) {
	plan := flaskPlan()
	first, err := Synthesize(plan)
	require.NoError(t, err)

	data, err := json.Marshal(plan)
	require.NoError(t, err)
	stored, err := domain.DecodePlan(data)
	require.NoError(t, err)

	second, err := Synthesize(stored)
	require.NoError(t, err)
	assert.Equal(t, first.Digest(), second.Digest())
}

func TestSynthesize_GCPIndexSteps(t *testing.T) {
	plan := decision.Decide(domain.RepositorySummary{}, domain.DeploymentIntent{CloudProvider: domain.ProviderGCP})

	bundle, err := Synthesize(plan)
	require.NoError(t, err)
	require.NoError(t, bundle.Check())

	assert.Contains(t, string(bundle.Main), `"hashicorp/google"`)
	assert.Contains(t, string(bundle.Outputs), "google_compute_instance.app.network_interface[0].access_config[0].nat_ip")

	main := parseBody(t, bundle.Main, MainFile)
	provider := findBlock(main, "provider", "google")
	require.NotNil(t, provider)
	assert.Contains(t, provider.Body.Attributes, "project")
}

func TestSynthesize_EveryDecisionParses(t *testing.T) {
	for _, p := range []domain.Provider{domain.ProviderAWS, domain.ProviderGCP} {
		for _, s := range []domain.Scaling{domain.ScalingSingle, domain.ScalingAutoScaling, domain.ScalingKubernetes} {
			for _, m := range []domain.ExecutionModel{domain.ExecutionVM, domain.ExecutionServerless} {
				for _, cdn := range []bool{false, true} {
					plan := decision.Decide(
						domain.RepositorySummary{NeedsDatabase: !cdn, HasStaticAssets: cdn},
						domain.DeploymentIntent{CloudProvider: p, Scaling: s, ExecutionModel: m, CDNRequested: cdn},
					)
					bundle, err := Synthesize(plan)
					require.NoError(t, err, "%s %s %s", p, s, m)
					assert.NoError(t, bundle.Check(), "%s %s %s", p, s, m)
				}
			}
		}
	}
}

func TestSynthesize_StringEscaping(t *testing.T) {
	raw := "say \"hi\" \\ ${x} %{y}\n\tend"
	plan := domain.Plan{
		Provider: domain.ProviderAWS,
		Topology: domain.TopologySingleVM,
		Resources: []domain.ResourceSpec{{
			Kind: domain.KindCompute,
			Type: "aws_instance",
			Name: "app",
		}},
		Variables: map[string]domain.Variable{},
		Outputs: map[string]domain.Output{
			"literal":  {Value: domain.String(raw)},
			"template": {Value: domain.Template{domain.String(raw), domain.Ref{Resource: "app", Attribute: "id"}}},
		},
	}

	bundle, err := Synthesize(plan)
	require.NoError(t, err)
	require.NoError(t, bundle.Check())
	assert.Contains(t, string(bundle.Outputs), `$${x}`)
	assert.Contains(t, string(bundle.Outputs), `%%{y}`)

	outputs := parseBody(t, bundle.Outputs, OutputsFile)
	literal := findBlock(outputs, "output", "literal")
	require.NotNil(t, literal)
	got, diags := literal.Body.Attributes["value"].Expr.Value(nil)
	require.False(t, diags.HasErrors())
	assert.Equal(t, cty.StringVal(raw), got)
}

func TestSynthesize_DollarBeforeInterpolation(t *testing.T) {
	ref := domain.Ref{Resource: "app", Attribute: "id"}
	plan := domain.Plan{
		Provider:  domain.ProviderAWS,
		Topology:  domain.TopologySingleVM,
		Resources: []domain.ResourceSpec{{Kind: domain.KindCompute, Type: "aws_instance", Name: "app"}},
		Variables: map[string]domain.Variable{},
		Outputs: map[string]domain.Output{
			"one": {Value: domain.Template{domain.String("cost $"), ref}},
			"two": {Value: domain.Template{domain.String("$$"), ref}},
		},
	}

	bundle, err := Synthesize(plan)
	require.NoError(t, err)
	require.NoError(t, bundle.Check())
	assert.NotContains(t, string(bundle.Outputs), `$${aws_instance`)

	ctx := &hcl.EvalContext{Variables: map[string]cty.Value{
		"aws_instance": cty.ObjectVal(map[string]cty.Value{
			"app": cty.ObjectVal(map[string]cty.Value{"id": cty.StringVal("i-1")}),
		}),
	}}
	outputs := parseBody(t, bundle.Outputs, OutputsFile)
	for name, want := range map[string]string{"one": "cost $i-1", "two": "$$i-1"} {
		block := findBlock(outputs, "output", name)
		require.NotNil(t, block, name)
		got, diags := block.Body.Attributes["value"].Expr.Value(ctx)
		require.False(t, diags.HasErrors(), diags.Error())
		assert.Equal(t, cty.StringVal(want), got, name)
	}
}

func TestSynthesize_VariableTypes(t *testing.T) {
	plan := decision.Decide(domain.RepositorySummary{}, domain.DeploymentIntent{Scaling: domain.ScalingKubernetes})

	bundle, err := Synthesize(plan)
	require.NoError(t, err)

	vars := parseBody(t, bundle.Variables, VariablesFile)
	subnets := findBlock(vars, "variable", "subnet_ids")
	require.NotNil(t, subnets)
	call, ok := subnets.Body.Attributes["type"].Expr.(*hclsyntax.FunctionCallExpr)
	require.True(t, ok)
	assert.Equal(t, "list", call.Name)

	keyName := findBlock(vars, "variable", "key_name")
	assert.Nil(t, keyName)
}

// =============================================================================
// Invariant Tests
// =============================================================================

func TestSynthesize_UndeclaredVariable(t *testing.T) {
	plan := flaskPlan()
	plan.Resources = append([]domain.ResourceSpec(nil), plan.Resources...)
	attrs := map[string]domain.Value{"ghost": domain.VarRef{Name: "not_declared"}}
	plan.Resources[0] = domain.ResourceSpec{Kind: domain.KindCompute, Type: "aws_instance", Name: "app", Attributes: attrs}

	_, err := Synthesize(plan)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSynthesisInvariant))
	assert.Contains(t, err.Error(), "not_declared")
}

func TestSynthesize_UnsupportedPlan(t *testing.T) {
	plan := decision.Decide(domain.RepositorySummary{}, domain.DeploymentIntent{CloudProvider: domain.ProviderAzure})

	bundle, err := Synthesize(plan)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSynthesisInvariant))
	assert.Nil(t, bundle.Main)
}

func TestSynthesize_DanglingRef(t *testing.T) {
	plan := flaskPlan()
	outputs := map[string]domain.Output{"ghost": {Value: domain.Ref{Resource: "ghost", Attribute: "id"}}}
	plan.Outputs = outputs

	_, err := Synthesize(plan)
	var sie *SynthesisInvariantError
	require.True(t, errors.As(err, &sie))
	assert.Equal(t, "output.ghost", sie.Where)
}

func TestSynthesize_InvalidRefAttribute(t *testing.T) {
	for _, attr := range []string{"", "id.", "network interface"} {
		plan := flaskPlan()
		plan.Outputs = map[string]domain.Output{"bad": {Value: domain.Ref{Resource: "app", Attribute: attr}}}

		_, err := Synthesize(plan)
		var sie *SynthesisInvariantError
		require.True(t, errors.As(err, &sie), "attribute %q", attr)
		assert.Equal(t, "output.bad", sie.Where)
	}
}

func TestBundle_CheckRejectsBrokenFile(t *testing.T) {
	b := Bundle{Main: []byte("resource \"x\" {"), Variables: nil, Outputs: nil}
	err := b.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), MainFile)
}
