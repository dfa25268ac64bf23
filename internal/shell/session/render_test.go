package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artpar/autodeploy/internal/core/decision"
	"github.com/artpar/autodeploy/internal/core/domain"
)

func TestRenderer_Cost(t *testing.T) {
	r := NewRenderer(false)

	tests := []struct {
		name string
		cost domain.Cost
		want string
	}{
		{"small", domain.Cost{Amount: 7.59, Currency: "USD"}, "USD 7.59"},
		{"grouped", domain.Cost{Amount: 1234.5, Currency: "USD"}, "USD 1,234.50"},
		{"lowercase code", domain.Cost{Amount: 10, Currency: "eur"}, "EUR 10.00"},
		{"missing code", domain.Cost{Amount: 0}, "USD 0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Cost(tt.cost))
		})
	}
}

func TestRenderer_HCLWithoutColor(t *testing.T) {
	r := NewRenderer(false)
	src := []byte("resource \"aws_instance\" \"app\" {\n  ami = var.ami_id\n}\n\n")
	assert.Equal(t, "resource \"aws_instance\" \"app\" {\n  ami = var.ami_id\n}", r.HCL(src))
}

func TestRenderer_HCLWithColor(t *testing.T) {
	r := NewRenderer(true)
	out := r.HCL([]byte(`variable "region" {}`))
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "region")
}

func TestRenderer_PlanUnsupported(t *testing.T) {
	r := NewRenderer(false)
	plan := decision.Decide(domain.RepositorySummary{}, domain.DeploymentIntent{CloudProvider: domain.ProviderAzure})

	out := r.Plan(plan)
	assert.Contains(t, out, "Unsupported")
	assert.NotContains(t, out, "Estimated cost")
	assert.NotContains(t, out, "Resources")
	assert.Contains(t, out, "no resource templates")
}

func TestRenderer_HistoryEmpty(t *testing.T) {
	assert.Equal(t, "No deployments yet.", NewRenderer(false).History(nil))
}

func TestRenderer_Outputs(t *testing.T) {
	out := NewRenderer(false).Outputs(map[string]string{"zone": "b", "app_url": "http://x"})
	assert.Less(t, strings.Index(out, "app_url"), strings.Index(out, "zone"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
