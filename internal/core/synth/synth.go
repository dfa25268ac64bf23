package synth

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"github.com/zeebo/blake3"
)

// File names inside a bundle directory.
const (
	MainFile      = "main.tf"
	VariablesFile = "variables.tf"
	OutputsFile   = "outputs.tf"
)

// =============================================================================
// Bundle
// =============================================================================

// Bundle is the synthesized configuration: three self-consistent files.
type Bundle struct {
	Main      []byte
	Variables []byte
	Outputs   []byte
}

// File is one named file of a bundle.
type File struct {
	Name    string
	Content []byte
}

// Files returns the bundle files in a fixed order.
func (b Bundle) Files() []File {
	return []File{
		{Name: MainFile, Content: b.Main},
		{Name: VariablesFile, Content: b.Variables},
		{Name: OutputsFile, Content: b.Outputs},
	}
}

// Digest returns a hex BLAKE3 digest over the file names and contents.
func (b Bundle) Digest() string {
	h := blake3.New()
	for _, f := range b.Files() {
		fmt.Fprintf(h, "%s\x00%d\x00", f.Name, len(f.Content))
		h.Write(f.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Check parses every file of the bundle and reports the first syntax error.
func (b Bundle) Check() error {
	for _, f := range b.Files() {
		if _, diags := hclsyntax.ParseConfig(f.Content, f.Name, hcl.Pos{Line: 1, Column: 1}); diags.HasErrors() {
			return fmt.Errorf("%s: %w", f.Name, diags)
		}
	}
	return nil
}

// =============================================================================
// Synthesize
// =============================================================================

type providerSpec struct {
	local   string
	source  string
	version string
}

var providerSpecs = map[domain.Provider]providerSpec{
	domain.ProviderAWS: {local: "aws", source: "hashicorp/aws", version: "~> 5.0"},
	domain.ProviderGCP: {local: "google", source: "hashicorp/google", version: "~> 5.0"},
}

const requiredTerraformVersion = ">= 1.3.0"

// Synthesize renders the plan. Resources keep plan order; attributes, map
// keys, variables and outputs are sorted so output is byte-stable.
func Synthesize(plan domain.Plan) (Bundle, error) {
	if plan.IsUnsupported() {
		return Bundle{}, invariant("", "plan for %s has no resource templates", plan.Provider.DisplayName())
	}
	spec, ok := providerSpecs[plan.Provider]
	if !ok {
		return Bundle{}, invariant("", "no provider configuration for %q", plan.Provider)
	}

	r, err := newRenderer(plan)
	if err != nil {
		return Bundle{}, err
	}

	main, err := r.main(plan, spec)
	if err != nil {
		return Bundle{}, err
	}
	variables, err := r.variablesFile(plan)
	if err != nil {
		return Bundle{}, err
	}
	outputs, err := r.outputsFile(plan)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{Main: main, Variables: variables, Outputs: outputs}, nil
}

func (r renderer) main(plan domain.Plan, spec providerSpec) ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	tf := body.AppendNewBlock("terraform", nil).Body()
	tf.SetAttributeValue("required_version", cty.StringVal(requiredTerraformVersion))
	providers := tf.AppendNewBlock("required_providers", nil).Body()
	providers.SetAttributeValue(spec.local, cty.ObjectVal(map[string]cty.Value{
		"source":  cty.StringVal(spec.source),
		"version": cty.StringVal(spec.version),
	}))
	body.AppendNewline()

	providerBody := body.AppendNewBlock("provider", []string{spec.local}).Body()
	if err := r.setAttributes(providerBody, "provider", plan.ProviderConfig); err != nil {
		return nil, err
	}

	for _, res := range plan.AllResources() {
		body.AppendNewline()
		block := body.AppendNewBlock("resource", []string{res.Type, res.Name})
		where := res.Type + "." + res.Name
		if err := r.setAttributes(block.Body(), where, res.Attributes); err != nil {
			return nil, err
		}
		if err := r.appendBlocks(block.Body(), where, res.Blocks); err != nil {
			return nil, err
		}
	}
	return hclwrite.Format(f.Bytes()), nil
}

func (r renderer) setAttributes(body *hclwrite.Body, where string, attrs map[string]domain.Value) error {
	for _, k := range domain.SortedKeys(attrs) {
		toks, err := r.tokens(where+"."+k, attrs[k])
		if err != nil {
			return err
		}
		body.SetAttributeRaw(k, toks)
	}
	return nil
}

func (r renderer) appendBlocks(body *hclwrite.Body, where string, blocks []domain.Block) error {
	for _, b := range blocks {
		child := body.AppendNewBlock(b.Type, nil).Body()
		path := where + "." + b.Type
		if err := r.setAttributes(child, path, b.Attributes); err != nil {
			return err
		}
		if err := r.appendBlocks(child, path, b.Blocks); err != nil {
			return err
		}
	}
	return nil
}

func (r renderer) variablesFile(plan domain.Plan) ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	for i, name := range plan.VariableNames() {
		if i > 0 {
			body.AppendNewline()
		}
		v := plan.Variables[name]
		vb := body.AppendNewBlock("variable", []string{name}).Body()
		if v.Description != "" {
			vb.SetAttributeValue("description", cty.StringVal(v.Description))
		}
		vb.SetAttributeRaw("type", typeTokens(v.Type))
		if v.Default != nil {
			toks, err := r.tokens("variable."+name+".default", v.Default)
			if err != nil {
				return nil, err
			}
			vb.SetAttributeRaw("default", toks)
		}
		if v.Sensitive {
			vb.SetAttributeValue("sensitive", cty.True)
		}
	}
	return hclwrite.Format(f.Bytes()), nil
}

func (r renderer) outputsFile(plan domain.Plan) ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	for i, name := range plan.OutputNames() {
		if i > 0 {
			body.AppendNewline()
		}
		out := plan.Outputs[name]
		ob := body.AppendNewBlock("output", []string{name}).Body()
		if out.Description != "" {
			ob.SetAttributeValue("description", cty.StringVal(out.Description))
		}
		toks, err := r.tokens("output."+name, out.Value)
		if err != nil {
			return nil, err
		}
		ob.SetAttributeRaw("value", toks)
		if out.Sensitive {
			ob.SetAttributeValue("sensitive", cty.True)
		}
	}
	return hclwrite.Format(f.Bytes()), nil
}

// Summary returns a one-line description of the bundle for logs.
func (b Bundle) Summary() string {
	var parts []string
	for _, f := range b.Files() {
		parts = append(parts, fmt.Sprintf("%s=%dB", f.Name, len(f.Content)))
	}
	return strings.Join(parts, " ")
}
