package synth

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// =============================================================================
// Value Rendering
// =============================================================================

// renderer turns plan values into HCL tokens. It resolves logical resource
// names to provider types and refuses variables the plan does not declare.
type renderer struct {
	types     map[string]string
	variables map[string]domain.Variable
}

func newRenderer(plan domain.Plan) (renderer, error) {
	r := renderer{types: map[string]string{}, variables: plan.Variables}
	for _, res := range plan.AllResources() {
		if _, dup := r.types[res.Name]; dup {
			return renderer{}, invariant(res.Name, "logical name declared twice")
		}
		r.types[res.Name] = res.Type
	}
	return r, nil
}

func (r renderer) tokens(where string, v domain.Value) (hclwrite.Tokens, error) {
	switch t := v.(type) {
	case nil, domain.Null:
		return hclwrite.TokensForValue(cty.NullVal(cty.DynamicPseudoType)), nil

	case domain.Literal:
		val, err := literalValue(t)
		if err != nil {
			return nil, invariant(where, "%v", err)
		}
		return hclwrite.TokensForValue(val), nil

	case domain.Ref:
		typ, ok := r.types[t.Resource]
		if !ok {
			return nil, invariant(where, "reference to undeclared resource %q", t.Resource)
		}
		traversal := hcl.Traversal{hcl.TraverseRoot{Name: typ}, hcl.TraverseAttr{Name: t.Resource}}
		for _, step := range t.Path() {
			if n, err := strconv.Atoi(step); err == nil && n >= 0 {
				traversal = append(traversal, hcl.TraverseIndex{Key: cty.NumberIntVal(int64(n))})
				continue
			}
			if !hclsyntax.ValidIdentifier(step) {
				return nil, invariant(where, "reference %s has invalid attribute step %q", t, step)
			}
			traversal = append(traversal, hcl.TraverseAttr{Name: step})
		}
		return hclwrite.TokensForTraversal(traversal), nil

	case domain.VarRef:
		if _, ok := r.variables[t.Name]; !ok {
			return nil, invariant(where, "variable %q is used but not declared", t.Name)
		}
		return hclwrite.TokensForTraversal(hcl.Traversal{
			hcl.TraverseRoot{Name: "var"},
			hcl.TraverseAttr{Name: t.Name},
		}), nil

	case domain.List:
		items := make([]hclwrite.Tokens, 0, len(t))
		for i, item := range t {
			toks, err := r.tokens(fmt.Sprintf("%s[%d]", where, i), item)
			if err != nil {
				return nil, err
			}
			items = append(items, toks)
		}
		return hclwrite.TokensForTuple(items), nil

	case domain.Map:
		attrs := make([]hclwrite.ObjectAttrTokens, 0, len(t))
		for _, k := range t.Keys() {
			toks, err := r.tokens(where+"."+k, t[k])
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, hclwrite.ObjectAttrTokens{Name: keyTokens(k), Value: toks})
		}
		return hclwrite.TokensForObject(attrs), nil

	case domain.Template:
		return r.template(where, t)
	}
	return nil, invariant(where, "unsupported value %T", v)
}

// template renders a quoted template with ${...} interpolations.
func (r renderer) template(where string, t domain.Template) (hclwrite.Tokens, error) {
	toks := hclwrite.Tokens{{Type: hclsyntax.TokenOQuote, Bytes: []byte(`"`)}}
	for _, part := range t {
		switch p := part.(type) {
		case domain.Literal:
			s, ok := p.V.(string)
			if !ok {
				s = fmt.Sprint(p.V)
			}
			toks = append(toks, quotedLit(s)...)
		case domain.Ref, domain.VarRef:
			inner, err := r.tokens(where, p)
			if err != nil {
				return nil, err
			}
			toks = escapeTrailingDollar(toks)
			toks = append(toks, &hclwrite.Token{Type: hclsyntax.TokenTemplateInterp, Bytes: []byte("${")})
			toks = append(toks, inner...)
			toks = append(toks, &hclwrite.Token{Type: hclsyntax.TokenTemplateSeqEnd, Bytes: []byte("}")})
		default:
			return nil, invariant(where, "template part %T cannot be interpolated", part)
		}
	}
	toks = append(toks, &hclwrite.Token{Type: hclsyntax.TokenCQuote, Bytes: []byte(`"`)})
	return toks, nil
}

// quotedLit returns the escaped body of a string literal: backslashes,
// quotes, control characters and the ${ and %{ introducers.
func quotedLit(s string) hclwrite.Tokens {
	full := hclwrite.TokensForValue(cty.StringVal(s))
	return full[1 : len(full)-1]
}

// escapeTrailingDollar moves "$" characters ending the literal before an
// interpolation into an interpolation of their own. Left in place the last
// of them would join the "${" into the "$${" escape.
func escapeTrailingDollar(toks hclwrite.Tokens) hclwrite.Tokens {
	if len(toks) == 0 {
		return toks
	}
	last := toks[len(toks)-1]
	if last.Type != hclsyntax.TokenQuotedLit || !bytes.HasSuffix(last.Bytes, []byte("$")) {
		return toks
	}
	kept := bytes.TrimRight(last.Bytes, "$")
	dollars := last.Bytes[len(kept):]

	out := append(hclwrite.Tokens(nil), toks[:len(toks)-1]...)
	if len(kept) > 0 {
		out = append(out, &hclwrite.Token{Type: hclsyntax.TokenQuotedLit, Bytes: append([]byte(nil), kept...)})
	}
	return append(out,
		&hclwrite.Token{Type: hclsyntax.TokenTemplateInterp, Bytes: []byte("${")},
		&hclwrite.Token{Type: hclsyntax.TokenOQuote, Bytes: []byte(`"`)},
		&hclwrite.Token{Type: hclsyntax.TokenQuotedLit, Bytes: append([]byte(nil), dollars...)},
		&hclwrite.Token{Type: hclsyntax.TokenCQuote, Bytes: []byte(`"`)},
		&hclwrite.Token{Type: hclsyntax.TokenTemplateSeqEnd, Bytes: []byte("}")},
	)
}

func literalValue(l domain.Literal) (cty.Value, error) {
	switch v := l.V.(type) {
	case string:
		return cty.StringVal(v), nil
	case int:
		return cty.NumberIntVal(int64(v)), nil
	case int64:
		return cty.NumberIntVal(v), nil
	case float64:
		return cty.NumberFloatVal(v), nil
	case bool:
		return cty.BoolVal(v), nil
	}
	return cty.NilVal, fmt.Errorf("literal of type %T", l.V)
}

func keyTokens(k string) hclwrite.Tokens {
	if hclsyntax.ValidIdentifier(k) {
		return hclwrite.TokensForIdentifier(k)
	}
	return hclwrite.TokensForValue(cty.StringVal(k))
}

// typeTokens renders a type constraint such as "list(string)".
func typeTokens(expr string) hclwrite.Tokens {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = "string"
	}
	if open := strings.Index(expr, "("); open > 0 && strings.HasSuffix(expr, ")") {
		return hclwrite.TokensForFunctionCall(expr[:open], typeTokens(expr[open+1:len(expr)-1]))
	}
	return hclwrite.TokensForIdentifier(expr)
}
