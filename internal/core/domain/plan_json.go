package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPlanJSON is returned when a stored plan cannot be decoded.
var ErrInvalidPlanJSON = errors.New("invalid plan json")

// =============================================================================
// Plan Decoding
// =============================================================================

// DecodePlan reads a plan previously written with encoding/json. Values are
// decoded from their tagged form: {"ref": "db.port"} becomes a Ref,
// {"var": "region"} a VarRef and {"template": [...]} a Template. Integral
// numbers decode as int literals.
func DecodePlan(data []byte) (Plan, error) {
	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlanJSON, err)
	}
	return plan, nil
}

// DecodeValue decodes one tagged value.
func DecodeValue(raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return Null{}, nil
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return decodeList(items)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		if v, ok, err := decodeTagged(obj); ok || err != nil {
			return v, err
		}
		m := make(Map, len(obj))
		for k, item := range obj {
			v, err := DecodeValue(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = v
		}
		return m, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return String(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return nil, err
	}
	if i, err := n.Int64(); err == nil {
		return Int(int(i)), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, err
	}
	return Literal{V: f}, nil
}

func decodeList(items []json.RawMessage) (List, error) {
	out := make(List, len(items))
	for i, item := range items {
		v, err := DecodeValue(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// decodeTagged recognizes the single-key objects Ref, VarRef and Template
// marshal to.
func decodeTagged(obj map[string]json.RawMessage) (Value, bool, error) {
	if len(obj) != 1 {
		return nil, false, nil
	}
	if raw, ok := obj["ref"]; ok {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil, false, nil
		}
		resource, attribute, found := strings.Cut(s, ".")
		if !found {
			return nil, true, fmt.Errorf("reference %q has no attribute", s)
		}
		return Ref{Resource: resource, Attribute: attribute}, true, nil
	}
	if raw, ok := obj["var"]; ok {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil, false, nil
		}
		return VarRef{Name: s}, true, nil
	}
	if raw, ok := obj["template"]; ok {
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return nil, false, nil
		}
		parts, err := decodeList(items)
		if err != nil {
			return nil, true, err
		}
		return Template(parts), true, nil
	}
	return nil, false, nil
}

func decodeAttributes(raw map[string]json.RawMessage) (map[string]Value, error) {
	if raw == nil {
		return nil, nil
	}
	out := make(map[string]Value, len(raw))
	for k, item := range raw {
		v, err := DecodeValue(item)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// =============================================================================
// Unmarshalers
// =============================================================================

func (b *Block) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type       string                     `json:"type"`
		Attributes map[string]json.RawMessage `json:"attributes"`
		Blocks     []Block                    `json:"blocks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	attrs, err := decodeAttributes(raw.Attributes)
	if err != nil {
		return fmt.Errorf("block %s: %w", raw.Type, err)
	}
	*b = Block{Type: raw.Type, Attributes: attrs, Blocks: raw.Blocks}
	return nil
}

func (r *ResourceSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind       ResourceKind               `json:"kind"`
		Type       string                     `json:"type"`
		Name       string                     `json:"name"`
		Attributes map[string]json.RawMessage `json:"attributes"`
		Blocks     []Block                    `json:"blocks"`
		Companions []ResourceSpec             `json:"companions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	attrs, err := decodeAttributes(raw.Attributes)
	if err != nil {
		return fmt.Errorf("resource %s.%s: %w", raw.Type, raw.Name, err)
	}
	*r = ResourceSpec{
		Kind:       raw.Kind,
		Type:       raw.Type,
		Name:       raw.Name,
		Attributes: attrs,
		Blocks:     raw.Blocks,
		Companions: raw.Companions,
	}
	return nil
}

func (v *Variable) UnmarshalJSON(data []byte) error {
	var raw struct {
		Description string          `json:"description"`
		Type        string          `json:"type"`
		Default     json.RawMessage `json:"default"`
		Sensitive   bool            `json:"sensitive"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = Variable{Description: raw.Description, Type: raw.Type, Sensitive: raw.Sensitive}
	if raw.Default != nil {
		def, err := DecodeValue(raw.Default)
		if err != nil {
			return fmt.Errorf("default: %w", err)
		}
		v.Default = def
	}
	return nil
}

func (o *Output) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value       json.RawMessage `json:"value"`
		Description string          `json:"description"`
		Sensitive   bool            `json:"sensitive"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := DecodeValue(raw.Value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	*o = Output{Value: value, Description: raw.Description, Sensitive: raw.Sensitive}
	return nil
}

func (p *Plan) UnmarshalJSON(data []byte) error {
	type planFields Plan
	var raw struct {
		planFields
		ProviderConfig map[string]json.RawMessage `json:"provider_config"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cfg, err := decodeAttributes(raw.ProviderConfig)
	if err != nil {
		return fmt.Errorf("provider_config: %w", err)
	}
	*p = Plan(raw.planFields)
	p.ProviderConfig = cfg
	return nil
}
