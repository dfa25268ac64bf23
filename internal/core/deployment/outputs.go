package deployment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// Terraform Outputs
// =============================================================================

// SensitiveMask replaces the value of sensitive outputs.
const SensitiveMask = "(sensitive)"

type outputValue struct {
	Sensitive bool            `json:"sensitive"`
	Value     json.RawMessage `json:"value"`
}

// ParseOutputs reads the document printed by `terraform output -json`.
// String values are returned as is, other values as compact JSON, and
// sensitive values are masked.
func ParseOutputs(raw []byte) (map[string]string, error) {
	var doc map[string]outputValue
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse terraform outputs: %w", err)
	}
	out := make(map[string]string, len(doc))
	for name, o := range doc {
		if o.Sensitive {
			out[name] = SensitiveMask
			continue
		}
		var s string
		if err := json.Unmarshal(o.Value, &s); err == nil {
			out[name] = s
			continue
		}
		out[name] = string(o.Value)
	}
	return out, nil
}

// urlOutputs lists the outputs that can carry the application address, in
// order of preference, with the scheme to add when the value has none.
var urlOutputs = []struct {
	name   string
	scheme string
}{
	{"app_url", "http://"},
	{"service_url", "https://"},
	{"function_url", "https://"},
	{"website_url", "http://"},
	{"cdn_domain", "https://"},
	{"instance_ip", "http://"},
	{"public_ip", "http://"},
	{"public_dns", "http://"},
}

// AppURL picks the application address from apply outputs, or "" when no
// output carries one.
func AppURL(outputs map[string]string) string {
	for _, o := range urlOutputs {
		v := strings.TrimSpace(outputs[o.name])
		if v == "" || v == SensitiveMask {
			continue
		}
		if strings.Contains(v, "://") {
			return v
		}
		return o.scheme + v
	}
	return ""
}
