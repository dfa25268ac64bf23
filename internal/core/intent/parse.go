// Package intent turns natural-language deployment requests into a
// domain.DeploymentIntent.
//
// This is part of the Functional Core: it builds prompts and parses model
// responses but never talks to a model itself. The keyword extractor is the
// fallback used when no model is configured or the model call fails.
package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/tidwall/jsonc"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNoJSON is returned when a model response holds no JSON object.
	ErrNoJSON = errors.New("model response contains no JSON object")

	// ErrInvalidResponse is returned when the JSON does not match the schema.
	ErrInvalidResponse = errors.New("invalid model response")
)

// =============================================================================
// Response Parsing
// =============================================================================

// modelRequirements is the JSON document the prompt asks for.
type modelRequirements struct {
	CloudProvider        string   `json:"cloud_provider"`
	Scaling              string   `json:"scaling"`
	ExecutionModel       string   `json:"execution_model"`
	DatabaseRequirements []string `json:"database_requirements"`
	CDN                  bool     `json:"cdn"`
	Region               *string  `json:"region"`
	CustomDomain         *string  `json:"custom_domain"`
	SSLRequired          bool     `json:"ssl_required"`
}

// ExtractJSON strips markdown fences and surrounding prose, returning the
// outermost JSON object in text.
func ExtractJSON(text string) (string, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return cleaned[start : end+1], nil
}

// decodeLenient decodes JSON that may carry comments or trailing commas.
func decodeLenient(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(jsonc.ToJSON([]byte(raw)), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// ParseModelResponse converts a model's requirements JSON into an intent.
// Unknown enum values fall back to their defaults.
func ParseModelResponse(description, text string) (domain.DeploymentIntent, error) {
	var req modelRequirements
	if err := decodeLenient(text, &req); err != nil {
		return domain.DeploymentIntent{}, err
	}

	intent := domain.DeploymentIntent{
		Description:    description,
		CloudProvider:  domain.ParseProvider(req.CloudProvider),
		Scaling:        domain.ParseScaling(req.Scaling),
		ExecutionModel: domain.ParseExecutionModel(req.ExecutionModel),
		CDNRequested:   req.CDN,
		SSL:            req.SSLRequired,
	}
	if strings.EqualFold(strings.TrimSpace(req.Scaling), "serverless") {
		intent.ExecutionModel = domain.ExecutionServerless
	}
	for _, db := range req.DatabaseRequirements {
		switch strings.ToLower(strings.TrimSpace(db)) {
		case "", "none", "null":
		default:
			intent.DatabaseRequested = true
		}
	}
	if req.Region != nil {
		intent.Region = strings.TrimSpace(*req.Region)
	}
	if req.CustomDomain != nil && !strings.EqualFold(*req.CustomDomain, "null") {
		intent.Domain = strings.TrimSpace(*req.CustomDomain)
	}
	return intent.Normalized(), nil
}

// =============================================================================
// Topology Choice
// =============================================================================

type topologyChoice struct {
	Topology string `json:"topology"`
	Reason   string `json:"reason"`
}

// ParseTopologyResponse reads the topology a model picked. Names that are
// not a deployable topology are rejected.
func ParseTopologyResponse(text string) (domain.Topology, string, error) {
	var choice topologyChoice
	if err := decodeLenient(text, &choice); err != nil {
		return "", "", err
	}
	topology, ok := domain.ParseTopology(strings.ToLower(strings.TrimSpace(choice.Topology)))
	if !ok {
		return "", "", fmt.Errorf("%w: unknown topology %q", ErrInvalidResponse, choice.Topology)
	}
	return topology, strings.TrimSpace(choice.Reason), nil
}
