package nlp

import (
	"context"
	"log/slog"

	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/core/intent"
)

// Extractor turns a free-text deployment request into an intent.
type Extractor interface {
	Extract(ctx context.Context, description string) (domain.DeploymentIntent, error)
}

// KeywordExtractor extracts intents without a model.
type KeywordExtractor struct{}

// Extract implements Extractor.
func (KeywordExtractor) Extract(_ context.Context, description string) (domain.DeploymentIntent, error) {
	return intent.ExtractKeywords(description), nil
}

// ModelExtractor asks a model for the requirements and falls back to
// keyword extraction when the call or the response fails.
type ModelExtractor struct {
	model  Model
	logger *slog.Logger
}

// NewModelExtractor creates an extractor over a model.
func NewModelExtractor(model Model, logger *slog.Logger) *ModelExtractor {
	return &ModelExtractor{model: model, logger: logger.With("component", "extractor")}
}

// Extract implements Extractor. It only returns an error when ctx is done.
func (e *ModelExtractor) Extract(ctx context.Context, description string) (domain.DeploymentIntent, error) {
	text, err := e.model.Generate(ctx, intent.RequirementsPrompt(description))
	if err != nil {
		if ctx.Err() != nil {
			return domain.DeploymentIntent{}, ctx.Err()
		}
		e.logger.Warn("model extraction failed, using keywords", "error", err)
		return intent.ExtractKeywords(description), nil
	}

	parsed, err := intent.ParseModelResponse(description, text)
	if err != nil {
		e.logger.Warn("unusable model response, using keywords", "error", err)
		return intent.ExtractKeywords(description), nil
	}

	// The model tends to drop regions and domains the keyword pass finds.
	keywords := intent.ExtractKeywords(description)
	if parsed.Region == "" {
		parsed.Region = keywords.Region
	}
	if parsed.Domain == "" {
		parsed.Domain = keywords.Domain
	}
	return parsed.Normalized(), nil
}

// NewExtractor returns a model extractor when a model is available and a
// keyword extractor otherwise.
func NewExtractor(model Model, logger *slog.Logger) Extractor {
	if model == nil {
		return KeywordExtractor{}
	}
	return NewModelExtractor(model, logger)
}
