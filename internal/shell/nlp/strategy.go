package nlp

import (
	"context"
	"log/slog"

	"github.com/artpar/autodeploy/internal/core/decision"
	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/core/intent"
)

// AIStrategy lets a model choose the topology and builds the plan from the
// same resource templates as the rule table. Any model failure falls back
// to decision.Decide.
type AIStrategy struct {
	model  Model
	logger *slog.Logger
}

// NewAIStrategy creates a model-assisted strategy.
func NewAIStrategy(model Model, logger *slog.Logger) *AIStrategy {
	return &AIStrategy{model: model, logger: logger.With("component", "ai_strategy")}
}

// Plan implements decision.Strategy.
func (s *AIStrategy) Plan(ctx context.Context, summary domain.RepositorySummary, in domain.DeploymentIntent) (domain.Plan, error) {
	in = in.Normalized()
	text, err := s.model.Generate(ctx, intent.TopologyPrompt(summary, in))
	if err != nil {
		if ctx.Err() != nil {
			return domain.Plan{}, ctx.Err()
		}
		s.logger.Warn("topology request failed, using rule table", "error", err)
		return decision.Decide(summary, in), nil
	}

	topology, reason, err := intent.ParseTopologyResponse(text)
	if err != nil {
		s.logger.Warn("unusable topology response, using rule table", "error", err)
		return decision.Decide(summary, in), nil
	}
	s.logger.Info("model chose topology", "topology", topology, "reason", reason)
	return decision.DecideTopology(summary, in, topology, reason), nil
}

// NewStrategy returns the model strategy when a model is available and the
// rule table otherwise.
func NewStrategy(model Model, logger *slog.Logger) decision.Strategy {
	if model == nil {
		return decision.Rules{}
	}
	return NewAIStrategy(model, logger)
}
