package provider

import (
	"context"
	"log/slog"

	"github.com/artpar/autodeploy/internal/core/domain"
	coreprovider "github.com/artpar/autodeploy/internal/core/provider"
)

// staticClient serves providers without a live API client. Credentials are
// checked for shape when the client is built; regions come from the catalog.
type staticClient struct {
	provider domain.Provider
	logger   *slog.Logger
}

func newStaticClient(p domain.Provider, logger *slog.Logger) *staticClient {
	return &staticClient{
		provider: p,
		logger:   logger.With("provider", string(p)),
	}
}

// Verify succeeds once the credential document parsed.
func (c *staticClient) Verify(ctx context.Context) error {
	c.logger.Debug("credentials validated offline")
	return nil
}

func (c *staticClient) ListRegions(ctx context.Context) ([]coreprovider.Region, error) {
	return coreprovider.StaticRegions(c.provider), nil
}
