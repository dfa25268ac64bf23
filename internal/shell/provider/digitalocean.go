package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digitalocean/godo"

	coreprovider "github.com/artpar/autodeploy/internal/core/provider"
)

// DigitalOceanClient implements Client for DigitalOcean.
type DigitalOceanClient struct {
	client *godo.Client
	logger *slog.Logger
}

// NewDigitalOceanClient creates a new DigitalOcean client.
func NewDigitalOceanClient(apiToken string, logger *slog.Logger) *DigitalOceanClient {
	return &DigitalOceanClient{
		client: godo.NewFromToken(apiToken),
		logger: logger.With("provider", "digitalocean"),
	}
}

// Verify reads the account the token belongs to.
func (c *DigitalOceanClient) Verify(ctx context.Context) error {
	account, _, err := c.client.Account.Get(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	c.logger.Info("DigitalOcean credentials verified", "account", account.Email, "status", account.Status)
	return nil
}

// ListRegions returns available DigitalOcean regions.
func (c *DigitalOceanClient) ListRegions(ctx context.Context) ([]coreprovider.Region, error) {
	doRegions, _, err := c.client.Regions.List(ctx, &godo.ListOptions{PerPage: 100})
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}

	regions := make([]coreprovider.Region, 0, len(doRegions))
	for _, r := range doRegions {
		regions = append(regions, coreprovider.Region{
			ID:        r.Slug,
			Name:      r.Name,
			Available: r.Available,
		})
	}
	return regions, nil
}
