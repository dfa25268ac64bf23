package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	coreprovider "github.com/artpar/autodeploy/internal/core/provider"
)

// HetznerClient implements Client for Hetzner Cloud.
type HetznerClient struct {
	client *hcloud.Client
	logger *slog.Logger
}

// NewHetznerClient creates a new Hetzner Cloud client.
func NewHetznerClient(apiToken string, logger *slog.Logger) *HetznerClient {
	return &HetznerClient{
		client: hcloud.NewClient(hcloud.WithToken(apiToken), hcloud.WithApplication("autodeploy", "")),
		logger: logger.With("provider", "hetzner"),
	}
}

// Verify lists locations, which requires a valid project token.
func (c *HetznerClient) Verify(ctx context.Context) error {
	if _, _, err := c.client.Location.List(ctx, hcloud.LocationListOpts{}); err != nil {
		return fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	c.logger.Info("Hetzner credentials verified")
	return nil
}

// ListRegions returns available Hetzner locations.
func (c *HetznerClient) ListRegions(ctx context.Context) ([]coreprovider.Region, error) {
	locations, _, err := c.client.Location.List(ctx, hcloud.LocationListOpts{})
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}

	regions := make([]coreprovider.Region, 0, len(locations))
	for _, loc := range locations {
		regions = append(regions, coreprovider.Region{
			ID:        loc.Name,
			Name:      fmt.Sprintf("%s (%s)", loc.City, loc.Country),
			Available: true,
		})
	}
	return regions, nil
}
