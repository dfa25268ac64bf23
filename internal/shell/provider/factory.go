package provider

import (
	"fmt"
	"log/slog"

	"github.com/artpar/autodeploy/internal/core/domain"
	coreprovider "github.com/artpar/autodeploy/internal/core/provider"
)

// NewClient creates a cloud provider client from decrypted credentials JSON.
func NewClient(p domain.Provider, credJSON []byte, logger *slog.Logger) (Client, error) {
	switch p {
	case domain.ProviderAWS:
		creds, err := coreprovider.ParseAWSCredentials(credJSON)
		if err != nil {
			return nil, fmt.Errorf("invalid AWS credentials: %w", err)
		}
		return NewAWSClient(creds, logger), nil

	case domain.ProviderGCP, domain.ProviderAzure:
		if err := coreprovider.ValidateCredentialsJSON(p, credJSON); err != nil {
			return nil, fmt.Errorf("invalid %s credentials: %w", p.DisplayName(), err)
		}
		return newStaticClient(p, logger), nil

	case domain.ProviderDigitalOcean:
		creds, err := coreprovider.ParseDigitalOceanCredentials(credJSON)
		if err != nil {
			return nil, fmt.Errorf("invalid DigitalOcean credentials: %w", err)
		}
		return NewDigitalOceanClient(creds.APIToken, logger), nil

	case domain.ProviderHetzner:
		creds, err := coreprovider.ParseHetznerCredentials(credJSON)
		if err != nil {
			return nil, fmt.Errorf("invalid Hetzner credentials: %w", err)
		}
		return NewHetznerClient(creds.APIToken, logger), nil

	default:
		return nil, fmt.Errorf("%w: %q", coreprovider.ErrUnknownProvider, p)
	}
}
