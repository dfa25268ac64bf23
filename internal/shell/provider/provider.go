// Package provider implements cloud provider API clients used to check
// credentials and resolve provider-side values before a plan is applied.
// This is part of the Imperative Shell - handles I/O with cloud APIs.
package provider

import (
	"context"
	"errors"

	coreprovider "github.com/artpar/autodeploy/internal/core/provider"
)

// ErrVerifyFailed is returned when a provider rejects the stored credentials.
var ErrVerifyFailed = errors.New("credential verification failed")

// Client defines the interface for cloud provider API clients.
type Client interface {
	// Verify makes one authenticated read call to prove the credentials work.
	Verify(ctx context.Context) error

	// ListRegions returns available regions (live from API when possible).
	ListRegions(ctx context.Context) ([]coreprovider.Region, error)
}

// ImageResolver is implemented by clients that can look up the machine
// image for a region.
type ImageResolver interface {
	ResolveImage(ctx context.Context, region string) (string, error)
}
