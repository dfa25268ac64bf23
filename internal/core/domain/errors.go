package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Errors
// =============================================================================

// ErrUnsupportedProvider is matched by every UnsupportedProviderError.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// UnsupportedProviderError is returned when a plan targets a provider that
// has no resource templates. It is a user-facing condition, never fatal.
type UnsupportedProviderError struct {
	Provider Provider
}

// Error implements the error interface.
func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("%s is not supported yet: infrastructure can only be generated for AWS and GCP",
		e.Provider.DisplayName())
}

// Unwrap returns the sentinel so callers can use errors.Is.
func (e *UnsupportedProviderError) Unwrap() error {
	return ErrUnsupportedProvider
}
