// Package credentials stores per-provider cloud credentials encrypted at
// rest and hands decrypted environments to the orchestrator.
// This is part of the Imperative Shell - it reads the key file and the store.
package credentials

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/autodeploy/internal/core/crypto"
	"github.com/artpar/autodeploy/internal/core/domain"
	coreprovider "github.com/artpar/autodeploy/internal/core/provider"
	"github.com/artpar/autodeploy/internal/shell/store"
)

// ErrNotConfigured is returned when no credential is stored for a provider.
var ErrNotConfigured = errors.New("credentials not configured")

// Providers lists the providers credentials can be stored for, in display order.
var Providers = []domain.Provider{
	domain.ProviderAWS,
	domain.ProviderGCP,
	domain.ProviderAzure,
	domain.ProviderDigitalOcean,
	domain.ProviderHetzner,
}

// =============================================================================
// Master Key
// =============================================================================

// LoadOrCreateKey reads the base64 master key at path, creating it with
// owner-only permissions when it does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("master key %s is not valid base64: %w", path, err)
		}
		if len(key) < crypto.KeySize {
			return nil, crypto.ErrKeyTooShort
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read master key: %w", err)
	}

	key, err := crypto.GenerateMasterKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("write master key: %w", err)
	}
	return key, nil
}

// =============================================================================
// Manager
// =============================================================================

// Manager seals credentials into the store and opens them on demand.
type Manager struct {
	store  store.Store
	key    []byte
	logger *slog.Logger
}

// NewManager creates a credential manager over a store and master key.
func NewManager(st store.Store, masterKey []byte, logger *slog.Logger) *Manager {
	return &Manager{
		store:  st,
		key:    masterKey,
		logger: logger.With("component", "credentials"),
	}
}

// Status describes the stored credential of one provider.
type Status struct {
	Provider   domain.Provider `json:"provider"`
	Configured bool            `json:"configured"`
	Hint       string          `json:"hint,omitempty"`
}

// Save validates and stores the credential JSON for a provider, replacing
// any previous value.
func (m *Manager) Save(ctx context.Context, p domain.Provider, credJSON []byte) error {
	if err := coreprovider.ValidateCredentialsJSON(p, credJSON); err != nil {
		return err
	}
	sealed, err := crypto.SealToBase64(credJSON, m.key)
	if err != nil {
		return fmt.Errorf("seal credentials: %w", err)
	}
	if err := m.store.PutCredential(ctx, &store.Credential{
		Provider:   p,
		Ciphertext: sealed,
		Hint:       Hint(p, credJSON),
	}); err != nil {
		return err
	}
	m.logger.Info("credentials saved", "provider", p)
	return nil
}

// Load returns the decrypted credential JSON for a provider.
func (m *Manager) Load(ctx context.Context, p domain.Provider) ([]byte, error) {
	cred, err := m.store.GetCredential(ctx, p)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w for %s", ErrNotConfigured, p.DisplayName())
		}
		return nil, err
	}
	plaintext, err := crypto.OpenFromBase64(cred.Ciphertext, m.key)
	if err != nil {
		return nil, fmt.Errorf("open %s credentials: %w", p.DisplayName(), err)
	}
	return plaintext, nil
}

// Env returns the environment variables Terraform reads for a provider.
func (m *Manager) Env(ctx context.Context, p domain.Provider) (map[string]string, error) {
	credJSON, err := m.Load(ctx, p)
	if err != nil {
		return nil, err
	}
	return coreprovider.EnvFor(p, credJSON)
}

// Status lists every known provider and whether credentials are stored.
func (m *Manager) Status(ctx context.Context) ([]Status, error) {
	creds, err := m.store.ListCredentials(ctx)
	if err != nil {
		return nil, err
	}
	stored := make(map[domain.Provider]store.Credential, len(creds))
	for _, c := range creds {
		stored[c.Provider] = c
	}

	out := make([]Status, 0, len(Providers))
	for _, p := range Providers {
		c, ok := stored[p]
		out = append(out, Status{Provider: p, Configured: ok, Hint: c.Hint})
	}
	return out, nil
}

// Clear removes the credential of one provider.
func (m *Manager) Clear(ctx context.Context, p domain.Provider) error {
	if err := m.store.DeleteCredential(ctx, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w for %s", ErrNotConfigured, p.DisplayName())
		}
		return err
	}
	m.logger.Info("credentials cleared", "provider", p)
	return nil
}

// ClearAll removes every stored credential and returns how many were removed.
func (m *Manager) ClearAll(ctx context.Context) (int, error) {
	n, err := m.store.DeleteAllCredentials(ctx)
	if err != nil {
		return 0, err
	}
	m.logger.Info("all credentials cleared", "count", n)
	return n, nil
}

// =============================================================================
// Hints
// =============================================================================

// Hint returns a non-secret identifier for a credential document.
func Hint(p domain.Provider, credJSON []byte) string {
	var fields map[string]any
	if json.Unmarshal(credJSON, &fields) != nil {
		return ""
	}
	str := func(k string) string {
		s, _ := fields[k].(string)
		return s
	}

	switch p {
	case domain.ProviderAWS:
		return mask(str("access_key_id"))
	case domain.ProviderGCP:
		return "project " + str("project_id")
	case domain.ProviderAzure:
		return "subscription " + mask(str("subscription_id"))
	case domain.ProviderDigitalOcean, domain.ProviderHetzner:
		return mask(str("api_token"))
	default:
		return ""
	}
}

// mask keeps the first and last four characters of a long identifier.
func mask(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "..." + s[len(s)-4:]
}
