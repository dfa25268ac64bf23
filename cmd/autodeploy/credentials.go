package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/autodeploy/internal/core/domain"
	coreprovider "github.com/artpar/autodeploy/internal/core/provider"
	"github.com/artpar/autodeploy/internal/shell/provider"
)

// =============================================================================
// Credential Fields
// =============================================================================

// credentialField is one value asked for during setup.
type credentialField struct {
	Key      string
	Title    string
	Help     string
	Env      string
	Default  string
	Secret   bool
	Optional bool
}

func credentialFields(p domain.Provider) ([]credentialField, error) {
	switch p {
	case domain.ProviderAWS:
		return []credentialField{
			{Key: "access_key_id", Title: "Access key ID", Env: "AWS_ACCESS_KEY_ID"},
			{Key: "secret_access_key", Title: "Secret access key", Env: "AWS_SECRET_ACCESS_KEY", Secret: true},
			{Key: "region", Title: "Default region", Env: "AWS_REGION", Default: coreprovider.DefaultRegion(p), Optional: true},
			{Key: "session_token", Title: "Session token", Help: "Only for temporary credentials", Env: "AWS_SESSION_TOKEN", Secret: true, Optional: true},
		}, nil
	case domain.ProviderGCP:
		return []credentialField{
			{Key: "project_id", Title: "Project ID", Env: "GOOGLE_PROJECT"},
			{Key: "key_file", Title: "Service account key file", Help: "Path to the JSON key", Env: "GOOGLE_APPLICATION_CREDENTIALS"},
			{Key: "region", Title: "Default region", Env: "GOOGLE_REGION", Default: coreprovider.DefaultRegion(p), Optional: true},
		}, nil
	case domain.ProviderAzure:
		return []credentialField{
			{Key: "client_id", Title: "Client ID", Env: "ARM_CLIENT_ID"},
			{Key: "client_secret", Title: "Client secret", Env: "ARM_CLIENT_SECRET", Secret: true},
			{Key: "tenant_id", Title: "Tenant ID", Env: "ARM_TENANT_ID"},
			{Key: "subscription_id", Title: "Subscription ID", Env: "ARM_SUBSCRIPTION_ID"},
		}, nil
	case domain.ProviderDigitalOcean:
		return []credentialField{
			{Key: "api_token", Title: "API token", Env: "DIGITALOCEAN_TOKEN", Secret: true},
		}, nil
	case domain.ProviderHetzner:
		return []credentialField{
			{Key: "api_token", Title: "API token", Env: "HCLOUD_TOKEN", Secret: true},
		}, nil
	}
	return nil, fmt.Errorf("unknown provider %q, use aws, gcp, azure, digitalocean or hetzner", p)
}

func setupHint(p domain.Provider) string {
	switch p {
	case domain.ProviderAWS:
		return "Find these in AWS Console > IAM > Users > Security credentials."
	case domain.ProviderGCP:
		return "Create a key in GCP Console > IAM & Admin > Service Accounts."
	case domain.ProviderAzure:
		return "Create a service principal in Azure Portal > App registrations."
	case domain.ProviderDigitalOcean:
		return "Generate a token in DigitalOcean > API > Tokens."
	case domain.ProviderHetzner:
		return "Generate a token in Hetzner Cloud Console > Security > API tokens."
	}
	return ""
}

// valuesFromEnv reads the standard provider environment variables.
func valuesFromEnv(fields []credentialField, getenv func(string) string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		v := strings.TrimSpace(getenv(f.Env))
		if v == "" {
			v = f.Default
		}
		out[f.Key] = v
	}
	return out
}

// buildCredentials turns field values into the stored credential document.
func buildCredentials(p domain.Provider, v map[string]string, readFile func(string) ([]byte, error)) ([]byte, error) {
	var doc any
	switch p {
	case domain.ProviderAWS:
		doc = coreprovider.AWSCredentials{
			AccessKeyID:     v["access_key_id"],
			SecretAccessKey: v["secret_access_key"],
			Region:          v["region"],
			SessionToken:    v["session_token"],
		}
	case domain.ProviderGCP:
		if v["key_file"] == "" {
			return nil, errors.New("service account key file is required")
		}
		key, err := readFile(v["key_file"])
		if err != nil {
			return nil, fmt.Errorf("read service account key: %w", err)
		}
		doc = coreprovider.GCPCredentials{
			ServiceAccountKey: string(key),
			ProjectID:         v["project_id"],
			Region:            v["region"],
		}
	case domain.ProviderAzure:
		doc = coreprovider.AzureCredentials{
			ClientID:       v["client_id"],
			ClientSecret:   v["client_secret"],
			TenantID:       v["tenant_id"],
			SubscriptionID: v["subscription_id"],
		}
	case domain.ProviderDigitalOcean:
		doc = coreprovider.DigitalOceanCredentials{APIToken: v["api_token"]}
	case domain.ProviderHetzner:
		doc = coreprovider.HetznerCredentials{APIToken: v["api_token"]}
	default:
		return nil, fmt.Errorf("unknown provider %q", p)
	}

	credJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if err := coreprovider.ValidateCredentialsJSON(p, credJSON); err != nil {
		return nil, err
	}
	return credJSON, nil
}

// =============================================================================
// Commands
// =============================================================================

func (c *CLI) credentialsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage cloud provider credentials",
	}
	cmd.AddCommand(c.credentialsSetupCommand(), c.credentialsStatusCommand(), c.credentialsClearCommand())
	return cmd
}

func (c *CLI) credentialsSetupCommand() *cobra.Command {
	var (
		fromEnv bool
		verify  bool
	)
	cmd := &cobra.Command{
		Use:   "setup <aws|gcp|azure|digitalocean|hetzner>",
		Short: "Store credentials for a provider",
		Long: `Store credentials for a provider, encrypted in the history database.

Values are prompted for, or read from the provider's standard environment
variables with --from-env (AWS_ACCESS_KEY_ID, ARM_CLIENT_ID, HCLOUD_TOKEN, ...).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := parseProviderArg(args[0])
			if err != nil {
				return err
			}
			fields, err := credentialFields(p)
			if err != nil {
				return err
			}

			var values map[string]string
			if fromEnv {
				values = valuesFromEnv(fields, os.Getenv)
			} else {
				if !c.interactive() {
					return fmt.Errorf("%w for setup, use --from-env in scripts", ErrNotInteractive)
				}
				if values, err = promptFields(ctx, p, fields); err != nil {
					return err
				}
			}

			credJSON, err := buildCredentials(p, values, os.ReadFile)
			if err != nil {
				return fmt.Errorf("invalid %s credentials: %w", p.DisplayName(), err)
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			r := c.renderer()
			if verify {
				if err := verifyCredentials(ctx, a, p, credJSON); err != nil {
					return err
				}
				fmt.Fprintln(c.out, r.Success(p.DisplayName()+" credentials verified"))
			}
			if err := a.credentials.Save(ctx, p, credJSON); err != nil {
				return err
			}
			fmt.Fprintln(c.out, r.Success(p.DisplayName()+" credentials saved"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromEnv, "from-env", false, "read values from the provider's environment variables")
	cmd.Flags().BoolVar(&verify, "verify", false, "check the credentials against the provider API before saving")
	return cmd
}

func verifyCredentials(ctx context.Context, a *App, p domain.Provider, credJSON []byte) error {
	client, err := provider.NewClient(p, credJSON, a.logger)
	if err != nil {
		return err
	}
	if err := client.Verify(ctx); err != nil {
		return fmt.Errorf("verify %s credentials: %w", p.DisplayName(), err)
	}
	return nil
}

func (c *CLI) credentialsStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which providers have credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			statuses, err := a.credentials.Status(cmd.Context())
			if err != nil {
				return err
			}
			r := c.renderer()
			configured := 0
			for _, s := range statuses {
				if s.Configured {
					configured++
					line := fmt.Sprintf("%-13s configured", s.Provider.DisplayName()+":")
					if s.Hint != "" {
						line += " (" + s.Hint + ")"
					}
					fmt.Fprintln(c.out, r.Success(line))
				} else {
					fmt.Fprintln(c.out, r.Failure(fmt.Sprintf("%-13s not set", s.Provider.DisplayName()+":")))
				}
			}
			if configured == 0 {
				fmt.Fprintln(c.out, r.Muted("\nSet up credentials with: autodeploy credentials setup <provider>"))
			}
			return nil
		},
	}
}

func (c *CLI) credentialsClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <aws|gcp|azure|digitalocean|hetzner|all>",
		Short: "Remove stored credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			all := strings.EqualFold(strings.TrimSpace(args[0]), "all")
			var p domain.Provider
			if !all {
				var err error
				if p, err = parseProviderArg(args[0]); err != nil {
					return err
				}
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			r := c.renderer()
			if all {
				n, err := a.credentials.ClearAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, r.Success(fmt.Sprintf("All credentials cleared (%d)", n)))
				return nil
			}
			if err := a.credentials.Clear(ctx, p); err != nil {
				return err
			}
			fmt.Fprintln(c.out, r.Success(p.DisplayName()+" credentials cleared"))
			return nil
		},
	}
}

// parseProviderArg accepts provider names and their common aliases.
func parseProviderArg(s string) (domain.Provider, error) {
	p := domain.ParseProvider(s)
	if p == domain.ProviderUnspecified {
		return p, fmt.Errorf("unknown provider %q, use aws, gcp, azure, digitalocean or hetzner", s)
	}
	return p, nil
}
