package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/autodeploy/internal/core/domain"
)

// =============================================================================
// Credential Validation (Pure - no I/O)
// =============================================================================

var (
	ErrAWSAccessKeyRequired      = errors.New("AWS access key ID is required")
	ErrAWSSecretKeyRequired      = errors.New("AWS secret access key is required")
	ErrGCPServiceAccountRequired = errors.New("GCP service account key is required")
	ErrGCPServiceAccountInvalid  = errors.New("GCP service account key must be a service_account JSON document")
	ErrGCPProjectRequired        = errors.New("GCP project ID is required")
	ErrAzureClientIDRequired     = errors.New("Azure client ID is required")
	ErrAzureSecretRequired       = errors.New("Azure client secret is required")
	ErrAzureTenantRequired       = errors.New("Azure tenant ID is required")
	ErrAzureSubscriptionRequired = errors.New("Azure subscription ID is required")
	ErrDOTokenRequired           = errors.New("DigitalOcean API token is required")
	ErrHetznerTokenRequired      = errors.New("Hetzner API token is required")
	ErrUnknownProvider           = errors.New("unknown provider type")
)

// AWSCredentials represents AWS access credentials.
type AWSCredentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Region          string `json:"region,omitempty"`
	SessionToken    string `json:"session_token,omitempty"`
}

// GCPCredentials represents a GCP service account.
type GCPCredentials struct {
	// ServiceAccountKey is the JSON key file content.
	ServiceAccountKey string `json:"service_account_key"`
	ProjectID         string `json:"project_id"`
	Region            string `json:"region,omitempty"`
}

// AzureCredentials represents an Azure service principal.
type AzureCredentials struct {
	ClientID       string `json:"client_id"`
	ClientSecret   string `json:"client_secret"`
	TenantID       string `json:"tenant_id"`
	SubscriptionID string `json:"subscription_id"`
}

// DigitalOceanCredentials represents DigitalOcean API credentials.
type DigitalOceanCredentials struct {
	APIToken string `json:"api_token"`
}

// HetznerCredentials represents Hetzner Cloud API credentials.
type HetznerCredentials struct {
	APIToken string `json:"api_token"`
}

// ValidateAWSCredentials validates AWS credential fields.
func ValidateAWSCredentials(creds AWSCredentials) error {
	if creds.AccessKeyID == "" {
		return ErrAWSAccessKeyRequired
	}
	if creds.SecretAccessKey == "" {
		return ErrAWSSecretKeyRequired
	}
	return nil
}

// ValidateGCPCredentials validates the service account document and project.
func ValidateGCPCredentials(creds GCPCredentials) error {
	if strings.TrimSpace(creds.ServiceAccountKey) == "" {
		return ErrGCPServiceAccountRequired
	}
	var key struct {
		Type        string `json:"type"`
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal([]byte(creds.ServiceAccountKey), &key); err != nil {
		return ErrGCPServiceAccountInvalid
	}
	if key.Type != "service_account" || key.ClientEmail == "" {
		return ErrGCPServiceAccountInvalid
	}
	if creds.ProjectID == "" {
		return ErrGCPProjectRequired
	}
	return nil
}

// ValidateAzureCredentials validates Azure service principal fields.
func ValidateAzureCredentials(creds AzureCredentials) error {
	switch {
	case creds.ClientID == "":
		return ErrAzureClientIDRequired
	case creds.ClientSecret == "":
		return ErrAzureSecretRequired
	case creds.TenantID == "":
		return ErrAzureTenantRequired
	case creds.SubscriptionID == "":
		return ErrAzureSubscriptionRequired
	}
	return nil
}

// ValidateDigitalOceanCredentials validates DigitalOcean credential fields.
func ValidateDigitalOceanCredentials(creds DigitalOceanCredentials) error {
	if creds.APIToken == "" {
		return ErrDOTokenRequired
	}
	return nil
}

// ValidateHetznerCredentials validates Hetzner credential fields.
func ValidateHetznerCredentials(creds HetznerCredentials) error {
	if creds.APIToken == "" {
		return ErrHetznerTokenRequired
	}
	return nil
}

// ValidateCredentialsJSON validates credential JSON for a given provider.
func ValidateCredentialsJSON(p domain.Provider, credJSON []byte) error {
	_, err := EnvFor(p, credJSON)
	return err
}

// =============================================================================
// Environment Mapping
// =============================================================================

// EnvFor parses stored credentials and returns the environment variables the
// provisioning tool reads for that provider.
func EnvFor(p domain.Provider, credJSON []byte) (map[string]string, error) {
	switch p {
	case domain.ProviderAWS:
		var creds AWSCredentials
		if err := json.Unmarshal(credJSON, &creds); err != nil {
			return nil, errors.New("invalid AWS credentials JSON")
		}
		if err := ValidateAWSCredentials(creds); err != nil {
			return nil, err
		}
		env := map[string]string{
			"AWS_ACCESS_KEY_ID":     creds.AccessKeyID,
			"AWS_SECRET_ACCESS_KEY": creds.SecretAccessKey,
		}
		if creds.Region != "" {
			env["AWS_DEFAULT_REGION"] = creds.Region
		}
		if creds.SessionToken != "" {
			env["AWS_SESSION_TOKEN"] = creds.SessionToken
		}
		return env, nil

	case domain.ProviderGCP:
		var creds GCPCredentials
		if err := json.Unmarshal(credJSON, &creds); err != nil {
			return nil, errors.New("invalid GCP credentials JSON")
		}
		if err := ValidateGCPCredentials(creds); err != nil {
			return nil, err
		}
		env := map[string]string{
			"GOOGLE_CREDENTIALS": creds.ServiceAccountKey,
			"GOOGLE_PROJECT":     creds.ProjectID,
		}
		if creds.Region != "" {
			env["GOOGLE_REGION"] = creds.Region
		}
		return env, nil

	case domain.ProviderAzure:
		var creds AzureCredentials
		if err := json.Unmarshal(credJSON, &creds); err != nil {
			return nil, errors.New("invalid Azure credentials JSON")
		}
		if err := ValidateAzureCredentials(creds); err != nil {
			return nil, err
		}
		return map[string]string{
			"ARM_CLIENT_ID":       creds.ClientID,
			"ARM_CLIENT_SECRET":   creds.ClientSecret,
			"ARM_TENANT_ID":       creds.TenantID,
			"ARM_SUBSCRIPTION_ID": creds.SubscriptionID,
		}, nil

	case domain.ProviderDigitalOcean:
		var creds DigitalOceanCredentials
		if err := json.Unmarshal(credJSON, &creds); err != nil {
			return nil, errors.New("invalid DigitalOcean credentials JSON")
		}
		if err := ValidateDigitalOceanCredentials(creds); err != nil {
			return nil, err
		}
		return map[string]string{"DIGITALOCEAN_TOKEN": creds.APIToken}, nil

	case domain.ProviderHetzner:
		var creds HetznerCredentials
		if err := json.Unmarshal(credJSON, &creds); err != nil {
			return nil, errors.New("invalid Hetzner credentials JSON")
		}
		if err := ValidateHetznerCredentials(creds); err != nil {
			return nil, err
		}
		return map[string]string{"HCLOUD_TOKEN": creds.APIToken}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
}

// TerraformVars returns the input variable values implied by stored
// credentials, such as the GCP project.
func TerraformVars(p domain.Provider, credJSON []byte) map[string]string {
	vars := map[string]string{}
	switch p {
	case domain.ProviderGCP:
		var creds GCPCredentials
		if json.Unmarshal(credJSON, &creds) == nil && creds.ProjectID != "" {
			vars["project_id"] = creds.ProjectID
		}
	}
	return vars
}

// ParseAWSCredentials parses AWS credentials from JSON.
func ParseAWSCredentials(data []byte) (AWSCredentials, error) {
	var creds AWSCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, err
	}
	return creds, ValidateAWSCredentials(creds)
}

// ParseDigitalOceanCredentials parses DigitalOcean credentials from JSON.
func ParseDigitalOceanCredentials(data []byte) (DigitalOceanCredentials, error) {
	var creds DigitalOceanCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, err
	}
	return creds, ValidateDigitalOceanCredentials(creds)
}

// ParseHetznerCredentials parses Hetzner credentials from JSON.
func ParseHetznerCredentials(data []byte) (HetznerCredentials, error) {
	var creds HetznerCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, err
	}
	return creds, ValidateHetznerCredentials(creds)
}
