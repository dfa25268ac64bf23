package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/autodeploy/internal/core/decision"
	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/core/synth"
	"github.com/artpar/autodeploy/internal/shell/bundle"
	"github.com/artpar/autodeploy/internal/shell/pipeline"
)

// =============================================================================
// Test Helpers
// =============================================================================

type cliResult struct {
	out    string
	errOut string
	err    error
}

// testWorkspace points every path the CLI writes to into a temp directory.
func testWorkspace(t *testing.T) string {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("AUTODEPLOY_DATABASE_PATH", filepath.Join(dir, "data", "history.db"))
	t.Setenv("AUTODEPLOY_CREDENTIALS_KEY_FILE", filepath.Join(dir, "data", "master.key"))
	t.Setenv("AUTODEPLOY_OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("AUTODEPLOY_LOG_LEVEL", "error")
	return dir
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var out, errOut bytes.Buffer
	c := &CLI{in: strings.NewReader(""), out: &out, errOut: &errOut}
	root := c.Command()
	root.SetArgs(append([]string{"--env-file="}, args...))
	err := root.ExecuteContext(context.Background())
	return cliResult{out: out.String(), errOut: errOut.String(), err: err}
}

// flaskRepo writes a small Flask application that uses Postgres.
func flaskRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("flask>=2.0\npsycopg2-binary==2.9.9\ngunicorn\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("from flask import Flask\napp = Flask(__name__)\n"), 0644))
	return dir
}

// =============================================================================
// Command Tests
// =============================================================================

func TestVersionCommand(t *testing.T) {
	res := runCLI(t, "version")
	require.NoError(t, res.err)
	assert.Equal(t, "autodeploy dev (built unknown)\n", res.out)
}

func TestCredentialsCommands(t *testing.T) {
	testWorkspace(t)
	t.Setenv("HCLOUD_TOKEN", "hc-0123456789abcdef")

	res := runCLI(t, "credentials", "setup", "hcloud", "--from-env")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Hetzner credentials saved")

	res = runCLI(t, "credentials", "status")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Hetzner:")
	assert.Contains(t, res.out, "configured")
	assert.NotContains(t, res.out, "hc-0123456789abcdef")
	assert.Contains(t, res.out, "AWS:")
	assert.Contains(t, res.out, "not set")

	res = runCLI(t, "credentials", "clear", "aws")
	assert.Error(t, res.err)

	res = runCLI(t, "credentials", "clear", "all")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "All credentials cleared (1)")

	res = runCLI(t, "credentials", "status")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "credentials setup <provider>")
}

func TestCredentialsSetup_Errors(t *testing.T) {
	testWorkspace(t)

	res := runCLI(t, "credentials", "setup", "aws")
	assert.ErrorIs(t, res.err, ErrNotInteractive)

	res = runCLI(t, "credentials", "setup", "oracle", "--from-env")
	assert.ErrorContains(t, res.err, "unknown provider")

	res = runCLI(t, "credentials", "setup", "aws", "--from-env")
	assert.ErrorContains(t, res.err, "invalid AWS credentials")
}

func TestHistoryCommand_Empty(t *testing.T) {
	testWorkspace(t)

	res := runCLI(t, "history")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "No deployments yet.")

	res = runCLI(t, "history", "--status", "running")
	assert.ErrorContains(t, res.err, "unknown status")
}

func TestPlanCommand_JSON(t *testing.T) {
	testWorkspace(t)
	repo := flaskRepo(t)

	res := runCLI(t, "plan", "-d", "Deploy this Flask app on AWS with a Postgres database", "-r", repo, "--format", "json")
	require.NoError(t, res.err, res.errOut)

	var doc planDocument
	require.NoError(t, json.Unmarshal([]byte(res.out), &doc))
	assert.NotEmpty(t, doc.DeploymentID)
	assert.NotEmpty(t, doc.Digest)
	assert.FileExists(t, filepath.Join(doc.Dir, synth.MainFile))

	plan, err := domain.DecodePlan(doc.Plan)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderAWS, plan.Provider)
	assert.Equal(t, domain.TopologySingleVM, plan.Topology)

	res = runCLI(t, "history")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, doc.DeploymentID)
	assert.Contains(t, res.out, string(deployment.StatusPlanned))

	res = runCLI(t, "history", doc.DeploymentID)
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Deploy this Flask app on AWS")
	assert.Contains(t, res.out, doc.Dir)
}

func TestPlanCommand_Text(t *testing.T) {
	testWorkspace(t)

	res := runCLI(t, "plan", "deploy", "a", "static", "site", "on", "gcp", "--no-color")
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, "Deployment plan")
	assert.Contains(t, res.out, "GCP")
	assert.Contains(t, res.out, `resource "google_`)
	assert.Contains(t, res.out, "Configuration written to")
}

func TestPlanCommand_Unsupported(t *testing.T) {
	testWorkspace(t)

	res := runCLI(t, "plan", "-d", "Deploy on Azure")
	assert.ErrorIs(t, res.err, domain.ErrUnsupportedProvider)
	assert.Contains(t, res.out, "Unsupported")

	res = runCLI(t, "history", "--status", "failed")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "not supported yet")
}

func TestPlanCommand_BadInput(t *testing.T) {
	testWorkspace(t)

	res := runCLI(t, "plan")
	assert.ErrorContains(t, res.err, "a description is required")

	res = runCLI(t, "plan", "-d", "deploy", "--format", "xml")
	assert.ErrorContains(t, res.err, "unknown format")

	res = runCLI(t, "plan", "-d", "deploy", "--provider", "oracle")
	assert.ErrorContains(t, res.err, "unknown provider")
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestRequestFlags(t *testing.T) {
	f := requestFlags{provider: "Amazon", values: map[string]string{"app_port": "5000"}}
	req, err := f.request([]string{"deploy", "my", "app"})
	require.NoError(t, err)
	assert.Equal(t, "deploy my app", req.Description)
	assert.Equal(t, domain.ProviderAWS, req.Provider)
	assert.Equal(t, "5000", req.Values["app_port"])

	f = requestFlags{description: " from flag ", repository: " acme/shop "}
	req, err = f.request([]string{"ignored"})
	require.NoError(t, err)
	assert.Equal(t, "from flag", req.Description)
	assert.Equal(t, "acme/shop", req.Repository)
	assert.Equal(t, domain.ProviderUnspecified, req.Provider)
}

func TestWritePlanDocument_YAML(t *testing.T) {
	plan := decision.Decide(domain.RepositorySummary{}, domain.DeploymentIntent{CloudProvider: domain.ProviderAWS})
	planned := &pipeline.Planned{
		Deployment: &deployment.Deployment{ID: "dep-1"},
		Plan:       plan,
		Bundle:     bundle.Written{Dir: "/srv/out/deployment_20260301_120000", Digest: "abc"},
	}

	var buf bytes.Buffer
	require.NoError(t, writePlanDocument(&buf, planned, "yaml"))
	out := buf.String()
	assert.Contains(t, out, "deployment_id: dep-1")
	assert.Contains(t, out, "dir: /srv/out/deployment_20260301_120000")
	assert.Contains(t, out, "provider: aws")
}

func TestCredentialFields(t *testing.T) {
	for _, p := range []domain.Provider{domain.ProviderAWS, domain.ProviderGCP, domain.ProviderAzure, domain.ProviderDigitalOcean, domain.ProviderHetzner} {
		fields, err := credentialFields(p)
		require.NoError(t, err, p)
		assert.NotEmpty(t, fields)
		for _, f := range fields {
			assert.NotEmpty(t, f.Env, "%s %s", p, f.Key)
		}
		assert.NotEmpty(t, setupHint(p))
	}

	_, err := credentialFields(domain.Provider("oracle"))
	assert.Error(t, err)
}

func TestValuesFromEnv(t *testing.T) {
	fields, err := credentialFields(domain.ProviderAWS)
	require.NoError(t, err)
	env := map[string]string{"AWS_ACCESS_KEY_ID": " AKIAEXAMPLE ", "AWS_SECRET_ACCESS_KEY": "secret"}

	values := valuesFromEnv(fields, func(k string) string { return env[k] })
	assert.Equal(t, "AKIAEXAMPLE", values["access_key_id"])
	assert.Equal(t, "secret", values["secret_access_key"])
	assert.Equal(t, "us-east-1", values["region"])
	assert.Empty(t, values["session_token"])
}

func TestBuildCredentials(t *testing.T) {
	noFile := func(string) ([]byte, error) { return nil, os.ErrNotExist }

	t.Run("aws", func(t *testing.T) {
		credJSON, err := buildCredentials(domain.ProviderAWS, map[string]string{
			"access_key_id": "AKIAEXAMPLE", "secret_access_key": "secret", "region": "eu-west-1",
		}, noFile)
		require.NoError(t, err)
		assert.JSONEq(t, `{"access_key_id":"AKIAEXAMPLE","secret_access_key":"secret","region":"eu-west-1"}`, string(credJSON))
	})

	t.Run("aws missing secret", func(t *testing.T) {
		_, err := buildCredentials(domain.ProviderAWS, map[string]string{"access_key_id": "AKIAEXAMPLE"}, noFile)
		assert.Error(t, err)
	})

	t.Run("gcp reads key file", func(t *testing.T) {
		key := `{"type":"service_account","client_email":"deployer@acme.iam.gserviceaccount.com"}`
		read := func(path string) ([]byte, error) {
			assert.Equal(t, "/keys/sa.json", path)
			return []byte(key), nil
		}
		credJSON, err := buildCredentials(domain.ProviderGCP, map[string]string{
			"project_id": "acme-prod", "key_file": "/keys/sa.json",
		}, read)
		require.NoError(t, err)

		var creds map[string]string
		require.NoError(t, json.Unmarshal(credJSON, &creds))
		assert.Equal(t, key, creds["service_account_key"])
		assert.Equal(t, "acme-prod", creds["project_id"])
	})

	t.Run("gcp missing key file", func(t *testing.T) {
		_, err := buildCredentials(domain.ProviderGCP, map[string]string{"project_id": "acme-prod", "key_file": "/nope"}, noFile)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestExitCode(t *testing.T) {
	c := &CLI{errOut: &bytes.Buffer{}}
	ctx := context.Background()

	assert.Equal(t, ExitSuccess, c.exitCode(ctx, nil))
	assert.Equal(t, ExitFailure, c.exitCode(ctx, errors.New("boom")))
	assert.Equal(t, ExitDatabaseError, c.exitCode(ctx, &AppError{Op: "NewApp", Err: errors.New("locked"), ExitCode: ExitDatabaseError}))
	assert.Equal(t, ExitUnsupported, c.exitCode(ctx, &domain.UnsupportedProviderError{Provider: domain.ProviderAzure}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, ExitInterrupted, c.exitCode(cancelled, context.Canceled))
}
