package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/shell/api/middleware"
	"github.com/artpar/autodeploy/internal/shell/credentials"
	"github.com/artpar/autodeploy/internal/shell/pipeline"
	"github.com/artpar/autodeploy/internal/shell/store"
)

// =============================================================================
// Test Helpers
// =============================================================================

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testPlan() domain.Plan {
	return domain.Plan{
		Provider:     domain.ProviderAWS,
		Topology:     domain.TopologySingleVM,
		Region:       "us-east-1",
		InstanceType: "t3.micro",
		Resources: []domain.ResourceSpec{
			{Kind: domain.KindCompute, Type: "aws_instance", Name: "app"},
		},
		EstimatedMonthlyCost: domain.Cost{Amount: 7.59, Currency: "USD"},
		Rationale:            []string{"A single VM fits a small Flask app"},
	}
}

type fakePlanner struct {
	store    store.Store
	err      error
	requests []pipeline.Request
}

func (f *fakePlanner) Plan(ctx context.Context, req pipeline.Request) (*pipeline.Planned, error) {
	f.requests = append(f.requests, req)
	d := deployment.New("dep-plan", req.Description, req.Repository, req.DryRun, testTime)
	plan := testPlan()
	if f.err != nil {
		plan.Provider, plan.Topology = domain.ProviderAzure, domain.TopologyUnsupported
		d.Provider, d.Topology = plan.Provider, plan.Topology
		_ = d.Fail(f.err.Error(), testTime)
		return &pipeline.Planned{Deployment: d, Plan: plan}, f.err
	}
	if err := d.Planned(plan, "/srv/out/deployment_20260301_120000", "b3d1", testTime); err != nil {
		return nil, err
	}
	return &pipeline.Planned{Deployment: d, Plan: plan, Warnings: []string{"no lockfile"}}, nil
}

func (f *fakePlanner) Enqueue(ctx context.Context, req pipeline.Request) (*deployment.Deployment, error) {
	f.requests = append(f.requests, req)
	d := deployment.New("dep-queued", req.Description, req.Repository, req.DryRun, testTime)
	if err := f.store.CreateDeployment(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

type fakeCredentials struct {
	statuses []credentials.Status
	err      error
}

func (f fakeCredentials) Status(ctx context.Context) ([]credentials.Status, error) {
	return f.statuses, f.err
}

type testEnv struct {
	store   *store.SQLiteStore
	planner *fakePlanner
	handler *Handler
	router  http.Handler
}

func setupTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	planner := &fakePlanner{store: st}
	creds := fakeCredentials{statuses: []credentials.Status{
		{Provider: domain.ProviderAWS, Configured: true, Hint: "AKIA...WXYZ"},
		{Provider: domain.ProviderGCP},
	}}
	h := NewHandler(planner, st, creds, cfg, nil)
	return &testEnv{store: st, planner: planner, handler: h, router: h.Routes()}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) seedDeployment(t *testing.T, id string, status deployment.Status) *deployment.Deployment {
	t.Helper()
	ctx := context.Background()
	d := deployment.New(id, "deploy a flask app on aws", "https://github.com/acme/shop", false, testTime)
	require.NoError(t, e.store.CreateDeployment(ctx, d))
	if status == deployment.StatusPending {
		return d
	}
	require.NoError(t, d.Planned(testPlan(), "/srv/out/"+id, "b3d1", testTime))
	if status == deployment.StatusApplying || status == deployment.StatusSucceeded {
		require.NoError(t, d.Transition(deployment.StatusApplying, testTime))
	}
	if status == deployment.StatusSucceeded {
		require.NoError(t, d.Succeed(map[string]string{"instance_ip": "203.0.113.7"}, testTime))
	}
	require.NoError(t, e.store.UpdateDeployment(ctx, d))
	return d
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHealth(t *testing.T) {
	env := setupTestEnv(t, Config{})

	rec := env.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "healthy", decode[HealthResponse](t, rec).Status)
}

func TestReady(t *testing.T) {
	env := setupTestEnv(t, Config{})

	rec := env.do(t, "GET", "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ReadyResponse](t, rec)
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
}

// =============================================================================
// Plan Tests
// =============================================================================

func TestPlan_Success(t *testing.T) {
	env := setupTestEnv(t, Config{})

	rec := env.do(t, "POST", "/api/v1/plans",
		`{"description": "Deploy this Flask app with Postgres", "repository": "acme/shop", "provider": "Amazon", "dry_run": true, "values": {"app_port": "5000"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[PlanResponse](t, rec)
	assert.Equal(t, "dep-plan", resp.Deployment.ID)
	assert.Equal(t, "planned", resp.Deployment.Status)
	assert.True(t, resp.Deployment.DryRun)
	assert.Equal(t, "Single VM", resp.Plan.TopologyName)
	assert.Equal(t, []string{"aws_instance.app"}, resp.Plan.Resources)
	assert.Equal(t, 7.59, resp.Plan.EstimatedMonthlyCost)
	assert.Equal(t, []string{"no lockfile"}, resp.Warnings)

	require.Len(t, env.planner.requests, 1)
	req := env.planner.requests[0]
	assert.Equal(t, domain.ProviderAWS, req.Provider)
	assert.Equal(t, "acme/shop", req.Repository)
	assert.Equal(t, map[string]string{"app_port": "5000"}, req.Values)
}

func TestPlan_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing description", `{"repository": "acme/shop"}`},
		{"blank description", `{"description": "   "}`},
		{"wrong type", `{"description": 42}`},
		{"values must be strings", `{"description": "x", "values": {"port": 5000}}`},
		{"unknown provider", `{"description": "x", "provider": "oracle"}`},
		{"not json", `deploy it`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t, Config{})

			rec := env.do(t, "POST", "/api/v1/plans", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "validation_error", decode[ErrorResponse](t, rec).Code)
			assert.Empty(t, env.planner.requests)
		})
	}
}

func TestPlan_UnsupportedProvider(t *testing.T) {
	env := setupTestEnv(t, Config{})
	env.planner.err = &domain.UnsupportedProviderError{Provider: domain.ProviderAzure}

	rec := env.do(t, "POST", "/api/v1/plans", `{"description": "Deploy on Azure"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		ErrorResponse
		Deployment DeploymentResponse `json:"deployment"`
		Rationale  []string           `json:"rationale"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unsupported_provider", resp.Code)
	assert.Contains(t, resp.Error, "Azure is not supported yet")
	assert.Equal(t, "failed", resp.Deployment.Status)
	assert.Equal(t, "unsupported", resp.Deployment.Topology)
	assert.NotEmpty(t, resp.Rationale)
}

func TestPlan_InternalError(t *testing.T) {
	env := setupTestEnv(t, Config{})
	env.planner.err = errors.New("disk full")

	rec := env.do(t, "POST", "/api/v1/plans", `{"description": "Deploy on AWS"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decode[ErrorResponse](t, rec).Code)
}

// =============================================================================
// Deployment Tests
// =============================================================================

func TestCreateDeployment_Queues(t *testing.T) {
	env := setupTestEnv(t, Config{})

	rec := env.do(t, "POST", "/api/v1/deployments", `{"description": "Deploy my static site on GCP"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/v1/deployments/dep-queued", rec.Header().Get("Location"))
	assert.Equal(t, "pending", decode[DeploymentResponse](t, rec).Status)

	got, err := env.store.GetDeployment(context.Background(), "dep-queued")
	require.NoError(t, err)
	assert.Equal(t, deployment.StatusPending, got.Status)
}

func TestListDeployments(t *testing.T) {
	env := setupTestEnv(t, Config{})
	env.seedDeployment(t, "dep-1", deployment.StatusPending)
	env.seedDeployment(t, "dep-2", deployment.StatusSucceeded)

	rec := env.do(t, "GET", "/api/v1/deployments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ListDeploymentsResponse](t, rec)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 100, resp.Limit)

	rec = env.do(t, "GET", "/api/v1/deployments?status=succeeded&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[ListDeploymentsResponse](t, rec)
	require.Len(t, resp.Deployments, 1)
	assert.Equal(t, "dep-2", resp.Deployments[0].ID)
	assert.Equal(t, "http://203.0.113.7", resp.Deployments[0].AppURL)
	assert.Equal(t, 10, resp.Limit)

	rec = env.do(t, "GET", "/api/v1/deployments?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "GET", "/api/v1/deployments?status=running", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDeployment(t *testing.T) {
	env := setupTestEnv(t, Config{})
	env.seedDeployment(t, "dep-1", deployment.StatusPlanned)

	rec := env.do(t, "GET", "/api/v1/deployments/dep-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[DeploymentResponse](t, rec)
	assert.Equal(t, "aws", resp.Provider)
	assert.Equal(t, "single_vm", resp.Topology)
	assert.Equal(t, "b3d1", resp.Digest)

	rec = env.do(t, "GET", "/api/v1/deployments/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "deployment_not_found", decode[ErrorResponse](t, rec).Code)
}

func TestGetPlan(t *testing.T) {
	env := setupTestEnv(t, Config{})
	env.seedDeployment(t, "dep-1", deployment.StatusPlanned)
	env.seedDeployment(t, "dep-2", deployment.StatusPending)

	planJSON, err := json.Marshal(testPlan())
	require.NoError(t, err)
	require.NoError(t, env.store.SavePlan(context.Background(), "dep-1", planJSON))

	rec := env.do(t, "GET", "/api/v1/deployments/dep-1/plan", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := domain.DecodePlan(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, domain.TopologySingleVM, got.Topology)

	rec = env.do(t, "GET", "/api/v1/deployments/dep-2/plan", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "plan_not_found", decode[ErrorResponse](t, rec).Code)
}

func TestListLogs(t *testing.T) {
	env := setupTestEnv(t, Config{})
	env.seedDeployment(t, "dep-1", deployment.StatusApplying)
	ctx := context.Background()
	for _, line := range []string{"Initializing...", "Plan: 3 to add", "Apply complete!"} {
		require.NoError(t, env.store.AppendLog(ctx, "dep-1", "apply", line))
	}

	rec := env.do(t, "GET", "/api/v1/deployments/dep-1/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[LogsResponse](t, rec)
	require.Len(t, all.Lines, 3)

	rec = env.do(t, "GET", "/api/v1/deployments/dep-1/logs?after="+itoa(all.Lines[0].Seq), "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[LogsResponse](t, rec)
	require.Len(t, page.Lines, 2)
	assert.Equal(t, "Plan: 3 to add", page.Lines[0].Line)
	assert.Equal(t, all.Lines[2].Seq, page.Next)

	rec = env.do(t, "GET", "/api/v1/deployments/dep-1/logs?after="+itoa(page.Next), "")
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[LogsResponse](t, rec)
	assert.Empty(t, empty.Lines)
	assert.Equal(t, page.Next, empty.Next)
}

// =============================================================================
// Credential Tests
// =============================================================================

func TestListCredentials(t *testing.T) {
	env := setupTestEnv(t, Config{})

	rec := env.do(t, "GET", "/api/v1/credentials", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ListCredentialsResponse](t, rec)
	require.Len(t, resp.Credentials, 2)
	assert.Equal(t, CredentialStatusResponse{Provider: "aws", Configured: true, Hint: "AKIA...WXYZ"}, resp.Credentials[0])
	assert.False(t, resp.Credentials[1].Configured)
}

// =============================================================================
// OpenAPI and Auth Tests
// =============================================================================

func TestOpenAPIDocument(t *testing.T) {
	env := setupTestEnv(t, Config{Version: "1.2.3"})

	rec := env.do(t, "GET", "/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Info  struct{ Version string } `json:"info"`
		Paths map[string]map[string]struct {
			OperationID string `json:"operationId"`
		} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "1.2.3", doc.Info.Version)
	assert.Equal(t, "createPlan", doc.Paths["/api/v1/plans"]["post"].OperationID)
	assert.Equal(t, "listDeployments", doc.Paths["/api/v1/deployments"]["get"].OperationID)
	assert.Equal(t, "createDeployment", doc.Paths["/api/v1/deployments"]["post"].OperationID)
	assert.Contains(t, doc.Paths, "/api/v1/deployments/{id}/logs")
}

func TestAuthToken(t *testing.T) {
	auth := middleware.NewAuthMiddleware(middleware.AuthConfig{Tokens: []string{"s3cret"}})
	env := setupTestEnv(t, Config{Middleware: []func(http.Handler) http.Handler{auth.Handler}})

	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, "GET", "/api/v1/deployments", "").Code)

	req := httptest.NewRequest("GET", "/api/v1/deployments", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// Log Stream Tests
// =============================================================================

func dialStream(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/deployments/" + id + "/logs/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStreamLogs_FinishedDeployment(t *testing.T) {
	env := setupTestEnv(t, Config{StreamPoll: 10 * time.Millisecond})
	env.seedDeployment(t, "dep-1", deployment.StatusSucceeded)
	ctx := context.Background()
	require.NoError(t, env.store.AppendLog(ctx, "dep-1", "init", "Terraform has been successfully initialized!"))
	require.NoError(t, env.store.AppendLog(ctx, "dep-1", "apply", "Apply complete! Resources: 3 added"))

	srv := httptest.NewServer(env.router)
	defer srv.Close()
	conn := dialStream(t, srv, "dep-1")

	first := readMessage(t, conn)
	assert.Equal(t, "log", first.Type)
	assert.Equal(t, "init", first.Step)

	second := readMessage(t, conn)
	assert.Equal(t, "Apply complete! Resources: 3 added", second.Line)
	assert.Greater(t, second.Seq, first.Seq)

	final := readMessage(t, conn)
	assert.Equal(t, StreamMessage{Type: "status", Status: "succeeded", AppURL: "http://203.0.113.7"}, final)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "%v", err)
}

func TestStreamLogs_FollowsProgress(t *testing.T) {
	env := setupTestEnv(t, Config{StreamPoll: 10 * time.Millisecond})
	d := env.seedDeployment(t, "dep-1", deployment.StatusApplying)
	ctx := context.Background()
	require.NoError(t, env.store.AppendLog(ctx, "dep-1", "apply", "aws_instance.app: Creating..."))

	srv := httptest.NewServer(env.router)
	defer srv.Close()
	conn := dialStream(t, srv, "dep-1")

	assert.Equal(t, "aws_instance.app: Creating...", readMessage(t, conn).Line)

	require.NoError(t, env.store.AppendLog(ctx, "dep-1", "apply", "Error: quota exceeded"))
	require.NoError(t, d.Fail("terraform apply exited with code 1", testTime))
	require.NoError(t, env.store.UpdateDeployment(ctx, d))

	assert.Equal(t, "Error: quota exceeded", readMessage(t, conn).Line)
	final := readMessage(t, conn)
	assert.Equal(t, "failed", final.Status)
	assert.Equal(t, "terraform apply exited with code 1", final.Error)
}

func TestStreamLogs_UnknownDeployment(t *testing.T) {
	env := setupTestEnv(t, Config{})

	rec := env.do(t, "GET", "/api/v1/deployments/missing/logs/stream", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
