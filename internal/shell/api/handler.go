// Package api provides HTTP handlers for the autodeploy API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/core/validation"
	"github.com/artpar/autodeploy/internal/shell/analyzer"
	"github.com/artpar/autodeploy/internal/shell/api/openapi"
	"github.com/artpar/autodeploy/internal/shell/credentials"
	"github.com/artpar/autodeploy/internal/shell/pipeline"
	"github.com/artpar/autodeploy/internal/shell/store"
)

// =============================================================================
// Dependencies
// =============================================================================

// Planner plans deployments synchronously or queues them for the workers.
type Planner interface {
	Plan(ctx context.Context, req pipeline.Request) (*pipeline.Planned, error)
	Enqueue(ctx context.Context, req pipeline.Request) (*deployment.Deployment, error)
}

// CredentialLister lists the configured providers.
type CredentialLister interface {
	Status(ctx context.Context) ([]credentials.Status, error)
}

// Config holds optional handler settings.
type Config struct {
	// Middleware runs after the request ID middleware, e.g. authentication.
	Middleware []func(http.Handler) http.Handler
	// StreamPoll is how often the log stream polls the store. Default 1s.
	StreamPoll time.Duration
	// Version is reported in the OpenAPI document.
	Version string
}

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	planner     Planner
	store       store.Store
	credentials CredentialLister
	openapi     *openapi.Generator
	config      Config
	logger      *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(p Planner, s store.Store, c CredentialLister, cfg Config, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if cfg.StreamPoll <= 0 {
		cfg.StreamPoll = time.Second
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Handler{
		planner:     p,
		store:       s,
		credentials: c,
		openapi:     newGenerator(cfg.Version),
		config:      cfg,
		logger:      l.With("component", "api"),
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.jsonOnly(h.handleHealth))
	r.Get("/ready", h.jsonOnly(h.handleReady))
	r.Get("/openapi.json", h.openapi.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		for _, mw := range h.config.Middleware {
			r.Use(mw)
		}

		// The stream upgrades the connection and writes its own frames.
		r.Get("/deployments/{id}/logs/stream", h.handleStreamLogs)

		r.Group(func(r chi.Router) {
			r.Use(h.jsonContentType)
			r.Use(h.openapi.Validator(h.writeValidationError))

			r.Post("/plans", h.handlePlan)

			r.Post("/deployments", h.handleCreateDeployment)
			r.Get("/deployments", h.handleListDeployments)
			r.Get("/deployments/{id}", h.handleGetDeployment)
			r.Get("/deployments/{id}/plan", h.handleGetPlan)
			r.Get("/deployments/{id}/logs", h.handleListLogs)

			r.Get("/credentials", h.handleListCredentials)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) jsonOnly(fn http.HandlerFunc) http.HandlerFunc {
	return h.jsonContentType(fn).ServeHTTP
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if _, err := h.store.ListDeployments(r.Context(), store.ListOptions{Limit: 1}); err != nil {
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDeploymentRequest(w, r)
	if !ok {
		return
	}

	planned, err := h.planner.Plan(r.Context(), req)
	if err != nil {
		h.writePlanError(w, planned, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, PlanResponse{
		Deployment: deploymentToResponse(planned.Deployment),
		Plan:       planToSummary(planned.Plan),
		Warnings:   planned.Warnings,
	})
}

func (h *Handler) handleCreateDeployment(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDeploymentRequest(w, r)
	if !ok {
		return
	}

	d, err := h.planner.Enqueue(r.Context(), req)
	if err != nil {
		h.logger.Error("failed to queue deployment", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to queue deployment", "internal_error")
		return
	}

	w.Header().Set("Location", "/api/v1/deployments/"+d.ID)
	h.writeJSON(w, http.StatusAccepted, deploymentToResponse(d))
}

func (h *Handler) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDeployment(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, deploymentToResponse(d))
}

func (h *Handler) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)

	var (
		deployments []deployment.Deployment
		err         error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := deployment.ParseStatus(raw)
		if !ok {
			h.writeError(w, http.StatusBadRequest, "unknown status: "+raw, "validation_error")
			return
		}
		deployments, err = h.store.ListDeploymentsByStatus(r.Context(), status, opts)
	} else {
		deployments, err = h.store.ListDeployments(r.Context(), opts)
	}
	if err != nil {
		h.logger.Error("failed to list deployments", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list deployments", "internal_error")
		return
	}

	opts = opts.Normalize()
	resp := ListDeploymentsResponse{
		Deployments: make([]DeploymentResponse, 0, len(deployments)),
		Total:       len(deployments),
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	}
	for i := range deployments {
		resp.Deployments = append(resp.Deployments, deploymentToResponse(&deployments[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	planJSON, err := h.store.GetPlan(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "plan not found", "plan_not_found")
			return
		}
		h.logger.Error("failed to get plan", "deployment_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get plan", "internal_error")
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(planJSON)
}

func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDeployment(w, r)
	if !ok {
		return
	}

	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			after = n
		}
	}
	opts := listOptions(r).Normalize()

	lines, err := h.store.ListLogs(r.Context(), d.ID, after, opts.Limit)
	if err != nil {
		h.logger.Error("failed to list logs", "deployment_id", d.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list logs", "internal_error")
		return
	}

	resp := LogsResponse{Lines: make([]LogLineResponse, 0, len(lines)), Next: after}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, logLineToResponse(l))
		resp.Next = l.Seq
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Credential Handlers
// =============================================================================

func (h *Handler) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.credentials.Status(r.Context())
	if err != nil {
		h.logger.Error("failed to list credentials", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list credentials", "internal_error")
		return
	}

	resp := ListCredentialsResponse{Credentials: make([]CredentialStatusResponse, 0, len(statuses))}
	for _, s := range statuses {
		resp.Credentials = append(resp.Credentials, CredentialStatusResponse{
			Provider:   string(s.Provider),
			Configured: s.Configured,
			Hint:       s.Hint,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) decodeDeploymentRequest(w http.ResponseWriter, r *http.Request) (pipeline.Request, bool) {
	var body DeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return pipeline.Request{}, false
	}
	if strings.TrimSpace(body.Description) == "" {
		h.writeError(w, http.StatusBadRequest, "description is required", "validation_error")
		return pipeline.Request{}, false
	}

	req := pipeline.Request{
		Description: body.Description,
		Repository:  body.Repository,
		DryRun:      body.DryRun,
		Values:      body.Values,
	}
	if body.Provider != "" {
		req.Provider = domain.ParseProvider(body.Provider)
		if req.Provider == domain.ProviderUnspecified {
			h.writeError(w, http.StatusBadRequest, "unknown provider "+strconv.Quote(body.Provider), "validation_error")
			return pipeline.Request{}, false
		}
	}
	return req, true
}

func (h *Handler) loadDeployment(w http.ResponseWriter, r *http.Request) (*deployment.Deployment, bool) {
	id := chi.URLParam(r, "id")

	d, err := h.store.GetDeployment(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "deployment not found", "deployment_not_found")
			return nil, false
		}
		h.logger.Error("failed to get deployment", "deployment_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get deployment", "internal_error")
		return nil, false
	}
	return d, true
}

// writePlanError maps pipeline failures onto status codes. The failed
// deployment record is included when one was created.
func (h *Handler) writePlanError(w http.ResponseWriter, planned *pipeline.Planned, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, domain.ErrUnsupportedProvider):
		status, code = http.StatusUnprocessableEntity, "unsupported_provider"
	case errors.Is(err, analyzer.ErrInvalidSource):
		status, code = http.StatusBadRequest, "invalid_repository"
	case errors.Is(err, validation.ErrInconsistentPlan):
		code = "inconsistent_plan"
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("failed to plan deployment", "error", err)
	}

	if planned == nil || planned.Deployment == nil {
		h.writeError(w, status, err.Error(), code)
		return
	}
	h.writeJSON(w, status, struct {
		ErrorResponse
		Deployment DeploymentResponse `json:"deployment"`
		Rationale  []string           `json:"rationale,omitempty"`
	}{
		ErrorResponse: ErrorResponse{Error: err.Error(), Code: code},
		Deployment:    deploymentToResponse(planned.Deployment),
		Rationale:     planned.Plan.Rationale,
	})
}

func (h *Handler) writeValidationError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status == http.StatusInternalServerError {
		h.logger.Error("failed to build request validator", "error", err)
		h.writeError(w, status, "request validation unavailable", "internal_error")
		return
	}
	h.writeError(w, status, err.Error(), "validation_error")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func listOptions(r *http.Request) store.ListOptions {
	opts := store.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}
	return opts
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
