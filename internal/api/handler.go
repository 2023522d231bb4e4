// Package api exposes the HTTP surface: query execution, the named query
// catalog, health and readiness probes, and prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/querydesk/querydesk/internal/auth"
	"github.com/querydesk/querydesk/internal/catalog"
	"github.com/querydesk/querydesk/internal/observability"
	"github.com/querydesk/querydesk/internal/orchestrator"
	"github.com/querydesk/querydesk/internal/storage"
)

const (
	RoleQueryRunner = "query_runner"
	RoleQueryReader = "query_reader"
)

// Executor runs one query end to end. Satisfied by *orchestrator.Service.
type Executor interface {
	Execute(ctx context.Context, req orchestrator.QueryRequest) (orchestrator.ResultSet, error)
}

// ReadinessCheck probes one downstream dependency.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Dependencies struct {
	Logger   *slog.Logger
	Executor Executor
	Catalog  *catalog.Catalog

	// Artifacts serves result artifact downloads and cleanup. Nil when
	// the configured engine deposits no artifacts.
	Artifacts storage.ObjectStore

	// Auth wraps the query, catalog, and artifact routes when set.
	// Probes and metrics stay open.
	Auth func(http.Handler) http.Handler

	ReadinessChecks   []ReadinessCheck
	DependencyTimeout time.Duration
}

type handler struct {
	deps Dependencies
}

func NewHandler(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.DependencyTimeout <= 0 {
		deps.DependencyTimeout = 5 * time.Second
	}
	h := &handler{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", h.handleHealth)
	mux.HandleFunc("GET /v1/ready", h.handleReady)
	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/query", h.handleQuery)
	protected.HandleFunc("GET /v1/queries", h.handleListQueries)
	protected.HandleFunc("GET /v1/queries/{id}", h.handleGetQuery)
	protected.HandleFunc("GET /v1/artifacts/{handle}", h.handleGetArtifact)
	protected.HandleFunc("DELETE /v1/artifacts/{handle}", h.handleDeleteArtifact)

	var guarded http.Handler = protected
	if deps.Auth != nil {
		guarded = deps.Auth(protected)
	}
	mux.Handle("/v1/query", guarded)
	mux.Handle("/v1/queries", guarded)
	mux.Handle("/v1/queries/", guarded)
	mux.Handle("/v1/artifacts/", guarded)

	return observability.HTTPMiddleware(deps.Logger)(mux)
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.deps.DependencyTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps.ReadinessChecks))
	for _, check := range h.deps.ReadinessChecks {
		if err := check.Check(ctx); err != nil {
			checks[check.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[check.Name] = "ok"
	}
	writeJSON(w, status, map[string]any{
		"ready":  status == http.StatusOK,
		"checks": checks,
	})
}

// requireRole enforces role membership when an identity is present. Requests
// without an identity pass; the auth middleware already rejected unauthorized
// callers when auth is enabled.
func requireRole(w http.ResponseWriter, r *http.Request, role string) bool {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return true
	}
	if identity.HasRole(role) {
		return true
	}
	writeError(w, r, http.StatusForbidden, string(orchestrator.KindInvalidRequest), "missing required role "+role)
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	TraceID string `json:"traceId,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error": errorBody{
			Kind:    kind,
			Message: message,
			TraceID: observability.TraceIDFromContext(r.Context()),
		},
	})
}
