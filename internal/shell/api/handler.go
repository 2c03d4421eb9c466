// Package api provides HTTP handlers for the keyhours API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/keyhours/internal/core/auth"
	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/core/validation"
	"github.com/artpar/keyhours/internal/shell/api/middleware"
	"github.com/artpar/keyhours/internal/shell/api/openapi"
	"github.com/artpar/keyhours/internal/shell/metrics"
	"github.com/artpar/keyhours/internal/shell/store"
	"github.com/artpar/keyhours/internal/shell/workflow"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// =============================================================================
// Handler
// =============================================================================

// Config configures the HTTP layer.
type Config struct {
	// AuthMode is "jwt" or "dev".
	AuthMode string

	// Verifier checks bearer tokens. May be nil in dev mode.
	Verifier middleware.TokenVerifier

	// RequireAuth rejects anonymous requests to every /api/v1 route except
	// the token endpoint and the public project list.
	RequireAuth bool

	// ServerURL is advertised in the OpenAPI document.
	ServerURL string

	// Version is the API version reported by /openapi.json.
	Version string
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	svc     *workflow.Service
	metrics *metrics.Metrics
	authn   *middleware.AuthMiddleware
	spec    *openapi.Generator
	logger  *zap.Logger
	config  Config
}

// NewHandler creates a new API handler. m may be nil to disable /metrics.
func NewHandler(svc *workflow.Service, m *metrics.Metrics, logger *zap.Logger, cfg Config) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = middleware.ModeJWT
	}
	specOpts := []openapi.Option{}
	if cfg.ServerURL != "" {
		specOpts = append(specOpts, openapi.WithServer(cfg.ServerURL))
	}
	if cfg.Version != "" {
		specOpts = append(specOpts, openapi.WithVersion(cfg.Version))
	}
	h := &Handler{
		svc:     svc,
		metrics: m,
		authn: middleware.NewAuthMiddleware(middleware.AuthConfig{
			Mode:     cfg.AuthMode,
			Verifier: cfg.Verifier,
			Logger:   logger.Named("auth"),
		}),
		spec:   openapi.NewGenerator(specOpts...),
		logger: logger,
		config: cfg,
	}
	h.registerDocs()
	return h
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}
	r.Get("/openapi.json", h.spec.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.authn.Handler)

		// Open routes
		r.Post("/auth/token", h.handleToken)
		r.Get("/projects/public", h.handlePublicProjects)

		r.Group(func(r chi.Router) {
			if h.config.RequireAuth {
				r.Use(middleware.RequireAuth(h.logger.Named("auth")))
			}
			h.userRoutes(r)
			h.projectRoutes(r)
			h.applicationRoutes(r)
			h.hourRoutes(r)
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

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := chimw.GetReqID(r.Context()); reqID != "" {
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
	checks := map[string]string{"database": "ok"}
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not_ready", Checks: checks})
		return
	}
	h.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready", Checks: checks})
}

// =============================================================================
// Request Helpers
// =============================================================================

func principal(r *http.Request) auth.Principal {
	return auth.FromContext(r.Context())
}

// decode reads a JSON body into v and validates its tags.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			return vErr
		}
		return domain.Invalidf("", "invalid JSON: %v", err)
	}
	return validation.Struct(v)
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Invalidf(name, "must be a positive integer")
	}
	return id, nil
}

// queryInt parses an optional integer query parameter; absent yields 0.
func queryInt(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, domain.Invalidf(name, "must be a non-negative integer")
	}
	return v, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.Invalidf(name, "must be true or false")
	}
	return v, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return nil, domain.Invalidf(name, "must be a date in YYYY-MM-DD format")
	}
	return &d, nil
}

// queryList splits a comma separated query parameter, dropping blanks.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, v := range strings.Split(r.URL.Query().Get(name), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// listOptions reads limit and offset, falling back to the store defaults.
func listOptions(r *http.Request) (store.ListOptions, error) {
	opts := store.DefaultListOptions()
	limit, err := queryInt(r, "limit")
	if err != nil {
		return opts, err
	}
	if limit > 0 {
		opts.Limit = int(min(limit, 1000))
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return opts, err
	}
	opts.Offset = int(offset)
	return opts, nil
}

// parseDate parses a validated request date.
func parseDate(field, raw string) (time.Time, error) {
	d, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, domain.Invalidf(field, "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

// parseOptionalDate parses a date that may be empty.
func parseOptionalDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := parseDate(field, raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// =============================================================================
// Response Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func writeList[T any](h *Handler, w http.ResponseWriter, items []T, opts store.ListOptions) {
	if items == nil {
		items = []T{}
	}
	h.writeJSON(w, http.StatusOK, ListResponse[T]{Data: items, Limit: opts.Limit, Offset: opts.Offset})
}

// writeServiceError translates a workflow error into an HTTP response.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidation(err):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "validation_error",
			Field: domain.FieldOf(err),
		})
	case errors.Is(err, store.ErrForeignKey):
		h.writeError(w, http.StatusBadRequest, "referenced entity does not exist", "validation_error")
	case errors.Is(err, store.ErrDuplicate):
		h.writeError(w, http.StatusConflict, "entity already exists", "conflict")
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, workflow.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, err.Error(), "unauthenticated")
	case errors.Is(err, auth.ErrForbidden):
		h.writeError(w, http.StatusForbidden, err.Error(), "forbidden")
	case store.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, "not found", "not_found")
	case errors.Is(err, workflow.ErrTokensDisabled):
		h.writeError(w, http.StatusNotImplemented, err.Error(), "tokens_disabled")
	default:
		h.logger.Error("request failed",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "internal server error", "internal_error")
	}
}

// respond writes v with status, or the translated error.
func respond[T any](h *Handler, w http.ResponseWriter, r *http.Request, status int, v T, err error) {
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, status, v)
}
