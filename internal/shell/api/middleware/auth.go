// Package middleware provides HTTP middleware for the keyhours API.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/artpar/keyhours/internal/core/auth"
	"go.uber.org/zap"
)

// =============================================================================
// Auth Configuration
// =============================================================================

// Auth modes.
const (
	ModeJWT = "jwt"
	ModeDev = "dev"
)

// TokenVerifier turns a bearer token into a principal.
// *auth.TokenIssuer implements this interface.
type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// Mode is "jwt" (bearer tokens only) or "dev" (X-User-ID/X-User-Type
	// headers, bearer tokens still honored when a verifier is set).
	Mode string

	// Verifier checks bearer tokens. Required in jwt mode.
	Verifier TokenVerifier

	// Logger for auth middleware logging.
	Logger *zap.Logger
}

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware resolves the request principal and stores it in the
// request context.
type AuthMiddleware struct {
	config AuthConfig
}

// NewAuthMiddleware creates a new auth middleware with the given config.
func NewAuthMiddleware(cfg AuthConfig) *AuthMiddleware {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeJWT
	}
	return &AuthMiddleware{config: cfg}
}

// Handler returns the middleware handler function. A request without
// credentials continues as anonymous; a request with a bad token is
// rejected with 401.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := auth.Anonymous()
		headers := auth.RequestHeaders(r)

		if token := auth.BearerToken(headers); token != "" {
			if m.config.Verifier == nil {
				m.config.Logger.Warn("bearer token presented but token verification is disabled",
					zap.String("path", r.URL.Path),
				)
				WriteJSONError(w, http.StatusUnauthorized, "token verification is disabled", "unauthenticated")
				return
			}
			p, err := m.config.Verifier.Verify(token)
			if err != nil {
				m.config.Logger.Info("rejected bearer token",
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				WriteJSONError(w, http.StatusUnauthorized, err.Error(), "unauthenticated")
				return
			}
			principal = p
		} else if m.config.Mode == ModeDev {
			principal = auth.ExtractDevPrincipal(headers)
		}

		r = r.WithContext(auth.WithPrincipal(r.Context(), principal))
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Require Auth Middleware
// =============================================================================

// RequireAuth rejects anonymous requests with 401.
// Must be used AFTER AuthMiddleware.
func RequireAuth(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.FromContext(r.Context()).Authenticated {
				logger.Warn("unauthenticated request to protected endpoint",
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
				)
				WriteJSONError(w, http.StatusUnauthorized, "authentication required", "unauthenticated")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// JSON Error Response
// =============================================================================

// ErrorResponse is the error body shared by the middleware and handlers.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// WriteJSONError writes an ErrorResponse.
func WriteJSONError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}
