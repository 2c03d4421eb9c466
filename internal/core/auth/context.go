// Package auth provides the request principal, token handling and the
// authorization policy.
package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/artpar/keyhours/internal/core/domain"
)

// =============================================================================
// Context Key
// =============================================================================

type contextKey string

const principalContextKey contextKey = "principal"

// =============================================================================
// Types
// =============================================================================

// Principal is the authenticated caller of a request.
type Principal struct {
	// UserID is the users table primary key.
	UserID int64

	// UserType is the role claim carried by the token.
	UserType domain.UserType

	// TokenID is the jti of the bearer token, empty in dev mode.
	TokenID string

	// Authenticated indicates whether the request is authenticated
	Authenticated bool
}

// IsAdmin reports whether the principal is an authenticated administrator.
func (p Principal) IsAdmin() bool {
	return p.Authenticated && p.UserType == domain.UserTypeAdmin
}

// IsStudent reports whether the principal is an authenticated student.
func (p Principal) IsStudent() bool {
	return p.Authenticated && p.UserType == domain.UserTypeStudent
}

// Anonymous returns the unauthenticated principal.
func Anonymous() Principal {
	return Principal{Authenticated: false}
}

// ForUser returns an authenticated principal for a stored user.
func ForUser(u *domain.User) Principal {
	return Principal{UserID: u.ID, UserType: u.UserType, Authenticated: true}
}

// System is the principal of in-process jobs such as the summary
// refresher. It holds the administrator role and no user id.
func System() Principal {
	return Principal{UserType: domain.UserTypeAdmin, TokenID: "system", Authenticated: true}
}

// =============================================================================
// Header Constants
// =============================================================================

const (
	// HeaderAuthorization carries "Bearer <jwt>".
	HeaderAuthorization = "Authorization"

	// HeaderUserID is the dev-mode header naming the caller's user id.
	HeaderUserID = "X-User-ID"

	// HeaderUserType is the dev-mode header naming the caller's role.
	HeaderUserType = "X-User-Type"
)

// =============================================================================
// Context Extraction
// =============================================================================

// HeaderGetter is an interface for getting header values.
// This allows testing without requiring an http.Request.
type HeaderGetter interface {
	Get(key string) string
}

// ExtractDevPrincipal reads the dev-mode identity headers. A missing or
// malformed user id, or an unknown role, yields the anonymous principal.
func ExtractDevPrincipal(headers HeaderGetter) Principal {
	rawID := strings.TrimSpace(headers.Get(HeaderUserID))
	if rawID == "" {
		return Anonymous()
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return Anonymous()
	}
	userType := domain.UserType(strings.ToLower(strings.TrimSpace(headers.Get(HeaderUserType))))
	if userType == "" {
		userType = domain.UserTypeStudent
	}
	if !userType.Valid() {
		return Anonymous()
	}
	return Principal{UserID: id, UserType: userType, Authenticated: true}
}

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(headers HeaderGetter) string {
	parts := strings.SplitN(headers.Get(HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequestHeaders adapts an *http.Request to HeaderGetter.
func RequestHeaders(r *http.Request) HeaderGetter {
	return r.Header
}

// =============================================================================
// Context Storage
// =============================================================================

// WithPrincipal stores the principal in the request context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// FromContext retrieves the principal from the request context.
// If none is found, returns the anonymous principal.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalContextKey).(Principal); ok {
		return p
	}
	return Anonymous()
}

// =============================================================================
// Helper Types for Testing
// =============================================================================

// MapHeaderGetter wraps a map to implement HeaderGetter interface.
type MapHeaderGetter map[string]string

func (m MapHeaderGetter) Get(key string) string {
	return m[key]
}
