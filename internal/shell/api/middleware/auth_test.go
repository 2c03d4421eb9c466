package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/artpar/keyhours/internal/core/auth"
	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

const testSecret = "0123456789abcdef0123456789abcdef"

// testHandler echoes the principal stored by the middleware.
func testHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"authenticated": p.Authenticated,
			"user_id":       p.UserID,
			"user_type":     p.UserType,
		})
	})
}

func serve(t *testing.T, h http.Handler, req *http.Request) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func newIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	return issuer
}

// =============================================================================
// AuthMiddleware Tests
// =============================================================================

func TestAuthMiddleware_JWT_ValidToken(t *testing.T) {
	issuer := newIssuer(t)
	token, _, err := issuer.Issue(&domain.User{ID: 7, UserType: domain.UserTypeAdmin})
	require.NoError(t, err)

	handler := NewAuthMiddleware(AuthConfig{Mode: ModeJWT, Verifier: issuer}).Handler(testHandler())
	req := httptest.NewRequest("GET", "/api/v1/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	code, body := serve(t, handler, req)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, float64(7), body["user_id"])
	assert.Equal(t, "admin", body["user_type"])
}

func TestAuthMiddleware_JWT_InvalidToken(t *testing.T) {
	handler := NewAuthMiddleware(AuthConfig{Mode: ModeJWT, Verifier: newIssuer(t)}).Handler(testHandler())
	req := httptest.NewRequest("GET", "/api/v1/test", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")

	code, body := serve(t, handler, req)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthenticated", body["code"])
}

func TestAuthMiddleware_JWT_IgnoresDevHeaders(t *testing.T) {
	handler := NewAuthMiddleware(AuthConfig{Mode: ModeJWT, Verifier: newIssuer(t)}).Handler(testHandler())
	req := httptest.NewRequest("GET", "/api/v1/test", nil)
	req.Header.Set(auth.HeaderUserID, "3")
	req.Header.Set(auth.HeaderUserType, "admin")

	code, body := serve(t, handler, req)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["authenticated"])
}

func TestAuthMiddleware_EmptyMode_DefaultsToJWT(t *testing.T) {
	handler := NewAuthMiddleware(AuthConfig{}).Handler(testHandler())
	req := httptest.NewRequest("GET", "/api/v1/test", nil)
	req.Header.Set(auth.HeaderUserID, "3")

	_, body := serve(t, handler, req)
	assert.Equal(t, false, body["authenticated"])
}

func TestAuthMiddleware_BearerWithoutVerifier(t *testing.T) {
	handler := NewAuthMiddleware(AuthConfig{Mode: ModeDev}).Handler(testHandler())
	req := httptest.NewRequest("GET", "/api/v1/test", nil)
	req.Header.Set("Authorization", "Bearer abc")

	code, _ := serve(t, handler, req)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAuthMiddleware_DevHeaders(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		userType string
		wantAuth bool
		wantType string
	}{
		{"student default", "12", "", true, "student"},
		{"admin", "1", "ADMIN", true, "admin"},
		{"unknown role", "1", "root", false, ""},
		{"bad id", "abc", "admin", false, ""},
		{"no headers", "", "", false, ""},
	}

	handler := NewAuthMiddleware(AuthConfig{Mode: ModeDev}).Handler(testHandler())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/test", nil)
			if tt.userID != "" {
				req.Header.Set(auth.HeaderUserID, tt.userID)
			}
			if tt.userType != "" {
				req.Header.Set(auth.HeaderUserType, tt.userType)
			}
			code, body := serve(t, handler, req)
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.wantAuth, body["authenticated"])
			assert.Equal(t, tt.wantType, body["user_type"])
		})
	}
}

// =============================================================================
// RequireAuth Tests
// =============================================================================

func TestRequireAuth(t *testing.T) {
	chain := NewAuthMiddleware(AuthConfig{Mode: ModeDev}).Handler(RequireAuth(nil)(testHandler()))

	t.Run("anonymous rejected", func(t *testing.T) {
		code, body := serve(t, chain, httptest.NewRequest("GET", "/api/v1/test", nil))
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "authentication required", body["error"])
	})

	t.Run("authenticated passes", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/test", nil)
		req.Header.Set(auth.HeaderUserID, "5")
		code, body := serve(t, chain, req)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, body["authenticated"])
	})
}
