package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Dev Header Extraction
// =============================================================================

func TestExtractDevPrincipal(t *testing.T) {
	tests := []struct {
		name    string
		headers MapHeaderGetter
		want    Principal
	}{
		{"no headers", MapHeaderGetter{}, Anonymous()},
		{"student default", MapHeaderGetter{HeaderUserID: "12"},
			Principal{UserID: 12, UserType: domain.UserTypeStudent, Authenticated: true}},
		{"admin", MapHeaderGetter{HeaderUserID: "3", HeaderUserType: "Admin"},
			Principal{UserID: 3, UserType: domain.UserTypeAdmin, Authenticated: true}},
		{"bad id", MapHeaderGetter{HeaderUserID: "abc"}, Anonymous()},
		{"zero id", MapHeaderGetter{HeaderUserID: "0"}, Anonymous()},
		{"unknown role", MapHeaderGetter{HeaderUserID: "3", HeaderUserType: "professor"}, Anonymous()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDevPrincipal(tt.headers))
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc.def.ghi", BearerToken(MapHeaderGetter{HeaderAuthorization: "Bearer abc.def.ghi"}))
	assert.Equal(t, "tok", BearerToken(MapHeaderGetter{HeaderAuthorization: "bearer tok"}))
	assert.Empty(t, BearerToken(MapHeaderGetter{HeaderAuthorization: "Basic xyz"}))
	assert.Empty(t, BearerToken(MapHeaderGetter{}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer from-request")
	assert.Equal(t, "from-request", BearerToken(RequestHeaders(req)))
}

// =============================================================================
// Context Storage
// =============================================================================

func TestContextRoundTrip(t *testing.T) {
	p := student(9)
	ctx := WithPrincipal(context.Background(), p)
	assert.Equal(t, p, FromContext(ctx))
	assert.Equal(t, Anonymous(), FromContext(context.Background()))
}

// =============================================================================
// Tokens
// =============================================================================

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenIssuer_IssueAndVerify(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	token, expires, err := issuer.Issue(&domain.User{ID: 42, UserType: domain.UserTypeAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	p, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.UserID)
	assert.True(t, p.IsAdmin())
	assert.NotEmpty(t, p.TokenID)
}

func TestTokenIssuer_RejectsForeignSignature(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	other, err := NewTokenIssuer("ffffffffffffffffffffffffffffffff", time.Hour)
	require.NoError(t, err)

	token, _, err := other.Issue(&domain.User{ID: 1, UserType: domain.UserTypeStudent})
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Minute)
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := issuer.Issue(&domain.User{ID: 1, UserType: domain.UserTypeStudent})
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuer_ShortSecret(t *testing.T) {
	_, err := NewTokenIssuer("short", time.Hour)
	assert.ErrorIs(t, err, ErrSecretTooShort)
}

func TestPrincipal_Roles(t *testing.T) {
	assert.True(t, admin(1).IsAdmin())
	assert.False(t, admin(1).IsStudent())
	assert.True(t, student(1).IsStudent())
	assert.False(t, Principal{UserType: domain.UserTypeAdmin}.IsAdmin())
	assert.Equal(t, Principal{UserID: 4, UserType: domain.UserTypeStudent, Authenticated: true},
		ForUser(&domain.User{ID: 4, UserType: domain.UserTypeStudent}))
}
