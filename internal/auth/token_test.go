package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/auth"
	"github.com/noah-isme/storeengine/internal/common"
)

func newVerifier(now time.Time) *auth.Verifier {
	v := auth.NewVerifier([]byte("test-secret"), "storeengine", "admin", time.Second)
	v.Now = func() time.Time { return now }
	return v
}

func TestVerifierRoundTrip(t *testing.T) {
	now := time.Now()
	v := newVerifier(now)
	tok, err := v.Issue("ops@example.com", []string{auth.ScopeStoreAdmin, "orders:read"}, time.Minute)
	require.NoError(t, err)

	claims, err := v.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "ops@example.com", claims.Subject)
	require.True(t, claims.HasScope(auth.ScopeStoreAdmin))
	require.False(t, claims.HasScope("payments:write"))
}

func TestVerifierRejectsExpired(t *testing.T) {
	now := time.Now()
	tok, err := newVerifier(now.Add(-time.Hour)).Issue("sub", nil, time.Minute)
	require.NoError(t, err)

	_, err = newVerifier(now).Verify(tok)
	require.Error(t, err)
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	now := time.Now()
	tok, err := newVerifier(now).Issue("sub", nil, time.Minute)
	require.NoError(t, err)

	other := auth.NewVerifier([]byte("other"), "storeengine", "admin", 0)
	_, err = other.Verify(tok)
	require.Error(t, err)
}

func TestTokenValidator(t *testing.T) {
	now := time.Now()
	build := func(issuer string, exp time.Time) jwt.Token {
		tok, err := jwt.NewBuilder().
			Issuer(issuer).
			Audience([]string{"aud"}).
			IssuedAt(now).
			NotBefore(now).
			Expiration(exp).
			Build()
		require.NoError(t, err)
		return tok
	}
	validator := auth.TokenValidator{Issuer: "issuer", Audience: "aud", Algorithm: jwa.HS256}

	require.NoError(t, validator.Validate(build("issuer", now.Add(time.Minute)), jwa.HS256, now))
	require.Error(t, validator.Validate(build("other", now.Add(time.Minute)), jwa.HS256, now))
	require.Error(t, validator.Validate(build("issuer", now.Add(-time.Minute)), jwa.HS256, now))
	require.Error(t, validator.Validate(build("issuer", now.Add(time.Minute)), jwa.RS256, now))
}

func TestMiddlewareRequireScope(t *testing.T) {
	now := time.Now()
	v := newVerifier(now)
	var subject string
	h := auth.Middleware{Verifier: v, Scope: auth.ScopeStoreAdmin}.RequireScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ = common.Subject(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin/shipping/zones", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, send(""))
	require.Equal(t, http.StatusUnauthorized, send("garbage"))

	noScope, err := v.Issue("viewer", []string{"orders:read"}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, send(noScope))

	admin, err := v.Issue("ops", []string{auth.ScopeStoreAdmin}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, send(admin))
	require.Equal(t, "ops", subject)
}
