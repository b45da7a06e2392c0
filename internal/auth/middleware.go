package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/storeengine/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// Middleware guards administration routes with bearer tokens.
type Middleware struct {
	Verifier *Verifier
	Scope    string
}

// RequireScope rejects requests without a valid token carrying the
// configured scope.
func (m Middleware) RequireScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Verifier == nil {
			common.JSONError(w, http.StatusServiceUnavailable, "AUTH_DISABLED", "admin authentication not configured", nil)
			return
		}
		claims, err := m.Verifier.Verify(bearerToken(r))
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		if m.Scope != "" && !claims.HasScope(m.Scope) {
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient scope", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithSubject(r.Context(), claims.Subject)))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
