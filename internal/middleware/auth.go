package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/muflih795/YBG-Database-3/internal/auth"
)

// TokenVerifier turns a raw session token into an identity.
type TokenVerifier interface {
	Verify(raw string) (auth.AuthContext, error)
}

// Authenticate populates AuthContext when the request carries a valid token,
// either as "Authorization: Bearer <token>" or in the session cookie.
// Requests without a valid token pass through anonymously; handlers decide
// what an anonymous caller gets.
func Authenticate(v TokenVerifier, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" && cookieName != "" {
				if c, err := r.Cookie(cookieName); err == nil {
					raw = c.Value
				}
			}
			if raw != "" {
				if ac, err := v.Verify(raw); err == nil {
					r = r.WithContext(auth.WithAuth(r.Context(), ac))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserID(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, "not signed in")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin checks that the caller presented a service-role token.
// Service-role callers have no user id, so RequireUser would reject them.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "not signed in")
			return
		}
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": msg})
}
