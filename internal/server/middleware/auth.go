package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/forumgate/forumgate/internal/service"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the resolved principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// Principal is the identity attached to every request. Anonymous callers
// get a principal too, with no admin identity and zero key permissions;
// the handlers decide what an anonymous caller may see.
type Principal struct {
	AdminID int64
	Email   string
	IsAdmin bool
	Key     service.KeyPrincipal
}

// Resolve returns a middleware that resolves the bearer token exactly once
// per request. A token that verifies as an admin session JWT yields an
// admin principal; anything else is treated as an API key value and mapped
// through the key table and its IP allowlist. Resolution never rejects the
// request: unknown or blocked tokens just produce an anonymous principal,
// so a probing caller learns nothing at this layer.
func Resolve(auth *service.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := &Principal{}

			if token := BearerToken(r); token != "" {
				if jp, err := auth.ValidateJWT(token); err == nil {
					principal.AdminID = jp.AdminID
					principal.Email = jp.Email
					principal.IsAdmin = true
				} else {
					principal.Key = auth.ResolveKey(r.Context(), token, GetClientIP(r))
				}
			}

			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireManage guards the key management surface. Admin sessions pass, as
// do API keys carrying the manage permission. Everyone else gets a 401.
func RequireManage() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil || (!p.IsAdmin && !p.Key.Perms.Manage) {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin guards the admin-only surface (admin accounts, audit log).
// API keys never pass, manage permission or not.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil || !p.IsAdmin {
				writeAuthError(w, http.StatusUnauthorized, "Admin session required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the resolved principal from the context. Returns
// nil when Resolve did not run.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

// BearerToken extracts the token from the Authorization header, or ""
// when the header is missing or not a bearer scheme.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Manually construct JSON to avoid an import cycle with the handler
	// package.
	w.Write([]byte(`{"error":{"code":` + httpStatusString(status) + `,"message":"` + message + `"}}`))
}

func httpStatusString(code int) string {
	switch code {
	case 401:
		return "401"
	case 403:
		return "403"
	default:
		return "500"
	}
}
