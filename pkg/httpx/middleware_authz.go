package httpx

import (
	"net/http"
	"strings"
)

// RequireAnyRole the caller's role claim must be one of the provided roles.
// Must run after AuthnMiddleware.
func RequireAnyRole(roles ...string) Middleware {
	want := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		want[strings.ToUpper(role)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if ok {
				if _, allowed := want[strings.ToUpper(claims.Role)]; allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
			WriteError(w, http.StatusForbidden, "insufficient_scope", "role not permitted")
		})
	}
}
