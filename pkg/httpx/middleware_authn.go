package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
	"github.com/aussiebroadwan/tokentrust/pkg/obs"
	"github.com/aussiebroadwan/tokentrust/pkg/slogx"
)

// BearerToken pulls the token out of an "Authorization: Bearer ..." header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(authz[len("Bearer "):])
	return raw, raw != ""
}

// Authenticate verifies the bearer token, if there is one, and records the
// outcome in the request context. It never rejects. Place it ahead of the
// rate limiter and AuthnMiddleware so the token is only verified once.
func Authenticate(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if res, ok := verifyRequest(r, v); ok {
				r = r.WithContext(contextWithResult(r.Context(), res))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthnMiddleware requires a valid bearer token and injects its claims into
// the request context. Every token failure gets the same 401; a missing
// verification key is a 503 because the caller did nothing wrong.
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			res, ok := verifyRequest(r, v)
			if !ok {
				obs.Verifications.WithLabelValues("missing").Inc()
				writeBearerError(w, "missing bearer token")
				return
			}

			if err := res.err; err != nil {
				if errors.Is(err, jwtx.ErrKeyUnavailable) {
					log.Error("jwt verify: no verification key", "err", err)
					w.Header().Set("Retry-After", "5")
					WriteError(w, http.StatusServiceUnavailable, "temporarily_unavailable",
						"token verification is temporarily unavailable")
					return
				}

				log.Warn("jwt verify failed", "reason", jwtx.Reason(err), "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithResult(r.Context(), res)))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}
