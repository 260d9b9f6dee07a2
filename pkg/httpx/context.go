package httpx

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
	"github.com/aussiebroadwan/tokentrust/pkg/obs"
)

type authKey struct{}

// authResult is the outcome of verifying a request's bearer token. It is
// stored once per request so later middleware does not verify again.
type authResult struct {
	claims *jwtx.Claims
	err    error
}

func contextWithResult(ctx context.Context, res authResult) context.Context {
	return context.WithValue(ctx, authKey{}, res)
}

// verifyRequest verifies the bearer token, reusing an earlier result from
// the context. ok is false when the request carries no bearer token.
func verifyRequest(r *http.Request, v jwtx.Verifier) (res authResult, ok bool) {
	if res, ok := r.Context().Value(authKey{}).(authResult); ok {
		return res, true
	}

	raw, ok := BearerToken(r)
	if !ok {
		return authResult{}, false
	}

	claims, err := v.Verify(r.Context(), raw, "")
	obs.Verifications.WithLabelValues(jwtx.Reason(err)).Inc()
	return authResult{claims: claims, err: err}, true
}

// ClaimsFromContext returns the verified claims AuthnMiddleware or
// Authenticate attached.
func ClaimsFromContext(ctx context.Context) (*jwtx.Claims, bool) {
	res, ok := ctx.Value(authKey{}).(authResult)
	return res.claims, ok && res.err == nil && res.claims != nil
}
