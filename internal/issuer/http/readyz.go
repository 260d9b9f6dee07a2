package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokentrust/internal/issuer/store"
	"github.com/aussiebroadwan/tokentrust/pkg/authsdk"
	"github.com/aussiebroadwan/tokentrust/pkg/httpx"
	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
	"github.com/aussiebroadwan/tokentrust/pkg/slogx"
)

// ReadyzHandler reports 503 while the refresh store is unreachable or no
// signing key is loaded. Without the store no refresh token can be issued
// or accepted.
func ReadyzHandler(startTime time.Time, version string, st store.Store, keys *jwtx.KeyPair) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Store: authsdk.StatusOK,
			Key:   authsdk.StatusOK,
		}
		status := authsdk.StatusOK
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			slogx.FromContext(r.Context()).Warn("readiness: store ping failed", "err", err)
			checks.Store = authsdk.StatusUnavailable
			status = authsdk.StatusDegraded
			code = http.StatusServiceUnavailable
		}

		if keys == nil || keys.Validate() != nil {
			checks.Key = authsdk.StatusUnavailable
			status = authsdk.StatusDegraded
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
