package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokentrust/pkg/authsdk"
	"github.com/aussiebroadwan/tokentrust/pkg/httpx"
)

func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  authsdk.StatusOK,
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler is ready once a verification key has been fetched. A stale
// key still counts; it is what requests are being verified with.
func ReadyzHandler(startTime time.Time, version string, keys *authsdk.KeyCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := keys.Status()

		checks := &authsdk.HealthChecks{Key: authsdk.StatusOK}
		status, code := authsdk.StatusOK, http.StatusOK

		switch {
		case !st.HasKey:
			checks.Key = authsdk.StatusUnavailable
			status, code = authsdk.StatusUnavailable, http.StatusServiceUnavailable
		case st.Stale:
			checks.Key = authsdk.StatusDegraded
			status = authsdk.StatusDegraded
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
