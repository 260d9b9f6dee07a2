package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokentrust/pkg/authsdk"
	"github.com/aussiebroadwan/tokentrust/pkg/httpx"
)

// LivezHandler always returns 200 while the process is serving.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  authsdk.StatusOK,
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}
