package http

import (
	"net/http"

	"github.com/aussiebroadwan/tokentrust/pkg/authsdk"
	"github.com/aussiebroadwan/tokentrust/pkg/httpx"
)

// WhoAmIHandler echoes the verified identity. It must run behind
// httpx.AuthnMiddleware.
func WhoAmIHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken, "token verification failed")
		return
	}

	resp := authsdk.WhoAmIResponse{
		Subject:  claims.Subject,
		UserID:   claims.UserID,
		Email:    claims.Email,
		Role:     claims.Role,
		Username: claims.Username,
	}
	if claims.ExpiresAt != nil {
		resp.Expires = claims.ExpiresAt.Unix()
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}
