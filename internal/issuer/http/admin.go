package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tokentrust/internal/issuer/service"
	"github.com/aussiebroadwan/tokentrust/pkg/authsdk"
	"github.com/aussiebroadwan/tokentrust/pkg/httpx"
	"github.com/aussiebroadwan/tokentrust/pkg/slogx"
)

// AdminRevokeHandler serves DELETE /v1/refresh-tokens/{id}. The id is the
// token's fingerprint, so an operator can revoke a token that shows up in
// logs without ever holding it.
type AdminRevokeHandler struct {
	TokenService *service.TokenService
}

func (h *AdminRevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.TokenService.RevokeRefreshTokenByID(r.Context(), id); err != nil {
		writeServiceError(w, r, "admin revoke", err)
		return
	}

	actor := ""
	if claims, ok := httpx.ClaimsFromContext(r.Context()); ok {
		actor = claims.UserID
	}
	slogx.FromContext(r.Context()).Info("refresh token revoked by admin", "token_id", id, "actor", actor)

	w.WriteHeader(http.StatusNoContent)
}
