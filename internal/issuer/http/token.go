package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tokentrust/internal/issuer/domain"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/service"
	"github.com/aussiebroadwan/tokentrust/pkg/authsdk"
	"github.com/aussiebroadwan/tokentrust/pkg/httpx"
	"github.com/aussiebroadwan/tokentrust/pkg/slogx"
)

// LoginHandler serves POST /v1/token.
type LoginHandler struct {
	TokenService *service.TokenService
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	username := strings.TrimSpace(r.Form.Get("username"))
	password := r.Form.Get("password")
	if username == "" || password == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.Login(r.Context(), username, password)
	if err != nil {
		writeServiceError(w, r, "login", err)
		return
	}

	writeTokenResponse(w, pair)
}

// RefreshHandler serves POST /v1/token/refresh.
type RefreshHandler struct {
	TokenService *service.TokenService
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	refresh := strings.TrimSpace(r.Form.Get("refresh_token"))
	if refresh == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeRefreshToken(r.Context(), refresh)
	if err != nil {
		writeServiceError(w, r, "refresh", err)
		return
	}

	writeTokenResponse(w, pair)
}

// RevokeHandler serves POST /v1/token/revoke. Unknown tokens still get 200
// so callers cannot probe which tokens exist.
type RevokeHandler struct {
	TokenService *service.TokenService
}

func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	token := strings.TrimSpace(r.Form.Get("token"))
	if token == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.TokenService.RevokeRefreshToken(r.Context(), token); err != nil {
		writeServiceError(w, r, "revoke", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

// parseForm enforces a form body and parses it. It writes the error
// response itself and returns false on failure.
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.ErrInvalidContentType.WriteError(w)
		return false
	}

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return false
	}
	return true
}

func writeTokenResponse(w http.ResponseWriter, pair *domain.TokenPair) {
	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	})
}

// writeServiceError maps service errors onto one generic response per
// class. The detail only goes to the log.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log := slogx.FromContext(r.Context())

	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefresh),
		errors.Is(err, service.ErrRefreshRevoked):
		log.Warn(op+" rejected", "err", err)
		authsdk.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrStoreUnavailable):
		log.Error(op+" rejected: refresh store unavailable", "err", err)
		w.Header().Set("Retry-After", "5")
		authsdk.ErrTemporarilyUnavailable.WriteError(w)
	default:
		log.Error(op+" failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
