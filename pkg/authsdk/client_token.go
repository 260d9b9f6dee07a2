package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Login exchanges a username and password for an access token and a
// refresh token.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	return c.requestToken(ctx, "/v1/token", url.Values{
		"username": {username},
		"password": {password},
	})
}

// Refresh obtains a new access token. The refresh token stays valid until it
// expires or is revoked.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.requestToken(ctx, "/v1/token/refresh", url.Values{
		"refresh_token": {refreshToken},
	})
}

// Revoke revokes a refresh token. Revoking an unknown token is not an error.
func (c *SDKClient) Revoke(ctx context.Context, token string) error {
	resp, err := c.postForm(ctx, "/v1/token/revoke", url.Values{
		"token": {token},
	})
	if err != nil {
		return err
	}

	_, err = readBody(resp, http.StatusOK)
	return err
}

// RevokeByID revokes a refresh token by its store id. The caller's access
// token must carry the ADMIN role.
func (c *SDKClient) RevokeByID(ctx context.Context, accessToken, tokenID string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/v1/refresh-tokens/"+url.PathEscape(tokenID), nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return err
	}

	_, err = readBody(resp, http.StatusNoContent)
	return err
}

func (c *SDKClient) requestToken(ctx context.Context, path string, data url.Values) (*TokenResponse, error) {
	resp, err := c.postForm(ctx, path, data)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}

	return &tokenResp, nil
}
