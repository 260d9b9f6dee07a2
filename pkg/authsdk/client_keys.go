package authsdk

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
)

// GetJWK fetches the issuer's signing key as a JWK.
func (c *SDKClient) GetJWK(ctx context.Context) (*jwtx.JWK, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/keys/jwk", nil, map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return nil, err
	}

	var jwk jwtx.JWK
	if err := decodeJSON(resp, &jwk, http.StatusOK); err != nil {
		return nil, err
	}

	return &jwk, nil
}

// GetJWKS fetches /.well-known/jwks.json.
func (c *SDKClient) GetJWKS(ctx context.Context) (*jwtx.JWKS, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", nil, map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return nil, err
	}

	var jwks jwtx.JWKS
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}

	return &jwks, nil
}

// GetPublicKeyPEM fetches the issuer's signing key as PKIX PEM text.
func (c *SDKClient) GetPublicKeyPEM(ctx context.Context) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/keys/pem", nil, map[string]string{
		"Accept": "application/x-pem-file",
	})
	if err != nil {
		return "", err
	}

	body, err := readBody(resp, http.StatusOK)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// KeyFormat selects which publication endpoint FetchPublicKey uses.
type KeyFormat string

const (
	KeyFormatJWK KeyFormat = "jwk"
	KeyFormatPEM KeyFormat = "pem"
)

// FetchPublicKey fetches and decodes the issuer's public key.
func (c *SDKClient) FetchPublicKey(ctx context.Context, format KeyFormat) (*rsa.PublicKey, error) {
	switch format {
	case KeyFormatPEM:
		text, err := c.GetPublicKeyPEM(ctx)
		if err != nil {
			return nil, err
		}
		return jwtx.ParsePublicKeyPEM([]byte(text))
	case KeyFormatJWK, "":
		jwk, err := c.GetJWK(ctx)
		if err != nil {
			return nil, err
		}
		return jwk.RSAPublicKey()
	default:
		return nil, fmt.Errorf("authsdk: unknown key format %q", format)
	}
}
