package http

import (
	"net/http"

	"github.com/aussiebroadwan/tokentrust/pkg/authsdk"
	"github.com/aussiebroadwan/tokentrust/pkg/httpx"
	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
	"github.com/aussiebroadwan/tokentrust/pkg/slogx"
)

// keyCacheControl lets verifiers and proxies cache the key for a while.
const keyCacheControl = "public, max-age=300"

// JWKHandler publishes the signing key as a single JWK object.
func JWKHandler(keys *jwtx.KeyPair) http.HandlerFunc {
	jwk := keys.PublicJWK()
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteCachedJSON(w, http.StatusOK, keyCacheControl, jwk)
	}
}

// JWKSHandler publishes {"keys":[jwk]} for standard JWKS tooling.
func JWKSHandler(keys *jwtx.KeyPair) http.HandlerFunc {
	jwks := jwtx.JWKS{Keys: []jwtx.JWK{keys.PublicJWK()}}
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteCachedJSON(w, http.StatusOK, keyCacheControl, jwks)
	}
}

// PEMHandler publishes the signing key as SubjectPublicKeyInfo PEM.
func PEMHandler(keys *jwtx.KeyPair) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pem, err := keys.PublicKeyPEM()
		if err != nil {
			slogx.FromContext(r.Context()).Error("encode public key", "err", err)
			authsdk.ErrServerError.WriteError(w)
			return
		}

		w.Header().Set("Content-Type", "application/x-pem-file")
		w.Header().Set("Cache-Control", keyCacheControl)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(pem))
	}
}
