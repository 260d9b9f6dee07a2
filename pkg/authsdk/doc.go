/*
Package authsdk is the client side of the tokentrust issuer.

# SDKClient

SDKClient wraps the issuer's HTTP API:

	client := authsdk.NewSDKClient("https://issuer.internal")

	tokens, err := client.Login(ctx, "alice", "s3cret")
	access, err := client.Refresh(ctx, tokens.RefreshToken)
	err = client.Revoke(ctx, tokens.RefreshToken)

	jwk, err := client.GetJWK(ctx)
	pem, err := client.GetPublicKeyPEM(ctx)

Error bodies come back as *APIError so callers can switch on Code:

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodeInvalidGrant {
		// bad credentials or revoked refresh token
	}

# KeyCache

Services that verify tokens never see the private key. They fetch the public
key from the issuer and keep it in a KeyCache:

	keys := authsdk.NewKeyCache(client, authsdk.WithTTL(5*time.Minute))
	verifier := jwtx.NewVerifierRS256(keys)

The cache refetches once the TTL has passed. If the issuer cannot be reached
the last key keeps being served, so verification survives an issuer outage.
Only a cache that has never held a key reports jwtx.ErrKeyUnavailable.
Concurrent callers share a single fetch.

# Session

Session holds a token pair and refreshes the access token shortly before it
expires. It is safe for concurrent use.

	session, err := client.NewSession(ctx, "alice", "s3cret")
	token, err := session.Token(ctx)
*/
package authsdk
