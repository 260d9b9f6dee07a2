package http

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/tokentrust/pkg/authsdk"
	"github.com/aussiebroadwan/tokentrust/pkg/httpx"
	"github.com/aussiebroadwan/tokentrust/pkg/slogx"
)

// Identity headers set on proxied requests. Whatever the client sent under
// these names is dropped first.
const (
	HeaderUserID   = "X-User-ID"
	HeaderEmail    = "X-User-Email"
	HeaderRole     = "X-User-Role"
	HeaderUsername = "X-Username"
)

var identityHeaders = []string{HeaderUserID, HeaderEmail, HeaderRole, HeaderUsername}

// NewProxy forwards requests to upstream. Paths under one of
// publicPrefixes pass through anonymously, everything else goes through
// authn first and carries the verified identity upstream.
func NewProxy(upstream *url.URL, publicPrefixes []string, authn httpx.Middleware) http.Handler {
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()

			for _, h := range identityHeaders {
				pr.Out.Header.Del(h)
			}

			claims, ok := httpx.ClaimsFromContext(pr.In.Context())
			if !ok {
				return
			}
			setHeader(pr.Out.Header, HeaderUserID, claims.UserID)
			setHeader(pr.Out.Header, HeaderEmail, claims.Email)
			setHeader(pr.Out.Header, HeaderRole, claims.Role)
			// Plain tokens only carry the username as subject.
			username := claims.Username
			if username == "" {
				username = claims.Subject
			}
			setHeader(pr.Out.Header, HeaderUsername, username)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slogx.FromContext(r.Context()).Error("upstream request failed", "upstream", upstream.Host, "err", err)
			httpx.WriteError(w, http.StatusBadGateway, authsdk.ErrorCodeServerError, "upstream unavailable")
		},
	}

	protected := httpx.Chain(rp, authn)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path, publicPrefixes) {
			rp.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	})
}

func isPublic(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func setHeader(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}
