package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aussiebroadwan/tokentrust/pkg/authsdk"
	"github.com/aussiebroadwan/tokentrust/pkg/httpx"
	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
	"github.com/aussiebroadwan/tokentrust/pkg/obs"
	"github.com/aussiebroadwan/tokentrust/pkg/slogx"
)

// Router is the gateway's HTTP surface. Requests are verified locally
// against the issuer key held in keys.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys           *authsdk.KeyCache
	verifier       jwtx.Verifier
	upstream       *url.URL
	publicPrefixes []string

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
}

// NewRouter builds the gateway router. upstream may be nil, in which case
// only the gateway's own endpoints are served. Tokens whose exp-iat span is
// longer than maxLifetime are refused, which keeps refresh tokens out; zero
// means the default access token TTL.
func NewRouter(
	keys *authsdk.KeyCache,
	upstream *url.URL,
	publicPrefixes []string,
	maxLifetime time.Duration,
	buildVersion string,
	limits httpx.RateLimitProfiles,
	logger *slog.Logger,
) *Router {
	if maxLifetime <= 0 {
		maxLifetime = jwtx.DefaultAccessTokenTTL
	}
	verifier := jwtx.NewVerifierRS256(keys, jwtx.WithMaxLifetime(maxLifetime))

	r := &Router{
		Mux:            http.NewServeMux(),
		keys:           keys,
		verifier:       verifier,
		upstream:       upstream,
		publicPrefixes: publicPrefixes,
		buildVersion:   buildVersion,
		startTime:      time.Now(),
		logger:         logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Authenticate(verifier),
		httpx.RateLimitByIdentity(limits.Moderate, verifier),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	authn := httpx.AuthnMiddleware(r.verifier)

	r.Mux.Handle("GET /v1/whoami", httpx.Chain(http.HandlerFunc(WhoAmIHandler), authn))

	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.keys))
	r.Mux.Handle("GET /metrics", obs.Handler())

	if r.upstream != nil {
		r.Mux.Handle("/", NewProxy(r.upstream, r.publicPrefixes, authn))
	}
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}
