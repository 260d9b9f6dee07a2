package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokentrust/internal/issuer/service"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/store"
	"github.com/aussiebroadwan/tokentrust/pkg/httpx"
	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
	"github.com/aussiebroadwan/tokentrust/pkg/obs"
	"github.com/aussiebroadwan/tokentrust/pkg/slogx"
)

// AdminRole may revoke any refresh token by id.
const AdminRole = "ADMIN"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeyPair
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       httpx.RateLimitProfiles

	store        store.Store
	TokenService *service.TokenService
}

func NewRouter(
	keys *jwtx.KeyPair,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	limits httpx.RateLimitProfiles,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		limits:       limits,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTokens()
	r.registerKeys()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerTokens() {
	// Login is limited per origin and username so one user cannot be
	// locked out from elsewhere.
	r.Mux.Handle("POST /v1/token",
		httpx.Chain(&LoginHandler{TokenService: r.TokenService},
			httpx.RateLimitByIPAndFormField(r.limits.Strict, "username"),
		),
	)

	r.Mux.Handle("POST /v1/token/refresh",
		httpx.Chain(&RefreshHandler{TokenService: r.TokenService},
			httpx.RateLimitByIP(r.limits.Strict),
		),
	)

	r.Mux.Handle("POST /v1/token/revoke",
		httpx.Chain(&RevokeHandler{TokenService: r.TokenService},
			httpx.RateLimitByIP(r.limits.Moderate),
		),
	)
}

func (r *Router) registerKeys() {
	public := httpx.RateLimitByIP(r.limits.Public)

	r.Mux.Handle("GET /v1/keys/jwk", httpx.Chain(JWKHandler(r.keys), public))
	r.Mux.Handle("GET /v1/keys/pem", httpx.Chain(PEMHandler(r.keys), public))
	r.Mux.Handle("GET /.well-known/jwks.json", httpx.Chain(JWKSHandler(r.keys), public))
}

func (r *Router) registerAdmin() {
	h := &AdminRevokeHandler{TokenService: r.TokenService}

	r.Mux.Handle("DELETE /v1/refresh-tokens/{id}",
		httpx.Chain(h,
			httpx.RateLimitByIdentity(r.limits.Moderate, r.verifier),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyRole(AdminRole),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
	r.Mux.Handle("GET /metrics", obs.Handler())
}
