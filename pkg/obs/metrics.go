// Package obs holds the Prometheus collectors shared by the issuer, the
// gateway and the SDK key cache.
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokentrust_tokens_issued_total",
		Help: "Tokens signed by the issuer, by kind.",
	}, []string{"kind"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokentrust_token_verifications_total",
		Help: "Token verification outcomes.",
	}, []string{"outcome"})

	KeyFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokentrust_keycache_fetches_total",
		Help: "Public key fetches from the issuer, by result.",
	}, []string{"result"})

	KeyStaleServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokentrust_keycache_stale_served_total",
		Help: "Times a stale cached key was handed out because a refetch failed or was in flight.",
	})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokentrust_ratelimit_rejections_total",
		Help: "Requests rejected by the rate limiter, by route.",
	}, []string{"route"})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokentrust_refresh_store_errors_total",
		Help: "Refresh store operations that failed, by operation.",
	}, []string{"op"})

	StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tokentrust_refresh_store_duration_seconds",
		Help:    "Refresh store round trip time, by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
