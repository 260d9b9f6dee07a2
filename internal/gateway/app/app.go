package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/tokentrust/internal/gateway/http"
	"github.com/aussiebroadwan/tokentrust/pkg/authsdk"
	"github.com/aussiebroadwan/tokentrust/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application is the gateway: local token verification in front of an
// optional upstream.
type Application struct {
	cfg    Config
	logger *slog.Logger

	keys   *authsdk.KeyCache
	server *http.Server
	router *httpapi.Router
}

func New(cfg Config) *Application {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	app.keys = authsdk.NewKeyCache(
		authsdk.NewSDKClient(cfg.IssuerURL),
		authsdk.WithTTL(cfg.KeyTTL),
		authsdk.WithKeyFormat(cfg.KeyFormat),
		authsdk.WithFetchTimeout(cfg.KeyFetchTimeout),
	)

	router := httpapi.NewRouter(
		app.keys,
		cfg.UpstreamURL,
		cfg.PublicPrefixes,
		cfg.MaxTokenLifetime,
		BuildVersion,
		cfg.RateLimits,
		app.logger,
	)
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return app
}

func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	ln, err := net.Listen("tcp", app.server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is done.
func (app *Application) Serve(ctx context.Context, ln net.Listener) error {
	// Not fatal: the gateway retries on the first request and /readyz
	// stays 503 until a key arrives.
	if err := app.keys.Prime(ctx); err != nil {
		app.logger.Warn("could not fetch issuer key at startup", "issuer", app.cfg.IssuerURL, "err", err)
	}

	upstream := ""
	if app.cfg.UpstreamURL != nil {
		upstream = app.cfg.UpstreamURL.String()
	}
	app.logger.Info("gateway starting",
		"addr", ln.Addr().String(),
		"version", BuildVersion,
		"issuer", app.cfg.IssuerURL,
		"upstream", upstream,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		app.logger.Info("shutdown requested")
		return app.Shutdown()
	}
}

func (app *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		_ = app.server.Close()
		return err
	}

	app.logger.Info("gateway stopped")
	return nil
}
