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

	httpapi "github.com/aussiebroadwan/tokentrust/internal/issuer/http"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/identity"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/service"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/store"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/store/drivers/memory"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/store/drivers/redis"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokentrust/pkg/cryptox"
	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
	"github.com/aussiebroadwan/tokentrust/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application is the issuer service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	keys       *jwtx.KeyPair
	store      store.Store
	identities *identity.Directory

	tokenService        *service.TokenService
	housekeepingService *service.HousekeepingService // nil unless the store needs sweeping

	server *http.Server
	router *httpapi.Router
}

// New builds the issuer. The refresh store is not dialled here; an
// unreachable Redis shows up in /readyz rather than failing startup.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "issuer",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	users, err := identity.LoadFile(cfg.UsersFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	app.identities = users
	app.logger.Info("identity file loaded", "users", users.Len())

	if err := app.initStore(); err != nil {
		return nil, err
	}

	keys, err := InitKeyPair(cfg, app.logger)
	if err != nil {
		_ = app.store.Close()
		return nil, fmt.Errorf("failed to initialize signing key: %w", err)
	}
	app.keys = keys

	if err := app.initServices(); err != nil {
		_ = app.store.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler exposes the router, mostly for in-process tests.
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

// Serve handles requests on ln until ctx is done, then shuts down.
func (app *Application) Serve(ctx context.Context, ln net.Listener) error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start()
	}

	app.logger.Info("issuer starting",
		"addr", ln.Addr().String(),
		"version", BuildVersion,
		"store", app.cfg.StoreDriver,
		"kid", app.keys.KID(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		app.logger.Info("shutdown requested")
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// Shutdown drains in-flight requests, stops housekeeping and closes the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down issuer...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingService != nil {
		app.housekeepingService.Stop()
	}

	if err := app.store.Close(); err != nil {
		app.logger.Error("error closing refresh store", "error", err)
		return err
	}

	app.logger.Info("issuer stopped")
	return nil
}

func (app *Application) initStore() error {
	var st store.Store

	switch app.cfg.StoreDriver {
	case StoreRedis:
		st = redis.NewStore(redis.Config{
			Addr:      app.cfg.RedisAddr,
			Password:  app.cfg.RedisPass,
			DB:        app.cfg.RedisDB,
			OpTimeout: app.cfg.StoreTimeout,
		})
		app.logger.Info("refresh store: redis", "addr", app.cfg.RedisAddr, "db", app.cfg.RedisDB)

	case StoreSQLite:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(dsn, sqlite.WithOpTimeout(app.cfg.StoreTimeout))
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
		app.logger.Info("refresh store: sqlite", "file", app.cfg.DatabaseFile)
		st = db

	case StoreMemory:
		app.logger.Warn("refresh store: memory, refresh tokens do not survive a restart")
		st = memory.NewStore(nil)

	default:
		return fmt.Errorf("unknown store driver %q", app.cfg.StoreDriver)
	}

	app.store = store.Instrument(st)
	return nil
}

func (app *Application) initServices() error {
	signer, err := jwtx.NewRS256Signer(app.keys)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}

	app.tokenService = &service.TokenService{
		Signer:     signer,
		Verifier:   jwtx.NewVerifierRS256(app.keys.Source()),
		Store:      app.store,
		Identities: app.identities,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}

	// Redis expires entries itself.
	if sweeper, ok := app.store.(store.Sweeper); ok && app.cfg.StoreDriver != StoreRedis {
		app.housekeepingService = service.NewHousekeepingService(
			sweeper,
			app.logger,
			app.cfg.HousekeepingInterval,
		)
	}

	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys,
		app.tokenService.Verifier,
		BuildVersion,
		app.store,
		app.cfg.RateLimits,
		app.logger,
	)
	router.TokenService = app.tokenService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
