package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	auth "github.com/goliatone/go-shop-auth"
	"github.com/goliatone/go-shop-auth/activitymap"
	"github.com/goliatone/go-shop-auth/catalog"
	"github.com/goliatone/go-shop-auth/config"
	"github.com/goliatone/go-shop-auth/logging"
	"github.com/goliatone/go-shop-auth/metrics"
	"github.com/goliatone/go-shop-auth/repository"
)

const shutdownTimeout = 10 * time.Second

// App is the assembled storefront server
type App struct {
	cfg     config.Config
	log     *logging.Logger
	server  *fiber.App
	closers []func(context.Context) error
}

// NewApp wires stores, services and routes from cfg
func NewApp(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	a := &App{cfg: cfg, log: logger}

	accountStore, products, err := a.openStores(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	settings := cfg.AuthSettings()

	var tokenOpts []auth.TokenServiceOption
	tokenOpts = append(tokenOpts, auth.WithTokenLogger(logger.Named("tokens")))
	if cfg.Auth.Revocation {
		tokenOpts = append(tokenOpts, auth.WithRevoker(auth.NewMemoryRevoker()))
	}

	tokens, err := auth.NewTokenServiceFromConfig(settings, tokenOpts...)
	if err != nil {
		a.close()
		return nil, err
	}

	collector := metrics.New()

	accounts := auth.NewAccountService(
		accountStore,
		auth.NewPasswordHasher(settings.GetPasswordCost()),
		auth.WithAccountLogger(logger.Named("accounts")),
		auth.WithDistinctLoginErrors(settings.GetDistinctLoginErrors()),
		auth.WithActivitySink(auth.MultiActivitySink{
			collector,
			activitymap.Sink(logger.Named("activity"), activitymap.WithMaskedEmails(true)),
		}),
	)

	carrier := auth.NewSessionCarrier(tokens,
		auth.WithCookieName(settings.GetCookieName()),
		auth.WithSecureCookie(settings.GetCookieSecure()),
		auth.WithSessionLogger(logger.Named("session")),
	)

	guard := auth.NewHTTPAuthenticator(carrier)
	guard.Logger = logger.Named("guard")

	authController := auth.NewAuthController(accounts, carrier, guard,
		auth.WithControllerLogger(logger.Named("http")),
		auth.WithControllerLimiter(auth.NewRateLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst, auth.DefaultLimiterTTL)),
	)

	catalogController := catalog.NewController(
		catalog.NewService(products, catalog.WithLogger(logger.Named("catalog"))),
		guard,
	)

	server := fiber.New(fiber.Config{
		AppName:               "shopd",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.Server.RequestTimeout,
		WriteTimeout:          cfg.Server.RequestTimeout,
		ErrorHandler:          auth.NewErrorHandler(logger.Named("http")),
	})

	server.Use(recover.New())
	server.Use(requestid.New())
	server.Use(collector.Middleware())

	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	server.Get("/metrics", collector.Handler())

	api := server.Group("/api/v1")
	auth.RegisterAuthRoutes(api, authController)
	catalogController.RegisterRoutes(api)

	a.server = server
	return a, nil
}

func (a *App) openStores(ctx context.Context) (auth.AccountStore, catalog.Products, error) {
	switch a.cfg.Store.Driver {
	case config.DriverMongo:
		client, err := repository.ConnectMongo(ctx, a.cfg.Store.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, client.Disconnect)

		db := client.Database(a.cfg.Store.MongoDatabase)
		accounts, err := repository.NewMongoAccounts(ctx, db)
		if err != nil {
			return nil, nil, fmt.Errorf("prepare mongo accounts: %w", err)
		}
		return accounts, repository.NewMongoProducts(db), nil

	case config.DriverSQLite:
		db, err := repository.OpenSQLite(a.cfg.Store.SQLiteDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })

		if err := repository.CreateSchema(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("create schema: %w", err)
		}
		return repository.NewBunAccounts(db), repository.NewBunProducts(db), nil

	default:
		a.log.Warn("using the in memory store, data is lost on restart")
		return auth.NewMemoryAccounts(), catalog.NewMemoryProducts(), nil
	}
}

// Run serves until ctx is cancelled or the listener fails
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	errCh := make(chan error, 1)

	go func() {
		a.log.Info("http server starting", "addr", a.cfg.Server.Address, "store", a.cfg.Store.Driver)
		errCh <- a.server.Listen(a.cfg.Server.Address)
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	}
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Error("close store", "error", err)
		}
	}
	a.closers = nil
}
