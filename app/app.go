// Package app wires configuration, storage, gateways, and services together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lawsonsstudio/storefront/internal/cache"
	"github.com/lawsonsstudio/storefront/internal/catalog"
	"github.com/lawsonsstudio/storefront/internal/config"
	"github.com/lawsonsstudio/storefront/internal/db"
	"github.com/lawsonsstudio/storefront/internal/email"
	"github.com/lawsonsstudio/storefront/internal/fulfillment"
	"github.com/lawsonsstudio/storefront/internal/handlers"
	"github.com/lawsonsstudio/storefront/internal/identity"
	"github.com/lawsonsstudio/storefront/internal/logging"
	"github.com/lawsonsstudio/storefront/internal/services"
	"github.com/lawsonsstudio/storefront/internal/stripe"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	orderStore := db.NewOrderStore(database)
	variantStore := db.NewVariantStore(database)

	stripeClient := stripe.NewClient(cfg.StripeSecretKey)

	fulfillmentClient, err := fulfillment.NewClient(fulfillment.Config{
		BaseURL: cfg.FulfillmentAPIURL,
		AppID:   cfg.FulfillmentAppID,
		Secret:  cfg.FulfillmentSecret,
		Sandbox: cfg.FulfillmentSandbox,
	}, logger.With("component", "fulfillment_client"))
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize fulfillment client: %w", err)
	}

	identityVerifier, err := identity.NewVerifier(cfg.IdentityJWTSecret, cfg.IdentityIssuer)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize identity verifier: %w", err)
	}

	var emailSender services.OrderEmailSender
	if cfg.EmailProvider != "" {
		provider, err := email.NewProvider(email.Config{
			Provider: cfg.EmailProvider,
			APIKey:   cfg.EmailAPIKey,
			From:     cfg.EmailFrom,
		})
		if err != nil {
			closeCacheProvider(logger, cacheProvider)
			database.Close()
			return nil, fmt.Errorf("failed to initialize email provider: %w", err)
		}
		emailSender = services.NewOrderEmailSender(provider, cfg.BrandName, logger.With("component", "email_sender"))
	} else {
		logger.Warn("no email provider configured; order emails disabled")
		emailSender = services.NoopOrderEmailSender()
	}

	var shipping catalog.ShippingCalculator
	if cfg.ShippingRatesFile != "" {
		rates, err := catalog.LoadShippingRates(cfg.ShippingRatesFile)
		if err != nil {
			closeCacheProvider(logger, cacheProvider)
			database.Close()
			return nil, fmt.Errorf("failed to load shipping rates: %w", err)
		}
		shipping = rates
	}

	checkoutService := services.NewCheckoutService(
		variantStore,
		orderStore,
		stripeClient,
		shipping,
		nil,
		cfg.BrandID,
		strings.TrimRight(cfg.BaseURL, "/"),
		logger.With("component", "checkout_service"),
	)
	fulfillmentService := services.NewFulfillmentService(fulfillmentClient, orderStore, logger.With("component", "fulfillment_service"))
	paymentService := services.NewPaymentService(orderStore, fulfillmentService, emailSender, cfg.BrandID, logger.With("component", "payment_service"))
	stripeRouter := handlers.NewStripeEventRouter(paymentService, logger.With("component", "stripe_router"))

	h, err := handlers.New(handlers.Dependencies{
		Config:           cfg,
		DB:               database,
		OrderStore:       orderStore,
		CacheProvider:    cacheProvider,
		StripeRouter:     stripeRouter,
		CheckoutService:  checkoutService,
		IdentityVerifier: identityVerifier,
		EmailSender:      emailSender,
		Logger:           logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Handlers:      h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var console slog.Handler
	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		console = slog.NewJSONHandler(os.Stdout, opts)
	default:
		console = tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel,
		})
	}

	if cfg.LogFile == "" {
		return slog.New(console)
	}

	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(console)
		logger.Warn("failed to open log file, logging to stdout only", "path", cfg.LogFile, "error", err)
		return logger
	}
	return slog.New(logging.MultiHandler(console, slog.NewJSONHandler(file, opts)))
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
