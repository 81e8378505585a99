// Package handlers provides the HTTP surface of the storefront API.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lawsonsstudio/storefront/internal/cache"
	"github.com/lawsonsstudio/storefront/internal/config"
	"github.com/lawsonsstudio/storefront/internal/db"
	"github.com/lawsonsstudio/storefront/internal/identity"
	"github.com/lawsonsstudio/storefront/internal/logging"
	"github.com/lawsonsstudio/storefront/internal/services"
)

const maxWebhookBodyBytes = 1 << 20 // 1 MB

// Handlers provides HTTP request handlers for the storefront API.
type Handlers struct {
	config           *config.Config
	db               *pgxpool.Pool
	orderStore       *db.OrderStore
	cacheProvider    cache.Provider
	stripeRouter     *StripeEventRouter
	checkoutService  *services.CheckoutService
	identityVerifier *identity.Verifier
	emailSender      services.OrderEmailSender
	logger           *slog.Logger
}

type Dependencies struct {
	Config           *config.Config
	DB               *pgxpool.Pool
	OrderStore       *db.OrderStore
	CacheProvider    cache.Provider
	StripeRouter     *StripeEventRouter
	CheckoutService  *services.CheckoutService
	IdentityVerifier *identity.Verifier
	EmailSender      services.OrderEmailSender
	Logger           *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.OrderStore == nil {
		return nil, fmt.Errorf("handlers dependencies: orderStore is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}
	if deps.StripeRouter == nil {
		return nil, fmt.Errorf("handlers dependencies: stripeRouter is required")
	}
	if deps.CheckoutService == nil {
		return nil, fmt.Errorf("handlers dependencies: checkoutService is required")
	}
	if deps.IdentityVerifier == nil {
		return nil, fmt.Errorf("handlers dependencies: identityVerifier is required")
	}

	emailSender := deps.EmailSender
	if emailSender == nil {
		emailSender = services.NoopOrderEmailSender()
	}

	return &Handlers{
		config:           deps.Config,
		db:               deps.DB,
		orderStore:       deps.OrderStore,
		cacheProvider:    deps.CacheProvider,
		stripeRouter:     deps.StripeRouter,
		checkoutService:  deps.CheckoutService,
		identityVerifier: deps.IdentityVerifier,
		emailSender:      emailSender,
		logger:           logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func (h *Handlers) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.loggerFromContext(ctx).Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.writeJSON(ctx, w, status, map[string]string{"error": message})
}
