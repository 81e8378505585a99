// Package server builds the HTTP server and routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lawsonsstudio/storefront/internal/config"
	"github.com/lawsonsstudio/storefront/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.SecurityHeaders)

	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")
	r.HandleFunc("/webhooks/stripe", h.StripeWebhook).Methods("POST").Name("webhooks.stripe")

	// Public storefront API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/checkout", h.CreateCheckout).Methods("POST").Name("api.checkout")
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET").Name("api.orders.get")

	// Back-office routes require a token from the identity provider
	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(h.RequireIdentity)
	adminRouter.Use(h.RequireRole("admin"))
	adminRouter.HandleFunc("/orders", h.AdminListOrders).Methods("GET").Name("admin.orders")
	adminRouter.HandleFunc("/orders/{id}", h.AdminGetOrder).Methods("GET").Name("admin.orders.get")
	adminRouter.HandleFunc("/orders/{id}/ship", h.AdminShipOrder).Methods("POST").Name("admin.orders.ship")
	adminRouter.HandleFunc("/orders/{id}/deliver", h.AdminDeliverOrder).Methods("POST").Name("admin.orders.deliver")
	adminRouter.HandleFunc("/orders/{id}/cancel", h.AdminCancelOrder).Methods("POST").Name("admin.orders.cancel")
	adminRouter.HandleFunc("/orders/{id}/refund", h.AdminRefundOrder).Methods("POST").Name("admin.orders.refund")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	return r
}
