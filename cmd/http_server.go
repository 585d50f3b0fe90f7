package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/storefront/api"
	"github.com/frahmantamala/storefront/internal/auth"
	"github.com/frahmantamala/storefront/internal/order"
	"github.com/frahmantamala/storefront/internal/payment"
	paymentpostgres "github.com/frahmantamala/storefront/internal/payment/postgres"
	"github.com/frahmantamala/storefront/internal/product"
	"github.com/frahmantamala/storefront/internal/telemetry"
	"github.com/frahmantamala/storefront/internal/transport"
	"github.com/frahmantamala/storefront/internal/transport/middleware"
	"github.com/frahmantamala/storefront/internal/transport/rest"
)

var withPoller bool

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server for the Mini-App, the admin panel and gateway notifications`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func init() {
	httpServerCmd.Flags().BoolVar(&withPoller, "poller", true, "run the stale payment poller in-process")
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := deps.Logger
	cfg := deps.Config

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Observability.Tracing, lg)
	if err != nil {
		lg.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	router, err := setupRoutes(ctx, deps)
	if err != nil {
		lg.Error("failed to set up routes", "error", err)
		os.Exit(1)
	}

	var poller *payment.Poller
	if withPoller {
		poller = deps.newPoller()
		poller.Start(ctx)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		lg.Info("starting HTTP server", "address", addr, "gateway", deps.Gateway.Name())
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		lg.Info("received signal, shutting down")
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("server shutdown error", "error", err)
	}
	if poller != nil {
		poller.Shutdown()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		lg.Error("tracing shutdown error", "error", err)
	}
	deps.Close()

	lg.Info("server stopped")
}

func setupRoutes(ctx context.Context, deps *Dependencies) (*chi.Mux, error) {
	cfg := deps.Config
	lg := deps.Logger
	base := transport.NewBaseHandler(lg)

	validator, err := middleware.NewRequestValidator(ctx, api.Spec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}

	tokens := auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.AdminTokenTTL)
	authService := auth.NewService(cfg.Security.AdminPasswordHash, tokens, lg)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Health:  rest.NewHealthHandler(base, deps.DB.SQLX, deps.Gateway.Name()),
		Auth:    auth.NewHandler(base, authService),
		Product: product.NewHandler(base, deps.Products),
		Order:   order.NewHandler(base, deps.Orders),
		Payment: payment.NewHandler(base, deps.Payments, paymentpostgres.NewStatsRepository(deps.DB.SQLX), lg),
		Webhook: payment.NewWebhookHandler(base, deps.Reconciler, lg),
	}, authService, validator, rest.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		WebhookRateLimit: cfg.Server.WebhookRateLimit,
		WebhookBurst:     cfg.Server.WebhookBurst,
		PublicRateLimit:  cfg.Server.PublicRateLimit,
		PublicBurst:      cfg.Server.PublicBurst,
		MetricsEnabled:   cfg.Observability.Metrics.Enabled,
		MetricsPath:      cfg.Observability.Metrics.Path,
	}, lg)

	return router, nil
}
