package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frahmantamala/storefront/api"
	"github.com/frahmantamala/storefront/internal/auth"
	"github.com/frahmantamala/storefront/internal/order"
	"github.com/frahmantamala/storefront/internal/payment"
	"github.com/frahmantamala/storefront/internal/product"
	"github.com/frahmantamala/storefront/internal/transport/middleware"
	"github.com/frahmantamala/storefront/internal/transport/swagger"
)

const openAPIPath = "/openapi.yml"

type Handlers struct {
	Health  *HealthHandler
	Auth    *auth.Handler
	Product *product.Handler
	Order   *order.Handler
	Payment *payment.Handler
	Webhook *payment.WebhookHandler
}

type Options struct {
	AllowedOrigins   string
	WebhookRateLimit float64
	WebhookBurst     int
	PublicRateLimit  float64
	PublicBurst      int
	MetricsEnabled   bool
	MetricsPath      string
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, tokens middleware.TokenValidator, validator *middleware.RequestValidator, opts Options, logger *slog.Logger) {
	validate := func(next http.Handler) http.Handler { return next }
	if validator != nil {
		validate = validator.Handler
	}

	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.MetricsEnabled {
		router.Use(middleware.Metrics)
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, promhttp.Handler())
	}

	router.Get(openAPIPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.Spec)
	})
	router.Handle("/swagger/*", swagger.Handler(openAPIPath))

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.Health)
			r.Get("/ping", h.Health.Ping)
		}

		if h.Product != nil {
			r.Get("/products", h.Product.GetProducts)
			r.With(validate).Get("/products/{id}", h.Product.GetProduct)
		}

		if h.Payment != nil {
			r.With(validate).Post("/checkout", h.Payment.Checkout)
			r.With(validate).Get("/payments/{reference}", h.Payment.GetStatus)
			// every refresh costs a signed gateway call
			limiter := middleware.NewRateLimiter(opts.PublicRateLimit, opts.PublicBurst)
			r.With(limiter.Handler, validate).Post("/payments/{reference}/refresh", h.Payment.Refresh)
		}

		if h.Webhook != nil {
			limiter := middleware.NewRateLimiter(opts.WebhookRateLimit, opts.WebhookBurst)
			r.With(limiter.Handler).Post("/payment/webhook", h.Webhook.HandleNotification)
		}

		r.Route("/admin", func(ar chi.Router) {
			if h.Auth != nil {
				ar.With(validate).Post("/login", h.Auth.Login)
			}

			ar.Group(func(pr chi.Router) {
				pr.Use(middleware.RequireAdmin(tokens))

				if h.Product != nil {
					pr.Get("/products", h.Product.GetAllProducts)
					pr.With(validate).Post("/products", h.Product.CreateProduct)
					pr.With(validate).Put("/products/{id}", h.Product.UpdateProduct)
					pr.With(validate).Delete("/products/{id}", h.Product.DeleteProduct)
				}

				if h.Order != nil {
					pr.With(validate).Get("/orders", h.Order.ListOrders)
					pr.With(validate).Get("/orders/{id}", h.Order.GetOrder)
				}

				if h.Payment != nil {
					pr.With(validate).Get("/orders/{id}/payments", h.Payment.GetOrderPayments)
					pr.With(validate).Get("/payments/{id}", h.Payment.GetPayment)
				}

				if h.Payment != nil {
					pr.With(validate).Post("/payments/{id}/cancel", h.Payment.Cancel)
					pr.Get("/payments/stats", h.Payment.GetStats)
				}
			})
		})
	})
}
