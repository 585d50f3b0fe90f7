package cmd

import (
	"fmt"
	"log/slog"

	"github.com/frahmantamala/storefront/internal"
	"github.com/frahmantamala/storefront/internal/core/database"
	"github.com/frahmantamala/storefront/internal/core/events"
	"github.com/frahmantamala/storefront/internal/notify"
	"github.com/frahmantamala/storefront/internal/order"
	orderpostgres "github.com/frahmantamala/storefront/internal/order/postgres"
	"github.com/frahmantamala/storefront/internal/payment"
	paymentpostgres "github.com/frahmantamala/storefront/internal/payment/postgres"
	"github.com/frahmantamala/storefront/internal/paymentgateway"
	"github.com/frahmantamala/storefront/internal/product"
	productpostgres "github.com/frahmantamala/storefront/internal/product/postgres"
	"github.com/frahmantamala/storefront/pkg/logger"
)

// Dependencies is the object graph shared by the server, the worker and the
// payment commands.
type Dependencies struct {
	Config     *internal.Config
	DB         *database.Connections
	Logger     *slog.Logger
	EventBus   *events.EventBus
	Gateway    *paymentgateway.Client
	Store      *paymentpostgres.PaymentStore
	Products   *product.Service
	Orders     *order.Service
	Reconciler *payment.Reconciler
	Payments   *payment.PaymentService
	Notifier   *notify.Telegram
}

func initializeDependencies() (*Dependencies, error) {
	cfg, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	lg := logger.LoggerWrapper()

	gatewayCfg, err := paymentgateway.ConfigFrom(cfg.Gateway)
	if err != nil {
		return nil, err
	}
	gateway, err := paymentgateway.NewClient(gatewayCfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment gateway client: %w", err)
	}

	db, err := database.Open(cfg.Database, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	bus := events.NewEventBus(lg)
	store := paymentpostgres.NewPaymentStore(db.Gorm)

	products := product.NewService(productpostgres.NewProductRepository(db.Gorm), lg)
	orders := order.NewService(orderpostgres.NewOrderRepository(db.Gorm), products, bus, cfg.Storefront.Currency, lg)
	reconciler := payment.NewReconciler(store, gateway, bus, lg)
	payments := payment.NewPaymentService(store, gateway, orders, reconciler, lg)

	notifier := notify.NewTelegram(cfg.Telegram, lg)
	payment.NewEventHandler(orders, notifier, lg).RegisterEventHandlers(bus)

	return &Dependencies{
		Config:     cfg,
		DB:         db,
		Logger:     lg,
		EventBus:   bus,
		Gateway:    gateway,
		Store:      store,
		Products:   products,
		Orders:     orders,
		Reconciler: reconciler,
		Payments:   payments,
		Notifier:   notifier,
	}, nil
}

// Close waits for in-flight event handlers before releasing the pool.
func (d *Dependencies) Close() {
	d.EventBus.Wait()
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

func (d *Dependencies) newPoller() *payment.Poller {
	rc := d.Config.Reconciler
	return payment.NewPoller(d.Store, d.Reconciler, payment.PollerConfig{
		Interval:   rc.PollInterval,
		StaleAfter: rc.StaleAfter,
		BatchSize:  rc.BatchSize,
		Workers:    rc.Workers,
		QueueSize:  rc.QueueSize,
	}, d.Logger)
}
