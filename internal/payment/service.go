package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/storefront/internal"
	"github.com/frahmantamala/storefront/internal/order"
	"github.com/frahmantamala/storefront/internal/paymentgateway"
	"github.com/frahmantamala/storefront/internal/telemetry"
	"github.com/frahmantamala/storefront/pkg/logger"
)

// OrderCreator is satisfied by *order.Service.
type OrderCreator interface {
	CreateOrder(ctx context.Context, dto order.CreateOrderDTO) (*order.Order, error)
}

type ServiceAPI interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	Cancel(ctx context.Context, recordID int64, partialAmount *int64) (*CancelResult, error)
	PaymentStatus(ctx context.Context, recordID int64) (*StatusResponse, error)
	OrderPayments(ctx context.Context, orderID int64) ([]StatusResponse, error)
	PublicStatus(ctx context.Context, reference string) (*PublicStatusResponse, error)
	RefreshByReference(ctx context.Context, reference string) (Result, error)
}

// PaymentService drives checkout against the gateway and keeps the local
// records in step through the reconciler.
type PaymentService struct {
	store      Store
	gateway    Gateway
	orders     OrderCreator
	reconciler *Reconciler
	logger     *slog.Logger
}

func NewPaymentService(store Store, gateway Gateway, orders OrderCreator, reconciler *Reconciler, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		store:      store,
		gateway:    gateway,
		orders:     orders,
		reconciler: reconciler,
		logger:     logger,
	}
}

var _ ServiceAPI = (*PaymentService)(nil)

// NewOrderReference is unique per payment attempt so a retried checkout of the
// same order never collides at the gateway. The random part keeps it
// unguessable, it doubles as the buyer's handle on the payment.
func NewOrderReference(orderID int64) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%d-%s", orderID, random[:referenceRandomLen])
}

// the gateway caps OrderId at 36 characters
const referenceRandomLen = 24

// ValidOrderReference reports whether ref has the shape NewOrderReference produces.
func ValidOrderReference(ref string) bool {
	orderPart, random, ok := strings.Cut(ref, "-")
	if !ok || orderPart == "" || len(random) != referenceRandomLen {
		return false
	}
	if _, err := strconv.ParseInt(orderPart, 10, 64); err != nil {
		return false
	}
	for _, r := range random {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// Checkout creates the order, registers the payment with the gateway and
// stores a pending record. Gateway errors are returned as is; the order stays
// pending for manual handling.
func (s *PaymentService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	o, err := s.orders.CreateOrder(ctx, req.CreateOrderDTO)
	if err != nil {
		telemetry.Checkouts.WithLabelValues("invalid").Inc()
		return nil, err
	}

	ref := NewOrderReference(o.ID)
	log := logger.From(ctx).With("order_id", o.ID, "order_reference", ref)

	init, err := s.gateway.InitPayment(ctx, paymentgateway.InitParams{
		OrderReference: ref,
		Amount:         o.TotalAmount,
		Description:    fmt.Sprintf("Order #%d", o.ID),
		Customer:       customerOf(o),
		Items:          lineItemsOf(o),
	})
	if err != nil {
		outcome := "gateway_error"
		if appErr, ok := errors.IsAppError(err); ok && appErr.Type == errors.ErrorTypePaymentRejected {
			outcome = "rejected"
		}
		telemetry.Checkouts.WithLabelValues(outcome).Inc()
		log.Warn("payment init failed, order left pending", "error", err)
		return nil, err
	}

	metadata, err := json.Marshal(map[string]interface{}{
		"init_status": init.Status,
		"init_amount": init.Amount,
	})
	if err != nil {
		return nil, err
	}

	recordID, err := s.store.CreatePaymentRecord(ctx, NewPaymentRecord{
		OrderID:          o.ID,
		OrderReference:   ref,
		GatewayName:      s.gateway.Name(),
		GatewayPaymentID: init.PaymentID,
		Amount:           o.TotalAmount,
		Currency:         o.Currency,
		PayerContact:     payerContact(o),
		RedirectURL:      init.RedirectURL,
		Metadata:         metadata,
	})
	if err != nil {
		telemetry.Checkouts.WithLabelValues("store_error").Inc()
		log.Error("payment registered at gateway but not stored", "error", err, "gateway_payment_id", init.PaymentID)
		return nil, fmt.Errorf("store payment record: %w", err)
	}

	telemetry.Checkouts.WithLabelValues("ok").Inc()
	log.Info("checkout started", "record_id", recordID, "gateway_payment_id", init.PaymentID, "amount", o.TotalAmount)

	return &CheckoutResult{
		OrderID:          o.ID,
		PaymentID:        recordID,
		GatewayPaymentID: init.PaymentID,
		OrderReference:   ref,
		Amount:           o.TotalAmount,
		Currency:         o.Currency,
		RedirectURL:      init.RedirectURL,
	}, nil
}

// Cancel reverses or refunds a payment at the gateway and applies the status
// the gateway reports.
func (s *PaymentService) Cancel(ctx context.Context, recordID int64, partialAmount *int64) (*CancelResult, error) {
	rec, err := s.store.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.GatewayPaymentID == nil {
		return nil, errors.NewConflictError("payment was never registered with the gateway", errors.ErrCodePaymentNotFound)
	}

	source := "cli"
	if errors.IsAdminContext(ctx) {
		source = "admin panel"
	}
	s.logger.Info("cancelling payment",
		"record_id", recordID,
		"source", source,
		"request_id", errors.RequestIDFromContext(ctx),
		"partial", partialAmount != nil)

	res, err := s.gateway.Cancel(ctx, *rec.GatewayPaymentID, partialAmount, rec.Amount)
	if err != nil {
		return nil, err
	}

	msg := "cancel (" + source + "): " + string(res.Status)
	if partialAmount != nil {
		msg += " amount " + strconv.FormatInt(*partialAmount, 10)
	}
	applied, err := s.reconciler.Apply(ctx, rec, res.Status, msg)
	if err != nil {
		return nil, err
	}

	status := applied.To
	if applied.Outcome != OutcomeApplied {
		status = applied.From
	}

	return &CancelResult{
		PaymentID:     recordID,
		GatewayStatus: string(res.Status),
		Status:        string(status),
		Outcome:       string(applied.Outcome),
		NewAmount:     res.NewAmount,
	}, nil
}

func (s *PaymentService) PaymentStatus(ctx context.Context, recordID int64) (*StatusResponse, error) {
	rec, err := s.store.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, recordID)
	if err != nil {
		return nil, err
	}
	resp := toStatusResponse(rec, events)
	return &resp, nil
}

func (s *PaymentService) Refresh(ctx context.Context, recordID int64) (Result, error) {
	return s.reconciler.Refresh(ctx, recordID)
}

// OrderPayments lists every payment attempt of an order, newest first.
func (s *PaymentService) OrderPayments(ctx context.Context, orderID int64) ([]StatusResponse, error) {
	records, err := s.store.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]StatusResponse, 0, len(records))
	for i := range records {
		events, err := s.store.ListEvents(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, toStatusResponse(&records[i], events))
	}
	return out, nil
}

func (s *PaymentService) PublicStatus(ctx context.Context, reference string) (*PublicStatusResponse, error) {
	rec, err := s.store.GetByOrderReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	resp := toPublicStatusResponse(rec, events)
	return &resp, nil
}

func (s *PaymentService) RefreshByReference(ctx context.Context, reference string) (Result, error) {
	rec, err := s.store.GetByOrderReference(ctx, reference)
	if err != nil {
		return Result{}, err
	}
	return s.reconciler.Refresh(ctx, rec.ID)
}

func customerOf(o *order.Order) paymentgateway.Customer {
	c := paymentgateway.Customer{
		Email: o.Customer.Email,
		Phone: o.Customer.Phone,
	}
	if o.Customer.TelegramUserID != nil {
		c.ID = "tg-" + strconv.FormatInt(*o.Customer.TelegramUserID, 10)
	}
	return c
}

func lineItemsOf(o *order.Order) []paymentgateway.LineItem {
	items := make([]paymentgateway.LineItem, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, paymentgateway.LineItem{
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  decimal.NewFromInt(int64(l.Quantity)),
			Amount:    l.Amount,
			SKU:       barcode(l.SKU),
		})
	}
	return items
}

func payerContact(o *order.Order) string {
	parts := make([]string, 0, 2)
	if o.Customer.Email != "" {
		parts = append(parts, o.Customer.Email)
	}
	if o.Customer.Phone != "" {
		parts = append(parts, o.Customer.Phone)
	}
	return strings.Join(parts, ", ")
}

// barcode keeps catalog SKUs that are valid EAN-13 codes.
func barcode(sku string) string {
	if len(sku) != 13 {
		return ""
	}
	for _, r := range sku {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return sku
}
