package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/storefront/internal"
	ordermodel "github.com/frahmantamala/storefront/internal/core/datamodel/order"
	paymentmodel "github.com/frahmantamala/storefront/internal/core/datamodel/payment"
	gatewaytypes "github.com/frahmantamala/storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/storefront/internal/core/events"
	"github.com/frahmantamala/storefront/internal/paymentgateway"
	"github.com/frahmantamala/storefront/internal/telemetry"
	"github.com/frahmantamala/storefront/pkg/logger"
)

// Gateway is the subset of the gateway client the payment package drives.
type Gateway interface {
	Name() string
	InitPayment(ctx context.Context, params paymentgateway.InitParams) (*paymentgateway.InitResult, error)
	GetState(ctx context.Context, paymentID string) (*paymentgateway.StateResult, error)
	Cancel(ctx context.Context, paymentID string, partialAmount *int64, originalAmount int64) (*paymentgateway.CancelResult, error)
	VerifyNotification(raw paymentgateway.Fields) (*paymentgateway.Notification, error)
}

var _ Gateway = (*paymentgateway.Client)(nil)

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeDropped   Outcome = "dropped"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeRejected  Outcome = "rejected"
)

type Result struct {
	Outcome  Outcome
	RecordID int64
	From     Status
	To       Status
	Reason   string
}

// staleRetries bounds how often a transition is re-evaluated after losing
// the optimistic status guard to a concurrent writer.
const staleRetries = 2

type Reconciler struct {
	store     Store
	gateway   Gateway
	publisher events.Publisher
	logger    *slog.Logger
}

func NewReconciler(store Store, gateway Gateway, publisher events.Publisher, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleNotification verifies a webhook body and folds it into the local
// record. A returned error means the body was rejected and nothing changed.
func (r *Reconciler) HandleNotification(ctx context.Context, raw paymentgateway.Fields) (Result, error) {
	log := logger.From(ctx)

	n, err := r.gateway.VerifyNotification(raw)
	if err != nil {
		telemetry.Notifications.WithLabelValues(string(OutcomeRejected)).Inc()
		log.Warn("rejected gateway notification",
			"error", err,
			"payment_id", raw.String("PaymentId"),
			"status", raw.String("Status"))
		return Result{Outcome: OutcomeRejected, Reason: err.Error()}, err
	}

	log = log.With("gateway_payment_id", n.PaymentID, "gateway_status", n.Status)

	rec, err := r.store.GetPaymentRecordByGatewayID(ctx, r.gateway.Name(), n.PaymentID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup payment %s: %w", n.PaymentID, err)
	}
	if rec == nil {
		telemetry.Notifications.WithLabelValues(string(OutcomeIgnored)).Inc()
		log.Warn("notification for unknown payment")
		return Result{Outcome: OutcomeIgnored, Reason: "unknown payment"}, nil
	}

	target := MapGatewayStatus(n.Status)

	// refunds legitimately carry the refunded amount
	if n.HasAmount && n.Amount != rec.Amount && target != StatusRefunded {
		telemetry.Notifications.WithLabelValues(string(OutcomeIgnored)).Inc()
		log.Warn("notification amount does not match payment",
			"code", internal.ErrCodeAmountMismatch,
			"record_id", rec.ID,
			"expected", rec.Amount,
			"got", n.Amount)
		return Result{Outcome: OutcomeIgnored, RecordID: rec.ID, Reason: string(internal.ErrCodeAmountMismatch)}, nil
	}

	res, err := r.ApplyStatus(ctx, rec.ID, target, notificationMessage(n))
	if err != nil {
		return res, err
	}
	telemetry.Notifications.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

// Apply maps a gateway status and applies it to the record.
func (r *Reconciler) Apply(ctx context.Context, rec *paymentmodel.PaymentRecord, status gatewaytypes.GatewayStatus, message string) (Result, error) {
	return r.ApplyStatus(ctx, rec.ID, MapGatewayStatus(status), message)
}

// ApplyStatus moves a record along the status lattice. The status change, the
// audit event and the order update commit together or not at all.
func (r *Reconciler) ApplyStatus(ctx context.Context, recordID int64, target Status, message string) (Result, error) {
	if !target.Valid() {
		return Result{RecordID: recordID}, internal.NewValidationError("unknown payment status "+string(target), internal.ErrCodeValidationFailed)
	}
	log := logger.From(ctx).With("record_id", recordID, "target", target)

	for attempt := 1; attempt <= staleRetries; attempt++ {
		var (
			res Result
			rec *paymentmodel.PaymentRecord
		)

		err := r.store.InTx(ctx, func(tx Store) error {
			current, err := tx.GetByID(ctx, recordID)
			if err != nil {
				return err
			}
			rec = current
			from := Status(current.Status)
			res = Result{RecordID: recordID, From: from, To: target}

			if from == target {
				res.Outcome = OutcomeDuplicate
				return nil
			}
			if !CanTransition(from, target) {
				res.Outcome = OutcomeDropped
				res.Reason = string(internal.ErrCodeStatusRegression)
				return nil
			}

			if err := tx.UpdatePaymentStatus(ctx, recordID, from, target); err != nil {
				return err
			}
			if err := tx.AppendStatusEvent(ctx, recordID, target, message); err != nil {
				return err
			}

			switch target {
			case StatusCompleted:
				if _, err := tx.MarkOrderConfirmed(ctx, current.OrderID); err != nil {
					return err
				}
			case StatusFailed:
				if err := tx.SetOrderStatus(ctx, current.OrderID, ordermodel.StatusPaymentFailed); err != nil {
					return err
				}
			case StatusRefunded:
				if err := tx.SetOrderStatus(ctx, current.OrderID, ordermodel.StatusRefunded); err != nil {
					return err
				}
			}

			res.Outcome = OutcomeApplied
			return nil
		})

		if errors.Is(err, ErrStaleStatus) {
			log.Info("payment status changed concurrently, re-evaluating", "attempt", attempt)
			continue
		}
		if err != nil {
			return Result{RecordID: recordID}, fmt.Errorf("apply status %s to payment %d: %w", target, recordID, err)
		}

		switch res.Outcome {
		case OutcomeDuplicate:
			log.Debug("duplicate payment status ignored")
		case OutcomeDropped:
			log.Warn("dropping payment status regression",
				"error", internal.NewIllegalTransitionError(string(res.From), string(target)))
		case OutcomeApplied:
			telemetry.StatusTransitions.WithLabelValues(string(res.From), string(res.To)).Inc()
			log.Info("payment status updated", "from", res.From)
			r.publish(ctx, rec, res, message)
		}
		return res, nil
	}

	return Result{RecordID: recordID}, fmt.Errorf("apply status %s to payment %d: %w", target, recordID, ErrStaleStatus)
}

// Refresh asks the gateway for the current state of a record and applies it.
func (r *Reconciler) Refresh(ctx context.Context, recordID int64) (Result, error) {
	rec, err := r.store.GetByID(ctx, recordID)
	if err != nil {
		return Result{}, err
	}
	if rec.GatewayPaymentID == nil {
		return Result{Outcome: OutcomeIgnored, RecordID: recordID, Reason: "payment was never registered with the gateway"}, nil
	}
	if current := Status(rec.Status); current.IsFinal() {
		return Result{Outcome: OutcomeDuplicate, RecordID: recordID, From: current, To: current, Reason: "payment is final"}, nil
	}

	state, err := r.gateway.GetState(ctx, *rec.GatewayPaymentID)
	if err != nil {
		return Result{RecordID: recordID}, err
	}

	return r.Apply(ctx, rec, state.Status, "state poll: "+string(state.Status))
}

func (r *Reconciler) publish(ctx context.Context, rec *paymentmodel.PaymentRecord, res Result, message string) {
	if r.publisher == nil || rec == nil {
		return
	}

	var eventType string
	switch res.To {
	case StatusCompleted:
		eventType = events.EventTypePaymentCompleted
	case StatusFailed:
		eventType = events.EventTypePaymentFailed
	case StatusRefunded:
		eventType = events.EventTypePaymentRefunded
	default:
		return
	}

	gatewayID := ""
	if rec.GatewayPaymentID != nil {
		gatewayID = *rec.GatewayPaymentID
	}

	event := events.NewPaymentStatusChangedEvent(eventType, rec.ID, rec.OrderID, gatewayID,
		rec.Amount, rec.Currency, string(res.From), string(res.To), message)
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Error("failed to publish payment event", "error", err, "event_type", eventType, "record_id", rec.ID)
	}
}

func notificationMessage(n *paymentgateway.Notification) string {
	msg := "notification: " + string(n.Status)
	if n.ErrorCode != "" && n.ErrorCode != "0" {
		msg += " (error " + n.ErrorCode + ")"
	}
	return msg
}
