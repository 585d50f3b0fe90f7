package payment

import (
	"context"
	"errors"
	"time"

	paymentmodel "github.com/frahmantamala/storefront/internal/core/datamodel/payment"
	gatewaytypes "github.com/frahmantamala/storefront/internal/core/datamodel/paymentgateway"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

// transitions is the status lattice. Everything not listed is a regression.
var transitions = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCompleted: true, StatusFailed: true},
	StatusProcessing: {StatusCompleted: true, StatusFailed: true},
	StatusCompleted:  {StatusRefunded: true},
}

func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// IsFinal reports whether the lattice allows no further move.
func (s Status) IsFinal() bool {
	return s == StatusFailed || s == StatusRefunded
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// MapGatewayStatus folds the gateway vocabulary onto local statuses.
// Unknown and intermediate statuses mean the payment is still in flight.
func MapGatewayStatus(status gatewaytypes.GatewayStatus) Status {
	switch status {
	case gatewaytypes.StatusConfirmed, gatewaytypes.StatusCompleted:
		return StatusCompleted
	case gatewaytypes.StatusRejected, gatewaytypes.StatusCanceled, gatewaytypes.StatusDeadlineExpired,
		gatewaytypes.StatusAuthFail, gatewaytypes.StatusReversed:
		return StatusFailed
	case gatewaytypes.StatusRefunded, gatewaytypes.StatusPartialRefunded:
		return StatusRefunded
	default:
		return StatusProcessing
	}
}

// ErrStaleStatus means the record changed status between read and write.
var ErrStaleStatus = errors.New("payment status changed concurrently")

type NewPaymentRecord struct {
	OrderID          int64
	OrderReference   string
	GatewayName      string
	GatewayPaymentID string
	Amount           int64
	Currency         string
	PayerContact     string
	RedirectURL      string
	Metadata         []byte
}

// Store is the narrow persistence boundary of the reconciler.
type Store interface {
	// CreatePaymentRecord stores a pending record together with its first audit event.
	CreatePaymentRecord(ctx context.Context, rec NewPaymentRecord) (int64, error)
	GetByID(ctx context.Context, id int64) (*paymentmodel.PaymentRecord, error)
	GetByOrderReference(ctx context.Context, reference string) (*paymentmodel.PaymentRecord, error)
	// GetPaymentRecordByGatewayID returns nil without error when nothing matches.
	GetPaymentRecordByGatewayID(ctx context.Context, gatewayName, gatewayPaymentID string) (*paymentmodel.PaymentRecord, error)
	AppendStatusEvent(ctx context.Context, recordID int64, status Status, message string) error
	// UpdatePaymentStatus moves a record from one status to another and
	// returns ErrStaleStatus when the record is no longer in from.
	UpdatePaymentStatus(ctx context.Context, recordID int64, from, to Status) error
	// MarkOrderConfirmed reports whether the order changed.
	MarkOrderConfirmed(ctx context.Context, orderID int64) (bool, error)
	// SetOrderStatus only touches orders that are not confirmed yet, except for refunds.
	SetOrderStatus(ctx context.Context, orderID int64, status string) error
	ListEvents(ctx context.Context, recordID int64) ([]paymentmodel.PaymentStatusEvent, error)
	ListByOrder(ctx context.Context, orderID int64) ([]paymentmodel.PaymentRecord, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]paymentmodel.PaymentRecord, error)
	InTx(ctx context.Context, fn func(tx Store) error) error
}
