package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/storefront/internal"
	ordermodel "github.com/frahmantamala/storefront/internal/core/datamodel/order"
	paymentmodel "github.com/frahmantamala/storefront/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/storefront/internal/payment"
)

type PaymentStore struct {
	db *gorm.DB
}

func NewPaymentStore(db *gorm.DB) *PaymentStore {
	return &PaymentStore{
		db: db,
	}
}

var _ paymentpkg.Store = (*PaymentStore)(nil)

func (s *PaymentStore) CreatePaymentRecord(ctx context.Context, rec paymentpkg.NewPaymentRecord) (int64, error) {
	row := &paymentmodel.PaymentRecord{
		OrderID:        rec.OrderID,
		OrderReference: rec.OrderReference,
		GatewayName:    rec.GatewayName,
		Amount:         rec.Amount,
		Currency:       rec.Currency,
		Status:         string(paymentpkg.StatusPending),
		PayerContact:   rec.PayerContact,
		RedirectURL:    rec.RedirectURL,
		Metadata:       rec.Metadata,
	}
	if rec.GatewayPaymentID != "" {
		id := rec.GatewayPaymentID
		row.GatewayPaymentID = &id
	}

	err := s.InTx(ctx, func(tx paymentpkg.Store) error {
		txStore := tx.(*PaymentStore)
		if err := txStore.db.WithContext(ctx).Create(row).Error; err != nil {
			return err
		}
		return txStore.AppendStatusEvent(ctx, row.ID, paymentpkg.StatusPending, "payment initialized")
	})
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (s *PaymentStore) GetByID(ctx context.Context, id int64) (*paymentmodel.PaymentRecord, error) {
	var rec paymentmodel.PaymentRecord
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *PaymentStore) GetByOrderReference(ctx context.Context, reference string) (*paymentmodel.PaymentRecord, error) {
	var rec paymentmodel.PaymentRecord
	err := s.db.WithContext(ctx).Where("order_reference = ?", reference).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *PaymentStore) GetPaymentRecordByGatewayID(ctx context.Context, gatewayName, gatewayPaymentID string) (*paymentmodel.PaymentRecord, error) {
	var rec paymentmodel.PaymentRecord
	err := s.db.WithContext(ctx).
		Where("gateway_name = ? AND gateway_payment_id = ?", gatewayName, gatewayPaymentID).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *PaymentStore) AppendStatusEvent(ctx context.Context, recordID int64, status paymentpkg.Status, message string) error {
	event := &paymentmodel.PaymentStatusEvent{
		PaymentID:  recordID,
		Status:     string(status),
		OccurredAt: time.Now().UTC(),
	}
	if message != "" {
		event.Message = &message
	}
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *PaymentStore) UpdatePaymentStatus(ctx context.Context, recordID int64, from, to paymentpkg.Status) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": now,
	}
	if to == paymentpkg.StatusCompleted {
		updates["completed_at"] = now
	} else {
		updates["completed_at"] = nil
	}

	res := s.db.WithContext(ctx).
		Model(&paymentmodel.PaymentRecord{}).
		Where("id = ? AND status = ?", recordID, string(from)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return paymentpkg.ErrStaleStatus
	}
	return nil
}

func (s *PaymentStore) MarkOrderConfirmed(ctx context.Context, orderID int64) (bool, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&ordermodel.Order{}).
		Where("id = ? AND status IN ?", orderID, []string{ordermodel.StatusPending, ordermodel.StatusPaymentFailed}).
		Updates(map[string]interface{}{
			"status":       ordermodel.StatusConfirmed,
			"confirmed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *PaymentStore) SetOrderStatus(ctx context.Context, orderID int64, status string) error {
	q := s.db.WithContext(ctx).Model(&ordermodel.Order{}).Where("id = ?", orderID)
	switch status {
	case ordermodel.StatusPaymentFailed:
		q = q.Where("status = ?", ordermodel.StatusPending)
	case ordermodel.StatusRefunded:
		q = q.Where("status = ?", ordermodel.StatusConfirmed)
	default:
		q = q.Where("status <> ?", status)
	}
	return q.Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (s *PaymentStore) ListEvents(ctx context.Context, recordID int64) ([]paymentmodel.PaymentStatusEvent, error) {
	var events []paymentmodel.PaymentStatusEvent
	err := s.db.WithContext(ctx).
		Where("payment_id = ?", recordID).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error
	return events, err
}

func (s *PaymentStore) ListByOrder(ctx context.Context, orderID int64) ([]paymentmodel.PaymentRecord, error) {
	var records []paymentmodel.PaymentRecord
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	return records, err
}

// ListStale returns in-flight records not updated since olderThan, oldest first.
func (s *PaymentStore) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]paymentmodel.PaymentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []paymentmodel.PaymentRecord
	err := s.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ? AND gateway_payment_id IS NOT NULL",
			[]string{string(paymentpkg.StatusPending), string(paymentpkg.StatusProcessing)}, olderThan.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (s *PaymentStore) InTx(ctx context.Context, fn func(tx paymentpkg.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PaymentStore{db: tx})
	})
}
