package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

// Repository is the persistence surface for payment attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	ClaimStatus(ctx context.Context, paymentID uuid.UUID, from, to enums.PaymentStatus, paidAt *time.Time) (bool, error)
	ClaimRefunded(ctx context.Context, paymentID uuid.UUID, from enums.PaymentStatus, at time.Time) (bool, error)
	RecordProviderSnapshot(ctx context.Context, paymentID uuid.UUID, providerStatus string, snapshot json.RawMessage) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("provider_payment_id = ?", providerPaymentID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status <> ?", orderID, enums.PaymentStatusCancelled).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ClaimStatus transitions a payment from one exact status to another so a
// stale webhook replay cannot rewind a settled payment.
func (r *repository) ClaimStatus(ctx context.Context, paymentID uuid.UUID, from, to enums.PaymentStatus, paidAt *time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClaimRefunded moves a settled payment into refunded, keeping paid_at so the
// original settlement stays on record.
func (r *repository) ClaimRefunded(ctx context.Context, paymentID uuid.UUID, from enums.PaymentStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, from).
		Updates(map[string]any{"status": enums.PaymentStatusRefunded, "refunded_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RecordProviderSnapshot stores the latest raw status and payload the
// provider reported for this payment.
func (r *repository) RecordProviderSnapshot(ctx context.Context, paymentID uuid.UUID, providerStatus string, snapshot json.RawMessage) error {
	updates := map[string]any{"provider_status": providerStatus}
	if len(snapshot) > 0 {
		updates["provider_snapshot"] = snapshot
	}
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Updates(updates).Error
}
