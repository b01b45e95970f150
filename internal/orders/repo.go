package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// claimStatus performs a guarded transition so only one caller wins.
func (r *repository) claimStatus(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ClaimProcessing(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return r.claimStatus(ctx, orderID,
		[]enums.OrderStatus{enums.OrderStatusPending},
		map[string]any{"status": enums.OrderStatusProcessing})
}

func (r *repository) ClaimConfirmed(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	return r.claimStatus(ctx, orderID,
		[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing},
		map[string]any{"status": enums.OrderStatusConfirmed, "confirmed_at": at})
}

func (r *repository) ClaimCancelled(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	return r.claimStatus(ctx, orderID,
		[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing},
		map[string]any{"status": enums.OrderStatusCancelled, "cancelled_at": at})
}

func (r *repository) ClaimExpired(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	return r.claimStatus(ctx, orderID,
		[]enums.OrderStatus{enums.OrderStatusPending},
		map[string]any{"status": enums.OrderStatusExpired, "expired_at": at})
}

func (r *repository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	q := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", enums.OrderStatusPending, cutoff).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) MarkEmailSent(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{"email_sent": true, "email_sent_at": at, "email_last_error": nil}).Error
}

func (r *repository) MarkEmailFailed(ctx context.Context, orderID uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("email_last_error", reason).Error
}
