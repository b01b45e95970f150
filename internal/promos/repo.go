package promos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

// Repository is the persistence surface for promo codes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByEventAndCode(ctx context.Context, eventID uuid.UUID, code string) (*models.PromoCode, error)
	CountBuyerUses(ctx context.Context, promoID, buyerID uuid.UUID) (int, error)
	IncrementUsage(ctx context.Context, promoID uuid.UUID) (bool, error)
	Create(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.PromoCode, error)
	Deactivate(ctx context.Context, eventID, promoID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a promo repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByEventAndCode(ctx context.Context, eventID uuid.UUID, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND code = ?", eventID, NormalizeCode(code)).
		First(&promo).Error
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

// CountBuyerUses counts this buyer's live orders carrying the code. Cancelled
// and expired orders give the redemption back.
func (r *repository) CountBuyerUses(ctx context.Context, promoID, buyerID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("promo_code_id = ? AND buyer_id = ? AND status NOT IN ?",
			promoID, buyerID, []enums.OrderStatus{enums.OrderStatusCancelled, enums.OrderStatusExpired}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// IncrementUsage claims one redemption slot with a guarded UPDATE. A zero
// max_uses means unlimited. Returns false when the limit is already reached.
func (r *repository) IncrementUsage(ctx context.Context, promoID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE promo_codes
		 SET used_count = used_count + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND (max_uses = 0 OR used_count < max_uses)`,
		promoID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) Create(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	if promo.ID == uuid.Nil {
		promo.ID = uuid.New()
	}
	promo.Code = NormalizeCode(promo.Code)
	if err := r.db.WithContext(ctx).Create(promo).Error; err != nil {
		return nil, err
	}
	return promo, nil
}

func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.PromoCode, error) {
	var promos []models.PromoCode
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&promos).Error
	if err != nil {
		return nil, err
	}
	return promos, nil
}

// Deactivate flips a code off without deleting redemption history.
func (r *repository) Deactivate(ctx context.Context, eventID, promoID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.PromoCode{}).
		Where("id = ? AND event_id = ?", promoID, eventID).
		Update("active", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// NormalizeCode uppercases and trims a code for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
