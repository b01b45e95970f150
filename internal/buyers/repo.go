package buyers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
)

// Repository is the persistence surface for buyer accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, buyer *models.Buyer) (*models.Buyer, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Buyer, error)
	FindByEmail(ctx context.Context, email string) (*models.Buyer, error)
	Update(ctx context.Context, buyer *models.Buyer) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a buyers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, buyer *models.Buyer) (*models.Buyer, error) {
	if err := r.db.WithContext(ctx).Create(buyer).Error; err != nil {
		return nil, err
	}
	return buyer, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Buyer, error) {
	var buyer models.Buyer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&buyer).Error
	if err != nil {
		return nil, err
	}
	return &buyer, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Buyer, error) {
	var buyer models.Buyer
	err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&buyer).Error
	if err != nil {
		return nil, err
	}
	return &buyer, nil
}

func (r *repository) Update(ctx context.Context, buyer *models.Buyer) error {
	return r.db.WithContext(ctx).Save(buyer).Error
}

// NormalizeEmail lowercases and trims an address so lookups and the unique
// index agree on a canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
