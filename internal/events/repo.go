package events

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

// Repository is the persistence surface for events and their ticket types.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateEvent(ctx context.Context, event *models.Event) (*models.Event, error)
	UpdateEvent(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]models.Event, error)
	ListPublished(ctx context.Context) ([]models.Event, error)
	CreateTicketType(ctx context.Context, tt *models.TicketType) (*models.TicketType, error)
	FindTicketType(ctx context.Context, id uuid.UUID) (*models.TicketType, error)
	ListTicketTypes(ctx context.Context, eventID uuid.UUID) ([]models.TicketType, error)
	ListSellableTicketTypes(ctx context.Context, eventID uuid.UUID) ([]models.TicketType, error)
	ResizeTicketType(ctx context.Context, id uuid.UUID, totalQty, halfPriceQty int) (bool, error)
	SetTicketTypeHidden(ctx context.Context, id uuid.UUID, hidden bool) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an events repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateEvent(ctx context.Context, event *models.Event) (*models.Event, error) {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *repository) UpdateEvent(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Save(event).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) ListByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("organizer_id = ?", organizerID).
		Order("starts_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) ListPublished(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.EventStatusPublished).
		Order("starts_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) CreateTicketType(ctx context.Context, tt *models.TicketType) (*models.TicketType, error) {
	if err := r.db.WithContext(ctx).Create(tt).Error; err != nil {
		return nil, err
	}
	return tt, nil
}

func (r *repository) FindTicketType(ctx context.Context, id uuid.UUID) (*models.TicketType, error) {
	var tt models.TicketType
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tt).Error
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

func (r *repository) ListTicketTypes(ctx context.Context, eventID uuid.UUID) ([]models.TicketType, error) {
	var types []models.TicketType
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&types).Error
	if err != nil {
		return nil, err
	}
	return types, nil
}

func (r *repository) ListSellableTicketTypes(ctx context.Context, eventID uuid.UUID) ([]models.TicketType, error) {
	var types []models.TicketType
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND hidden = ?", eventID, false).
		Order("created_at ASC").
		Find(&types).Error
	if err != nil {
		return nil, err
	}
	return types, nil
}

func (r *repository) SetTicketTypeHidden(ctx context.Context, id uuid.UUID, hidden bool) error {
	return r.db.WithContext(ctx).Model(&models.TicketType{}).
		Where("id = ?", id).
		Update("hidden", hidden).Error
}

// ResizeTicketType shrinks or grows the pools but never below what is
// already sold or reserved.
func (r *repository) ResizeTicketType(ctx context.Context, id uuid.UUID, totalQty, halfPriceQty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE ticket_types
		 SET total_qty = ?, half_price_qty = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		   AND sold_qty + reserved_qty <= ?
		   AND half_price_sold + half_price_reserved <= ?`,
		totalQty, halfPriceQty, id, totalQty, halfPriceQty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
