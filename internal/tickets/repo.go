package tickets

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

// Repository is the persistence surface for ticket instances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, ticket *models.TicketInstance) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.TicketInstance, error)
	FindByCode(ctx context.Context, code string) (*models.TicketInstance, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.TicketInstance, error)
	ListByHolder(ctx context.Context, holderID uuid.UUID) ([]models.TicketInstance, error)
	ClaimCheckIn(ctx context.Context, ticketID, operatorID uuid.UUID, meta CheckInMeta, at time.Time) (bool, error)
	ClaimTransfer(ctx context.Context, ticketID, fromID, toID uuid.UUID, attendeeName *string, at time.Time) (bool, error)
	CancelByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a ticket repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, ticket *models.TicketInstance) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.TicketInstance, error) {
	var ticket models.TicketInstance
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.TicketInstance, error) {
	var ticket models.TicketInstance
	err := r.db.WithContext(ctx).Where("code = ?", NormalizeCode(code)).First(&ticket).Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.TicketInstance, error) {
	var tickets []models.TicketInstance
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *repository) ListByHolder(ctx context.Context, holderID uuid.UUID) ([]models.TicketInstance, error) {
	var tickets []models.TicketInstance
	err := r.db.WithContext(ctx).
		Where("holder_id = ?", holderID).
		Order("created_at DESC").
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// ClaimCheckIn flips an active ticket to checked_in exactly once.
func (r *repository) ClaimCheckIn(ctx context.Context, ticketID, operatorID uuid.UUID, meta CheckInMeta, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":        enums.TicketStatusCheckedIn,
		"checked_in_at": at,
		"checked_in_by": operatorID,
	}
	if meta.Location != nil {
		updates["checked_in_location"] = *meta.Location
	}
	if meta.Notes != nil {
		updates["checked_in_notes"] = *meta.Notes
	}
	res := r.db.WithContext(ctx).Model(&models.TicketInstance{}).
		Where("id = ? AND status = ?", ticketID, enums.TicketStatusActive).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClaimTransfer reassigns an active, never checked-in ticket to a new holder.
func (r *repository) ClaimTransfer(ctx context.Context, ticketID, fromID, toID uuid.UUID, attendeeName *string, at time.Time) (bool, error) {
	updates := map[string]any{
		"holder_id":        toID,
		"transferred_from": fromID,
		"transferred_at":   at,
	}
	if attendeeName != nil {
		updates["attendee_name"] = *attendeeName
	}
	res := r.db.WithContext(ctx).Model(&models.TicketInstance{}).
		Where("id = ? AND holder_id = ? AND status = ? AND checked_in_at IS NULL",
			ticketID, fromID, enums.TicketStatusActive).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CancelByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.TicketInstance{}).
		Where("order_id = ? AND status = ?", orderID, enums.TicketStatusActive).
		Update("status", enums.TicketStatusCancelled)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
