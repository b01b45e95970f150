package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/outbox"
)

// Repository is the persistence surface for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	ClaimProcessing(ctx context.Context, orderID uuid.UUID) (bool, error)
	ClaimConfirmed(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error)
	ClaimCancelled(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error)
	ClaimExpired(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	MarkEmailSent(ctx context.Context, orderID uuid.UUID, at time.Time) error
	MarkEmailFailed(ctx context.Context, orderID uuid.UUID, reason string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	FindTicketType(ctx context.Context, id uuid.UUID) (*models.TicketType, error)
}

type ticketMinter interface {
	MintForOrder(ctx context.Context, tx *gorm.DB, order models.Order, items []models.OrderItem) ([]models.TicketInstance, error)
	CancelForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}
