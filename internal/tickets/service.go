package tickets

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/db"
	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
)

// codeRetries bounds retries when a generated code hits the unique index.
const codeRetries = 3

type Service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// MintForOrder creates one ticket instance per seat of a confirmed order.
// It runs inside the confirmation transaction so tickets and the order status
// commit together.
func (s *Service) MintForOrder(ctx context.Context, tx *gorm.DB, order models.Order, items []models.OrderItem) ([]models.TicketInstance, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	repo := s.repo.WithTx(tx)
	minted := make([]models.TicketInstance, 0)

	for _, item := range items {
		attendees := item.AttendeeList()
		for seat := 0; seat < item.Quantity; seat++ {
			ticket := models.TicketInstance{
				OrderID:      order.ID,
				TicketTypeID: item.TicketTypeID,
				EventID:      order.EventID,
				Status:       enums.TicketStatusActive,
				HolderID:     order.BuyerID,
				HalfPrice:    item.HalfPrice,
			}
			if seat < len(attendees) {
				attendee := attendees[seat]
				if attendee.Name != "" {
					ticket.AttendeeName = &attendee.Name
				}
				if attendee.Email != "" {
					ticket.AttendeeEmail = &attendee.Email
				}
				if attendee.CPF != "" {
					ticket.AttendeeCPF = &attendee.CPF
				}
			}

			if err := s.insertWithFreshCode(ctx, repo, &ticket); err != nil {
				return nil, err
			}
			minted = append(minted, ticket)
		}
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(s.logg.WithField(logCtx, "ticket_count", len(minted)), "tickets minted")
	}

	return minted, nil
}

func (s *Service) insertWithFreshCode(ctx context.Context, repo Repository, ticket *models.TicketInstance) error {
	for attempt := 0; attempt < codeRetries; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating ticket code")
		}
		ticket.ID = uuid.New()
		ticket.Code = code

		err = repo.Insert(ctx, ticket)
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "ux_ticket_instances_code") {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "inserting ticket")
		}
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique ticket code")
}

// CheckInMeta carries the optional gate context recorded with a scan.
type CheckInMeta struct {
	Location *string
	Notes    *string
}

// CheckIn marks a ticket as used. A second scan returns a state conflict so
// door staff see the duplicate immediately.
func (s *Service) CheckIn(ctx context.Context, code string, operatorID uuid.UUID, meta CheckInMeta) (*models.TicketInstance, error) {
	ticket, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading ticket")
	}

	claimed, err := s.repo.ClaimCheckIn(ctx, ticket.ID, operatorID, meta, time.Now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking in ticket")
	}
	if !claimed {
		switch ticket.Status {
		case enums.TicketStatusCheckedIn:
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "ticket already checked in")
		case enums.TicketStatusCancelled:
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "ticket is cancelled")
		default:
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "ticket cannot be checked in")
		}
	}

	updated, err := s.repo.FindByID(ctx, ticket.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading ticket")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "ticket_id", ticket.ID.String()), "ticket checked in")
	}
	return updated, nil
}

// Transfer hands an unused ticket to another buyer. Checked-in tickets can
// never move, even back to the original holder.
func (s *Service) Transfer(ctx context.Context, ticketID, fromID, toID uuid.UUID, attendeeName *string) (*models.TicketInstance, error) {
	if fromID == toID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot transfer a ticket to its current holder")
	}

	ticket, err := s.repo.FindByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading ticket")
	}
	if ticket.HolderID != fromID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "ticket belongs to another holder")
	}

	claimed, err := s.repo.ClaimTransfer(ctx, ticketID, fromID, toID, attendeeName, time.Now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "transferring ticket")
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "ticket is not transferable")
	}

	updated, err := s.repo.FindByID(ctx, ticketID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading ticket")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"ticket_id": ticketID.String(),
			"to_buyer":  toID.String(),
		})
		s.logg.Info(logCtx, "ticket transferred")
	}
	return updated, nil
}

// ListByHolder returns the buyer's wallet.
func (s *Service) ListByHolder(ctx context.Context, holderID uuid.UUID) ([]models.TicketInstance, error) {
	tickets, err := s.repo.ListByHolder(ctx, holderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing tickets")
	}
	return tickets, nil
}

// CancelForOrder voids all active tickets on an order inside the caller's
// transaction.
func (s *Service) CancelForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	_, err := s.repo.WithTx(tx).CancelByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling tickets")
	}
	return nil
}
