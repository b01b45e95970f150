package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
)

// Service is the organizer-facing catalog surface plus the public listing.
type Service interface {
	Create(ctx context.Context, organizerID uuid.UUID, input CreateEventInput) (*models.Event, error)
	Update(ctx context.Context, organizerID, eventID uuid.UUID, input UpdateEventInput) (*models.Event, error)
	Publish(ctx context.Context, organizerID, eventID uuid.UUID) (*models.Event, error)
	Hide(ctx context.Context, organizerID, eventID uuid.UUID) (*models.Event, error)
	Get(ctx context.Context, eventID uuid.UUID) (*models.Event, error)
	GetPublished(ctx context.Context, eventID uuid.UUID) (*models.Event, error)
	ListMine(ctx context.Context, organizerID uuid.UUID) ([]models.Event, error)
	ListPublished(ctx context.Context) ([]models.Event, error)
	AddTicketType(ctx context.Context, organizerID, eventID uuid.UUID, input CreateTicketTypeInput) (*models.TicketType, error)
	ResizeTicketType(ctx context.Context, organizerID, ticketTypeID uuid.UUID, input ResizeTicketTypeInput) (*models.TicketType, error)
	SetTicketTypeHidden(ctx context.Context, organizerID, ticketTypeID uuid.UUID, hidden bool) (*models.TicketType, error)
	ListTicketTypes(ctx context.Context, eventID uuid.UUID) ([]models.TicketType, error)
	ListSellableTicketTypes(ctx context.Context, eventID uuid.UUID) ([]models.TicketType, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("events repository is required")
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, organizerID uuid.UUID, input CreateEventInput) (*models.Event, error) {
	if organizerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id is required")
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event name is required")
	}
	if input.StartsAt.Before(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event start must be in the future")
	}
	if input.EndsAt != nil && !input.EndsAt.After(input.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event end must be after its start")
	}

	event := &models.Event{
		ID:          uuid.New(),
		OrganizerID: organizerID,
		Name:        input.Name,
		Description: input.Description,
		Venue:       input.Venue,
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
		Status:      enums.EventStatusDraft,
	}
	created, err := s.repo.CreateEvent(ctx, event)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating event")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithEventID(ctx, created.ID.String()), "event created")
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, organizerID, eventID uuid.UUID, input UpdateEventInput) (*models.Event, error) {
	event, err := s.ownedEvent(ctx, organizerID, eventID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "event name cannot be empty")
		}
		event.Name = *input.Name
	}
	if input.Description != nil {
		event.Description = *input.Description
	}
	if input.Venue != nil {
		event.Venue = *input.Venue
	}
	if input.StartsAt != nil {
		event.StartsAt = *input.StartsAt
	}
	if input.EndsAt != nil {
		event.EndsAt = input.EndsAt
	}
	if event.EndsAt != nil && !event.EndsAt.After(event.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event end must be after its start")
	}

	if err := s.repo.UpdateEvent(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating event")
	}
	return event, nil
}

func (s *service) Publish(ctx context.Context, organizerID, eventID uuid.UUID) (*models.Event, error) {
	return s.transition(ctx, organizerID, eventID, enums.EventStatusPublished)
}

func (s *service) Hide(ctx context.Context, organizerID, eventID uuid.UUID) (*models.Event, error) {
	return s.transition(ctx, organizerID, eventID, enums.EventStatusHidden)
}

func (s *service) transition(ctx context.Context, organizerID, eventID uuid.UUID, next enums.EventStatus) (*models.Event, error) {
	event, err := s.ownedEvent(ctx, organizerID, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == next {
		return event, nil
	}
	if next == enums.EventStatusPublished {
		types, err := s.repo.ListTicketTypes(ctx, event.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading ticket types")
		}
		if len(types) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot publish an event without ticket types")
		}
	}
	event.Status = next
	if err := s.repo.UpdateEvent(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating event status")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id": event.ID.String(),
			"status":   event.Status,
		})
		s.logg.Info(logCtx, "event status changed")
	}
	return event, nil
}

func (s *service) Get(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading event")
	}
	return event, nil
}

// GetPublished hides drafts and hidden events from public callers.
func (s *service) GetPublished(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != enums.EventStatusPublished {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	return event, nil
}

func (s *service) ListMine(ctx context.Context, organizerID uuid.UUID) ([]models.Event, error) {
	events, err := s.repo.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing organizer events")
	}
	return events, nil
}

func (s *service) ListPublished(ctx context.Context) ([]models.Event, error) {
	events, err := s.repo.ListPublished(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing published events")
	}
	return events, nil
}

func (s *service) AddTicketType(ctx context.Context, organizerID, eventID uuid.UUID, input CreateTicketTypeInput) (*models.TicketType, error) {
	event, err := s.ownedEvent(ctx, organizerID, eventID)
	if err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket type name is required")
	}
	if input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.TotalQty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total quantity must be positive")
	}
	if input.HalfPriceQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "half-price quantity cannot be negative")
	}
	if input.HalfPriceQty > input.TotalQty {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "half-price quantity cannot exceed total quantity")
	}
	minPer := input.MinPerOrder
	if minPer <= 0 {
		minPer = 1
	}
	maxPer := input.MaxPerOrder
	if maxPer <= 0 {
		maxPer = 10
	}
	if minPer > maxPer {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min per order cannot exceed max per order")
	}
	if input.SalesStartAt != nil && input.SalesEndAt != nil && !input.SalesEndAt.After(*input.SalesStartAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sales window end must be after its start")
	}

	tt := &models.TicketType{
		ID:           uuid.New(),
		EventID:      event.ID,
		Name:         input.Name,
		PriceCents:   input.PriceCents,
		TotalQty:     input.TotalQty,
		HalfPriceQty: input.HalfPriceQty,
		MinPerOrder:  minPer,
		MaxPerOrder:  maxPer,
		Hidden:       input.Hidden,
		SalesStartAt: input.SalesStartAt,
		SalesEndAt:   input.SalesEndAt,
	}
	created, err := s.repo.CreateTicketType(ctx, tt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating ticket type")
	}
	return created, nil
}

// ResizeTicketType grows or shrinks the pools. Shrinking below what is
// already sold or reserved is refused by the guarded update.
func (s *service) ResizeTicketType(ctx context.Context, organizerID, ticketTypeID uuid.UUID, input ResizeTicketTypeInput) (*models.TicketType, error) {
	tt, err := s.repo.FindTicketType(ctx, ticketTypeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket type not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading ticket type")
	}
	if _, err := s.ownedEvent(ctx, organizerID, tt.EventID); err != nil {
		return nil, err
	}
	if input.TotalQty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total quantity must be positive")
	}
	if input.HalfPriceQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "half-price quantity cannot be negative")
	}
	if input.HalfPriceQty > input.TotalQty {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "half-price quantity cannot exceed total quantity")
	}

	resized, err := s.repo.ResizeTicketType(ctx, ticketTypeID, input.TotalQty, input.HalfPriceQty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resizing ticket type")
	}
	if !resized {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "quantity cannot drop below sold and reserved seats")
	}
	return s.repo.FindTicketType(ctx, ticketTypeID)
}

// SetTicketTypeHidden toggles whether a tier is offered for sale. Hidden
// tiers stay visible to the organizer and keep their counters.
func (s *service) SetTicketTypeHidden(ctx context.Context, organizerID, ticketTypeID uuid.UUID, hidden bool) (*models.TicketType, error) {
	tt, err := s.repo.FindTicketType(ctx, ticketTypeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket type not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading ticket type")
	}
	if _, err := s.ownedEvent(ctx, organizerID, tt.EventID); err != nil {
		return nil, err
	}
	if err := s.repo.SetTicketTypeHidden(ctx, ticketTypeID, hidden); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating ticket type visibility")
	}
	return s.repo.FindTicketType(ctx, ticketTypeID)
}

func (s *service) ListTicketTypes(ctx context.Context, eventID uuid.UUID) ([]models.TicketType, error) {
	types, err := s.repo.ListTicketTypes(ctx, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing ticket types")
	}
	return types, nil
}

// ListSellableTicketTypes is the public view; hidden tiers are excluded.
func (s *service) ListSellableTicketTypes(ctx context.Context, eventID uuid.UUID) ([]models.TicketType, error) {
	types, err := s.repo.ListSellableTicketTypes(ctx, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing ticket types")
	}
	return types, nil
}

// ownedEvent loads the event and enforces organizer ownership. Foreign events
// read as not found so ownership cannot be enumerated.
func (s *service) ownedEvent(ctx context.Context, organizerID, eventID uuid.UUID) (*models.Event, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != organizerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	return event, nil
}
