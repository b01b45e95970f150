package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/internal/inventory"
	"github.com/ingressolab/ingresso-backend/internal/promos"
	"github.com/ingressolab/ingresso-backend/pkg/config"
	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
	"github.com/ingressolab/ingresso-backend/pkg/outbox"
	"github.com/ingressolab/ingresso-backend/pkg/outbox/payloads"
)

const maxInstallments = 12

// Service executes checkout orchestration and order state transitions.
type Service interface {
	Checkout(ctx context.Context, buyer models.Buyer, input CheckoutInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetForBuyer(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error)
	Items(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	MarkProcessing(ctx context.Context, orderID uuid.UUID) error
	Confirm(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) (*models.Order, []models.TicketInstance, error)
	Cancel(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error)
	CancelForPayment(ctx context.Context, orderID uuid.UUID) (bool, error)
	Expire(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type service struct {
	tx      txRunner
	repo    Repository
	events  eventSource
	promos  promos.Repository
	tickets ticketMinter
	outbox  outboxPublisher
	cfg     config.CheckoutConfig
	logg    *logger.Logger
}

// NewService builds the orders service.
func NewService(
	tx txRunner,
	repo Repository,
	events eventSource,
	promoRepo promos.Repository,
	tickets ticketMinter,
	publisher outboxPublisher,
	cfg config.CheckoutConfig,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("event source required")
	}
	if promoRepo == nil {
		return nil, fmt.Errorf("promo repository required")
	}
	if tickets == nil {
		return nil, fmt.Errorf("ticket minter required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		events:  events,
		promos:  promoRepo,
		tickets: tickets,
		outbox:  publisher,
		cfg:     cfg,
		logg:    logg,
	}, nil
}

func (s *service) Checkout(ctx context.Context, buyer models.Buyer, input CheckoutInput) (*models.Order, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	event, err := s.events.FindByID(ctx, input.EventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading event")
	}
	if event.Status != enums.EventStatusPublished {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "event is not on sale")
	}

	now := time.Now()
	ticketTypes := make(map[uuid.UUID]*models.TicketType, len(input.Items))
	for _, item := range input.Items {
		tt, ok := ticketTypes[item.TicketTypeID]
		if !ok {
			tt, err = s.events.FindTicketType(ctx, item.TicketTypeID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket type not found")
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading ticket type")
			}
			ticketTypes[item.TicketTypeID] = tt
		}
		if tt.EventID != input.EventID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket type does not belong to this event")
		}
		if err := inventory.CheckPurchasable(*tt, item.Qty, now); err != nil {
			return nil, err
		}
		if item.HalfPrice && tt.HalfPriceQty == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("no half-price quota for %q", tt.Name))
		}
	}

	installments := input.Installments
	if installments <= 0 {
		installments = 1
	}

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		requests := make([]inventory.ReservationRequest, len(input.Items))
		for i, item := range input.Items {
			requests[i] = inventory.ReservationRequest{
				TicketTypeID: item.TicketTypeID,
				Qty:          item.Qty,
				HalfPrice:    item.HalfPrice,
			}
		}
		reservations, err := inventory.Reserve(ctx, tx, requests)
		if err != nil {
			return err
		}
		for _, res := range reservations {
			if !res.Reserved {
				name := ticketTypes[res.TicketTypeID].Name
				return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("%s for %q", res.Reason, name))
			}
		}

		var subtotal int64
		orderItems := make([]models.OrderItem, 0, len(input.Items))
		for _, item := range input.Items {
			tt := ticketTypes[item.TicketTypeID]
			unitPrice := tt.PriceCents
			if item.HalfPrice {
				unitPrice = tt.HalfPriceCents()
			}
			subtotal += unitPrice * int64(item.Qty)

			orderItem := models.OrderItem{
				ID:             uuid.New(),
				TicketTypeID:   item.TicketTypeID,
				Quantity:       item.Qty,
				HalfPrice:      item.HalfPrice,
				UnitPriceCents: unitPrice,
			}
			if len(item.Attendees) > 0 {
				attendees := make([]models.Attendee, len(item.Attendees))
				for j, a := range item.Attendees {
					attendees[j] = models.Attendee{Name: a.Name, Email: a.Email, CPF: a.CPF}
				}
				raw, err := json.Marshal(attendees)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding attendees")
				}
				orderItem.Attendees = raw
			}
			orderItems = append(orderItems, orderItem)
		}

		var promoID *uuid.UUID
		var discount int64
		if input.PromoCode != "" {
			promoRepo := s.promos.WithTx(tx)
			promo, err := promoRepo.FindByEventAndCode(ctx, input.EventID, input.PromoCode)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "invalid promo code")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading promo code")
			}
			buyerUses, err := promoRepo.CountBuyerUses(ctx, promo.ID, buyer.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting promo uses")
			}
			requestedTypes := make([]uuid.UUID, 0, len(input.Items))
			for _, item := range input.Items {
				requestedTypes = append(requestedTypes, item.TicketTypeID)
			}
			discount, err = promos.Validate(*promo, subtotal, requestedTypes, buyerUses, now)
			if err != nil {
				return err
			}
			promoID = &promo.ID
		}

		totals := ComputeTotals(subtotal, discount, decimal.NewFromFloat(s.cfg.ServiceFeePercent))

		order := &models.Order{
			ID:              uuid.New(),
			BuyerID:         buyer.ID,
			EventID:         input.EventID,
			Status:          enums.OrderStatusPending,
			SubtotalCents:   totals.SubtotalCents,
			DiscountCents:   totals.DiscountCents,
			ServiceFeeCents: totals.ServiceFeeCents,
			TotalCents:      totals.TotalCents,
			PromoCodeID:     promoID,
			BuyerName:       buyer.Name,
			BuyerEmail:      buyer.Email,
			BuyerCPF:        buyer.CPF,
			PaymentMethod:   input.PaymentMethod,
			Installments:    installments,
		}
		if totals.TotalCents > 0 {
			expiresAt := now.Add(s.cfg.HoldTTL)
			order.ExpiresAt = &expiresAt
		}

		created, err = repo.Create(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
		}
		for i := range orderItems {
			orderItems[i].OrderID = created.ID
		}
		if err := repo.CreateItems(ctx, orderItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order items")
		}

		actor := &outbox.ActorRef{BuyerID: buyer.ID, Role: string(enums.RoleBuyer)}
		if err := s.emitOrderCreated(ctx, tx, created, actor); err != nil {
			return err
		}

		// free orders skip the payment leg entirely
		if created.TotalCents == 0 {
			if _, err := s.confirmInTx(ctx, tx, created, orderItems, actor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	final, err := s.repo.FindByID(ctx, created.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading order")
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithBuyerID(ctx, buyer.ID.String()), final.ID.String())
		s.logg.Info(s.logg.WithField(logCtx, "total_cents", final.TotalCents), "order created")
	}
	return final, nil
}

func (s *service) validateInput(input CheckoutInput) error {
	if input.EventID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order contains no items")
	}
	if s.cfg.MaxItemsPerOrder > 0 && len(input.Items) > s.cfg.MaxItemsPerOrder {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d items per order", s.cfg.MaxItemsPerOrder))
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.Installments > 1 && !input.PaymentMethod.SupportsInstallments() {
		return pkgerrors.New(pkgerrors.CodeValidation, "installments require credit card")
	}
	if input.Installments > maxInstallments {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d installments", maxInstallments))
	}
	for _, item := range input.Items {
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if len(item.Attendees) > 0 && len(item.Attendees) != item.Qty {
			return pkgerrors.New(pkgerrors.CodeValidation, "attendees must match item quantity")
		}
		for _, attendee := range item.Attendees {
			if attendee.Name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "attendee name required")
			}
		}
	}
	return nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

func (s *service) GetForBuyer(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) Items(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	items, err := s.repo.FindItems(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order items")
	}
	return items, nil
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	orders, err := s.repo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return orders, nil
}

// MarkProcessing moves a pending order into processing once the provider
// acknowledges the charge. Losing the claim is fine; a faster webhook may
// already have confirmed the order.
func (s *service) MarkProcessing(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.repo.ClaimProcessing(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking order processing")
	}
	return nil
}

// Confirm settles the order: commit the reservation, mint tickets, redeem the
// promo slot and queue the confirmation event. Calling it twice is safe; the
// second call returns the already-confirmed order.
func (s *service) Confirm(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) (*models.Order, []models.TicketInstance, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	var minted []models.TicketInstance
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items, err := s.repo.WithTx(tx).FindItems(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order items")
		}
		minted, err = s.confirmInTx(ctx, tx, order, items, actor)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	final, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading order")
	}
	return final, minted, nil
}

func (s *service) confirmInTx(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem, actor *outbox.ActorRef) ([]models.TicketInstance, error) {
	repo := s.repo.WithTx(tx)
	now := time.Now()

	claimed, err := repo.ClaimConfirmed(ctx, order.ID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirming order")
	}
	if !claimed {
		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading order")
		}
		if current.Status == enums.OrderStatusConfirmed || current.Status == enums.OrderStatusCompleted {
			return nil, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s and cannot be confirmed", current.Status))
	}

	requests := make([]inventory.ReservationRequest, len(items))
	for i, item := range items {
		requests[i] = inventory.ReservationRequest{
			TicketTypeID: item.TicketTypeID,
			Qty:          item.Quantity,
			HalfPrice:    item.HalfPrice,
		}
	}
	if err := inventory.Commit(ctx, tx, requests); err != nil {
		return nil, err
	}

	minted, err := s.tickets.MintForOrder(ctx, tx, *order, items)
	if err != nil {
		return nil, err
	}

	if order.PromoCodeID != nil {
		ok, err := s.promos.WithTx(tx).IncrementUsage(ctx, *order.PromoCodeID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "redeeming promo code")
		}
		if !ok && s.logg != nil {
			// the payment already settled; keep the order and flag the overrun
			s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "promo code limit exceeded at confirmation")
		}
	}

	ticketIDs := make([]uuid.UUID, len(minted))
	for i, ticket := range minted {
		ticketIDs[i] = ticket.ID
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderConfirmed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderConfirmedEvent{
			OrderID:     order.ID,
			EventID:     order.EventID,
			BuyerID:     order.BuyerID,
			TicketIDs:   ticketIDs,
			ConfirmedAt: now,
		},
		Version: 1,
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return nil, err
	}

	return minted, nil
}

// Cancel releases the hold on a pending or processing order at the buyer's
// request. Confirmed orders never cancel through this path.
func (s *service) Cancel(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error) {
	order, err := s.GetForBuyer(ctx, orderID, buyerID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := time.Now()

		claimed, err := repo.ClaimCancelled(ctx, orderID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling order")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
		}

		if err := s.releaseReservation(ctx, tx, orderID); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{BuyerID: buyerID, Role: string(enums.RoleBuyer)},
			Data: payloads.OrderCancelledEvent{
				OrderID:     orderID,
				EventID:     order.EventID,
				BuyerID:     order.BuyerID,
				CancelledAt: now,
			},
			Version: 1,
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, orderID)
}

// CancelForPayment releases an order whose payment the provider gave up on.
// Returns false when the order already left pending or processing, so webhook
// replays and racing confirmations stay no-ops.
func (s *service) CancelForPayment(ctx context.Context, orderID uuid.UUID) (bool, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return false, err
	}

	var claimed bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := time.Now()

		claimed, err = repo.ClaimCancelled(ctx, orderID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling order")
		}
		if !claimed {
			return nil
		}

		if err := s.releaseReservation(ctx, tx, orderID); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderCancelledEvent{
				OrderID:     orderID,
				EventID:     order.EventID,
				BuyerID:     order.BuyerID,
				CancelledAt: now,
			},
			Version: 1,
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return false, err
	}

	if claimed && s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order cancelled after payment failure")
	}
	return claimed, nil
}

// Expire releases the hold on a pending order whose TTL lapsed. Returns false
// when another worker or a late payment won the claim first.
func (s *service) Expire(ctx context.Context, orderID uuid.UUID) (bool, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return false, err
	}

	var claimed bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := time.Now()

		claimed, err = repo.ClaimExpired(ctx, orderID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expiring order")
		}
		if !claimed {
			return nil
		}

		if err := s.releaseReservation(ctx, tx, orderID); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderExpired,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderExpiredEvent{
				OrderID:   orderID,
				EventID:   order.EventID,
				BuyerID:   order.BuyerID,
				ExpiredAt: now,
			},
			Version: 1,
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func (s *service) releaseReservation(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	items, err := s.repo.WithTx(tx).FindItems(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order items")
	}
	if len(items) == 0 {
		return nil
	}
	requests := make([]inventory.ReservationRequest, len(items))
	for i, item := range items {
		requests[i] = inventory.ReservationRequest{
			TicketTypeID: item.TicketTypeID,
			Qty:          item.Quantity,
			HalfPrice:    item.HalfPrice,
		}
	}
	return inventory.Release(ctx, tx, requests)
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderCreatedEvent{
			OrderID:    order.ID,
			EventID:    order.EventID,
			BuyerID:    order.BuyerID,
			TotalCents: order.TotalCents,
			ExpiresAt:  order.ExpiresAt,
		},
		Version: 1,
	}
	return s.outbox.Emit(ctx, tx, event)
}
