package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/db"
	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
	"github.com/ingressolab/ingresso-backend/pkg/gateway"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
	"github.com/ingressolab/ingresso-backend/pkg/outbox"
	"github.com/ingressolab/ingresso-backend/pkg/outbox/payloads"
)

var hundred = decimal.NewFromInt(100)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderConfirmer interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkProcessing(ctx context.Context, orderID uuid.UUID) error
	Confirm(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) (*models.Order, []models.TicketInstance, error)
	CancelForPayment(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StatusChange reports what ApplyStatus did with a provider update.
type StatusChange struct {
	Payment        *models.Payment
	Previous       enums.PaymentStatus
	Changed        bool
	OrderConfirmed bool
	OrderCancelled bool
}

// Service drives the payment leg of an order through the provider.
type Service interface {
	CreateForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	GetActiveForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error)
	ApplyStatus(ctx context.Context, payment *models.Payment, next enums.PaymentStatus) (*StatusChange, error)
	RecordProviderSnapshot(ctx context.Context, paymentID uuid.UUID, providerStatus string, snapshot json.RawMessage) error
	Sync(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	CancelActiveForOrder(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	tx     txRunner
	repo   Repository
	gw     gateway.Gateway
	orders orderConfirmer
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService builds the payments service.
func NewService(
	tx txRunner,
	repo Repository,
	gw gateway.Gateway,
	orders orderConfirmer,
	publisher outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{tx: tx, repo: repo, gw: gw, orders: orders, outbox: publisher, logg: logg}, nil
}

// CreateForOrder charges the order at the provider and persists the attempt.
// It runs after the checkout transaction committed so a provider outage never
// rolls back the hold.
func (s *service) CreateForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsFree() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "free orders have no payment")
	}
	if !order.Status.HoldsInventory() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s and cannot be charged", order.Status))
	}
	if existing, err := s.repo.FindActiveByOrder(ctx, orderID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking existing payment")
	}

	customer, err := s.gw.CreateCustomer(ctx, gateway.CustomerRequest{
		Name:  order.BuyerName,
		Email: order.BuyerEmail,
		CPF:   order.BuyerCPF,
	})
	if err != nil {
		return nil, err
	}

	dueDate := time.Now().Add(24 * time.Hour)
	if order.ExpiresAt != nil && order.ExpiresAt.After(dueDate) {
		dueDate = *order.ExpiresAt
	}

	value := gateway.CentsToValue(order.TotalCents)
	if diff := value.Mul(hundred).IntPart() - order.TotalCents; diff > 1 || diff < -1 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "charge amount does not match order total")
	}

	req := gateway.PaymentRequest{
		CustomerID:        customer.ID,
		BillingType:       gateway.BillingTypeFor(order.PaymentMethod),
		Value:             value,
		DueDate:           gateway.FormatDueDate(dueDate),
		Description:       fmt.Sprintf("Pedido %s", order.ID),
		ExternalReference: order.ID.String(),
	}
	if order.Installments > 1 {
		req.InstallmentCount = order.Installments
	}

	provider, err := s.gw.CreatePayment(ctx, req)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:                uuid.New(),
		OrderID:           order.ID,
		ProviderPaymentID: provider.ID,
		Status:            enums.PaymentStatusPending,
		Method:            order.PaymentMethod,
		AmountCents:       order.TotalCents,
		Installments:      order.Installments,
		DueDate:           &dueDate,
	}
	if provider.InvoiceURL != "" {
		payment.InvoiceURL = &provider.InvoiceURL
	}
	if provider.BankSlipURL != "" {
		payment.BoletoURL = &provider.BankSlipURL
	}

	if order.PaymentMethod == enums.PaymentMethodPix {
		qr, err := s.gw.GetPixQRCode(ctx, provider.ID)
		if err != nil {
			// the charge exists; the buyer can still fetch the QR later
			if s.logg != nil {
				s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "pix qr code fetch failed")
			}
		} else if qr.Payload != "" {
			payment.PixPayload = &qr.Payload
		}
	}

	created, err := s.repo.Create(ctx, payment)
	if err != nil {
		if db.IsUniqueViolation(err, "ux_payments_order_active") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has an active payment")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting payment")
	}

	if err := s.orders.MarkProcessing(ctx, order.ID); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "marking order processing failed")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":   order.ID.String(),
			"payment_id": created.ID.String(),
			"method":     order.PaymentMethod,
		})
		s.logg.Info(logCtx, "payment created")
	}
	return created, nil
}

func (s *service) GetActiveForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindActiveByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active payment for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment")
	}
	return payment, nil
}

func (s *service) FindByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	payment, err := s.repo.FindByProviderID(ctx, providerPaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment")
	}
	return payment, nil
}

// ApplyStatus records a provider status transition. The claim is optimistic
// on the previous status, so replays and out-of-order webhooks become no-ops.
// When the payment settles, the order is confirmed afterwards; when the
// provider gives up on the charge, the order is cancelled and its hold
// released. Both follow-ups are idempotent so a crash between the two steps
// is safe to retry.
func (s *service) ApplyStatus(ctx context.Context, payment *models.Payment, next enums.PaymentStatus) (*StatusChange, error) {
	change := &StatusChange{Payment: payment, Previous: payment.Status}
	if payment.Status == next {
		return change, nil
	}
	if payment.Status.Settled() && !next.Settled() {
		if next == enums.PaymentStatusRefunded {
			// refunds on a settled payment are recorded but never touch the
			// order or its tickets
			return s.recordRefund(ctx, payment, change)
		}
		// never rewind a settled payment
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "payment_id", payment.ID.String()), "ignoring status downgrade")
		}
		return change, nil
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var paidAt *time.Time
		if next.Settled() {
			now := time.Now()
			paidAt = &now
		}
		claimed, err := repo.ClaimStatus(ctx, payment.ID, payment.Status, next, paidAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating payment status")
		}
		if !claimed {
			// another worker applied a transition first
			return nil
		}
		change.Changed = true

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentStatusChanged,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentStatusEvent{
				PaymentID:         payment.ID,
				OrderID:           payment.OrderID,
				ProviderPaymentID: payment.ProviderPaymentID,
				PreviousStatus:    string(payment.Status),
				Status:            string(next),
				OccurredAt:        time.Now(),
			},
			Version: 1,
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	if change.Changed && next.Settled() {
		if _, _, err := s.orders.Confirm(ctx, payment.OrderID, nil); err != nil {
			return nil, err
		}
		change.OrderConfirmed = true
	}
	if change.Changed && next.TerminalFailure() {
		cancelled, err := s.orders.CancelForPayment(ctx, payment.OrderID)
		if err != nil {
			return nil, err
		}
		change.OrderCancelled = cancelled
	}

	updated, err := s.repo.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading payment")
	}
	change.Payment = updated
	return change, nil
}

// recordRefund flips a settled payment to refunded for the audit trail. The
// buyer keeps the order and tickets; revocation after a refund is a manual
// operational decision.
func (s *service) recordRefund(ctx context.Context, payment *models.Payment, change *StatusChange) (*StatusChange, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		claimed, err := repo.ClaimRefunded(ctx, payment.ID, payment.Status, time.Now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording refund")
		}
		if !claimed {
			return nil
		}
		change.Changed = true

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentStatusChanged,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentStatusEvent{
				PaymentID:         payment.ID,
				OrderID:           payment.OrderID,
				ProviderPaymentID: payment.ProviderPaymentID,
				PreviousStatus:    string(payment.Status),
				Status:            string(enums.PaymentStatusRefunded),
				OccurredAt:        time.Now(),
			},
			Version: 1,
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading payment")
	}
	change.Payment = updated

	if change.Changed && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "payment_id", payment.ID.String()), "settled payment refunded by provider")
	}
	return change, nil
}

// RecordProviderSnapshot keeps the provider's latest raw view of the payment.
func (s *service) RecordProviderSnapshot(ctx context.Context, paymentID uuid.UUID, providerStatus string, snapshot json.RawMessage) error {
	if err := s.repo.RecordProviderSnapshot(ctx, paymentID, providerStatus, snapshot); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording provider snapshot")
	}
	return nil
}

// Sync pulls the current provider status for the order's active payment.
// It backstops lost webhooks.
func (s *service) Sync(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	payment, err := s.GetActiveForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	provider, err := s.gw.GetPayment(ctx, payment.ProviderPaymentID)
	if err != nil {
		return nil, err
	}
	if snapshot, merr := json.Marshal(provider); merr == nil {
		if err := s.RecordProviderSnapshot(ctx, payment.ID, provider.Status, snapshot); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "payment_id", payment.ID.String()), "provider snapshot not recorded")
		}
	}
	next, ok := gateway.StatusFor(provider.Status)
	if !ok {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "provider_status", provider.Status), "unknown provider payment status")
		}
		return payment, nil
	}

	change, err := s.ApplyStatus(ctx, payment, next)
	if err != nil {
		return nil, err
	}
	return change.Payment, nil
}

// CancelActiveForOrder voids the provider charge when an order is cancelled
// or expires.
func (s *service) CancelActiveForOrder(ctx context.Context, orderID uuid.UUID) error {
	payment, err := s.repo.FindActiveByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment")
	}
	if payment.Status.Settled() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "settled payments cannot be cancelled")
	}

	if err := s.gw.CancelPayment(ctx, payment.ProviderPaymentID); err != nil {
		return err
	}

	claimed, err := s.repo.ClaimStatus(ctx, payment.ID, payment.Status, enums.PaymentStatusCancelled, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling payment")
	}
	if !claimed && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "payment_id", payment.ID.String()), "payment status moved during cancel")
	}
	return nil
}
