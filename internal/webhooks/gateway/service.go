package gatewaywebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/ingressolab/ingresso-backend/internal/payments"
	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
	"github.com/ingressolab/ingresso-backend/pkg/gateway"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
)

// WebhookEvent is the provider's webhook envelope. Raw carries the request
// body as received so the payment can keep an untouched provider snapshot.
type WebhookEvent struct {
	ID      string                 `json:"id"`
	Event   enums.GatewayEventType `json:"event"`
	Payment WebhookPayment         `json:"payment"`
	Raw     json.RawMessage        `json:"-"`
}

// WebhookPayment is the charge snapshot the provider attaches to each event.
type WebhookPayment struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"externalReference"`
}

type paymentReconciler interface {
	FindByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error)
	GetActiveForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	ApplyStatus(ctx context.Context, payment *models.Payment, next enums.PaymentStatus) (*payments.StatusChange, error)
	RecordProviderSnapshot(ctx context.Context, paymentID uuid.UUID, providerStatus string, snapshot json.RawMessage) error
}

type ServiceParams struct {
	Payments paymentReconciler
	Logger   *logger.Logger
}

// Service reconciles provider webhook events into local payment state.
type Service struct {
	payments paymentReconciler
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	return &Service{
		payments: params.Payments,
		logg:     params.Logger,
	}, nil
}

// HandleEvent applies one provider event. Unknown event types and unmatched
// payments are acknowledged so the provider stops retrying; the payment sync
// backstop catches anything dropped here.
func (s *Service) HandleEvent(ctx context.Context, event *WebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event payload required")
	}
	if event.Payment.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event has no payment id")
	}

	next, ok := event.Event.PaymentStatus()
	if !ok {
		// PAYMENT_CREATED/PAYMENT_UPDATED carry the status on the payment itself
		next, ok = gateway.StatusFor(event.Payment.Status)
	}
	if !ok {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"event_type":      event.Event,
				"provider_status": event.Payment.Status,
			})
			s.logg.Warn(logCtx, "ignoring webhook with unknown status")
		}
		return nil
	}

	payment, err := s.resolvePayment(ctx, event)
	if err != nil {
		return err
	}
	if payment == nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "provider_payment_id", event.Payment.ID), "webhook did not match any payment")
		}
		return nil
	}

	if err := s.payments.RecordProviderSnapshot(ctx, payment.ID, event.Payment.Status, event.Raw); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "payment_id", payment.ID.String()), "provider snapshot not recorded")
	}

	change, err := s.payments.ApplyStatus(ctx, payment, next)
	if err != nil {
		return err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"payment_id":      payment.ID.String(),
			"order_id":        payment.OrderID.String(),
			"previous_status": change.Previous,
			"status":          next,
			"changed":         change.Changed,
		})
		s.logg.Info(logCtx, "webhook event reconciled")
	}
	return nil
}

func (s *Service) resolvePayment(ctx context.Context, event *WebhookEvent) (*models.Payment, error) {
	payment, err := s.payments.FindByProviderID(ctx, event.Payment.ID)
	if err == nil {
		return payment, nil
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		return nil, err
	}

	// fall back to the order id we sent as externalReference
	if event.Payment.ExternalReference == "" {
		return nil, nil
	}
	orderID, parseErr := uuid.Parse(event.Payment.ExternalReference)
	if parseErr != nil {
		return nil, nil
	}
	payment, err = s.payments.GetActiveForOrder(ctx, orderID)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return payment, nil
}
