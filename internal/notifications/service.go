package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
)

type emailRecorder interface {
	MarkEmailSent(ctx context.Context, orderID uuid.UUID, at time.Time) error
	MarkEmailFailed(ctx context.Context, orderID uuid.UUID, reason string) error
}

// Service renders and dispatches order confirmation emails. Delivery is
// best effort; the order itself is already confirmed when this runs.
type Service struct {
	sender Sender
	orders emailRecorder
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(sender Sender, orders emailRecorder, logg *logger.Logger) (*Service, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if orders == nil {
		return nil, fmt.Errorf("orders recorder is required")
	}
	return &Service{
		sender: sender,
		orders: orders,
		logg:   logg,
		now:    time.Now,
	}, nil
}

// SendOrderConfirmation renders the confirmation and records the outcome on
// the order. A delivery failure is recorded, not returned as fatal.
func (s *Service) SendOrderConfirmation(ctx context.Context, order *models.Order, tickets []models.TicketInstance) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}
	if order.BuyerEmail == "" {
		return s.orders.MarkEmailFailed(ctx, order.ID, "order has no buyer email")
	}

	msg := Message{
		To:      order.BuyerEmail,
		Subject: fmt.Sprintf("Seus ingressos do pedido %s", shortOrderRef(order.ID)),
		Body:    renderConfirmationBody(order, tickets),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "confirmation email delivery failed", err)
		}
		return s.orders.MarkEmailFailed(ctx, order.ID, err.Error())
	}
	return s.orders.MarkEmailSent(ctx, order.ID, s.now())
}

// DispatchOrderConfirmation fires the confirmation without blocking the
// caller. Used on the checkout and webhook hot paths.
func (s *Service) DispatchOrderConfirmation(ctx context.Context, order *models.Order, tickets []models.TicketInstance) {
	logCtx := ctx
	if s.logg != nil && order != nil {
		logCtx = s.logg.WithOrderID(ctx, order.ID.String())
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(logCtx), 30*time.Second)
		defer cancel()
		if err := s.SendOrderConfirmation(sendCtx, order, tickets); err != nil && s.logg != nil {
			s.logg.Error(sendCtx, "recording confirmation email outcome failed", err)
		}
	}()
}

func renderConfirmationBody(order *models.Order, tickets []models.TicketInstance) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ola %s,\n\n", order.BuyerName)
	fmt.Fprintf(&b, "Seu pedido %s foi confirmado.\n", shortOrderRef(order.ID))
	fmt.Fprintf(&b, "Total: R$ %s\n\n", decimal.New(order.TotalCents, -2).StringFixed(2))
	if len(tickets) > 0 {
		b.WriteString("Seus ingressos:\n")
		for _, ticket := range tickets {
			name := order.BuyerName
			if ticket.AttendeeName != nil && *ticket.AttendeeName != "" {
				name = *ticket.AttendeeName
			}
			fmt.Fprintf(&b, "  %s - %s\n", ticket.Code, name)
		}
		b.WriteString("\nApresente o codigo na entrada do evento.\n")
	}
	return b.String()
}

func shortOrderRef(id uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}
