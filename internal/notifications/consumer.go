package notifications

import (
	"context"
	"encoding/json"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
	"github.com/ingressolab/ingresso-backend/pkg/outbox"
	"github.com/ingressolab/ingresso-backend/pkg/outbox/payloads"
)

type orderLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type ticketLister interface {
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.TicketInstance, error)
}

// OrderConfirmedConsumer watches the order event stream and mails the buyer
// when an order is confirmed. Everything except the order lookup is acked
// permanently; a flaky database nacks so Pub/Sub redelivers.
type OrderConfirmedConsumer struct {
	service      *Service
	orders       orderLoader
	tickets      ticketLister
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

func NewOrderConfirmedConsumer(service *Service, orders orderLoader, tickets ticketLister, subscription *pubsub.Subscriber, logg *logger.Logger) (*OrderConfirmedConsumer, error) {
	if service == nil {
		return nil, errors.New("notifications service is required")
	}
	if orders == nil {
		return nil, errors.New("order loader is required")
	}
	if tickets == nil {
		return nil, errors.New("ticket lister is required")
	}
	if subscription == nil {
		return nil, errors.New("orders subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &OrderConfirmedConsumer{
		service:      service,
		orders:       orders,
		tickets:      tickets,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run processes confirmation events until the context is canceled.
func (c *OrderConfirmedConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process returns true when the message should be acked.
func (c *OrderConfirmedConsumer) process(ctx context.Context, msg *pubsub.Message) bool {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.Attributes["event_type"],
	})

	if msg.Attributes["event_type"] != string(enums.EventOrderConfirmed) {
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "confirmation event envelope unreadable", err)
		return true
	}
	var event payloads.OrderConfirmedEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		c.logg.Error(logCtx, "confirmation event payload unreadable", err)
		return true
	}
	if event.OrderID == uuid.Nil {
		c.logg.Error(logCtx, "confirmation event has no order id", errors.New("empty order id"))
		return true
	}

	logCtx = c.logg.WithOrderID(logCtx, event.OrderID.String())

	order, err := c.orders.FindByID(logCtx, event.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logg.Warn(logCtx, "confirmed order no longer exists")
			return true
		}
		c.logg.Error(logCtx, "loading confirmed order failed", err)
		return false
	}
	if order.EmailSent {
		return true
	}

	tickets, err := c.tickets.ListByOrder(logCtx, order.ID)
	if err != nil {
		c.logg.Error(logCtx, "loading order tickets failed", err)
		return false
	}

	if err := c.service.SendOrderConfirmation(logCtx, order, tickets); err != nil {
		c.logg.Error(logCtx, "recording confirmation email outcome failed", err)
		return false
	}
	return true
}
