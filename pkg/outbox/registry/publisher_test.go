package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ingressolab/ingresso-backend/pkg/config"
	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	"github.com/ingressolab/ingresso-backend/pkg/outbox"
	"github.com/ingressolab/ingresso-backend/pkg/outbox/payloads"
)

func testRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "ing-order-events"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func encodeEnvelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	inner, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       inner,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}

func TestResolveOrderConfirmed(t *testing.T) {
	reg := testRegistry(t)
	orderID := uuid.New()
	ticketID := uuid.New()

	row := models.OutboxEvent{
		EventType:     enums.EventOrderConfirmed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: encodeEnvelope(t, payloads.OrderConfirmedEvent{
			OrderID:   orderID,
			TicketIDs: []uuid.UUID{ticketID},
		}),
	}

	resolved, err := reg.Resolve(row)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Descriptor.Topic != "ing-order-events" {
		t.Fatalf("unexpected topic %s", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.OrderConfirmedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if len(payload.TicketIDs) != 1 || payload.TicketIDs[0] != ticketID {
		t.Fatalf("ticket ids lost in decode: %v", payload.TicketIDs)
	}
}

func TestResolveRejectsUnknownEventType(t *testing.T) {
	reg := testRegistry(t)
	row := models.OutboxEvent{
		EventType:     enums.OutboxEventType("order_teleported"),
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       encodeEnvelope(t, payloads.OrderCreatedEvent{}),
	}

	_, err := reg.Resolve(row)
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestResolveRejectsAggregateMismatch(t *testing.T) {
	reg := testRegistry(t)
	row := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.New(),
		Payload:       encodeEnvelope(t, payloads.OrderCreatedEvent{}),
	}

	var nonRetry NonRetryableError
	if _, err := reg.Resolve(row); !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestResolveRejectsEmptyPayload(t *testing.T) {
	reg := testRegistry(t)
	envelope, _ := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), Data: json.RawMessage("null")})
	row := models.OutboxEvent{
		EventType:     enums.EventOrderExpired,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       envelope,
	}

	var nonRetry NonRetryableError
	if _, err := reg.Resolve(row); !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatal("expected error for missing topic")
	}
}
