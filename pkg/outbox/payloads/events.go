package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderCreatedEvent announces a new pending order and its reservation.
type OrderCreatedEvent struct {
	OrderID    uuid.UUID  `json:"orderId"`
	EventID    uuid.UUID  `json:"eventId"`
	BuyerID    uuid.UUID  `json:"buyerId"`
	TotalCents int64      `json:"totalCents"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// OrderConfirmedEvent carries the ticket instances minted at confirmation.
type OrderConfirmedEvent struct {
	OrderID     uuid.UUID   `json:"orderId"`
	EventID     uuid.UUID   `json:"eventId"`
	BuyerID     uuid.UUID   `json:"buyerId"`
	TicketIDs   []uuid.UUID `json:"ticketIds"`
	ConfirmedAt time.Time   `json:"confirmedAt"`
}

// OrderCancelledEvent announces a buyer- or operator-driven cancellation.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	EventID     uuid.UUID `json:"eventId"`
	BuyerID     uuid.UUID `json:"buyerId"`
	CancelledAt time.Time `json:"cancelledAt"`
}

// OrderExpiredEvent announces that the hold TTL or sales window lapsed.
type OrderExpiredEvent struct {
	OrderID   uuid.UUID `json:"orderId"`
	EventID   uuid.UUID `json:"eventId"`
	BuyerID   uuid.UUID `json:"buyerId"`
	ExpiredAt time.Time `json:"expiredAt"`
}

// PaymentStatusEvent records a provider-side status change.
type PaymentStatusEvent struct {
	PaymentID         uuid.UUID `json:"paymentId"`
	OrderID           uuid.UUID `json:"orderId"`
	ProviderPaymentID string    `json:"providerPaymentId"`
	PreviousStatus    string    `json:"previousStatus"`
	Status            string    `json:"status"`
	OccurredAt        time.Time `json:"occurredAt"`
}
