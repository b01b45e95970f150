package orders

import (
	"github.com/google/uuid"

	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

// AttendeeInput names the person a seat is for. Email and CPF are optional
// and end up on the minted ticket for door-staff matching.
type AttendeeInput struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	CPF   string `json:"cpf,omitempty"`
}

// CheckoutItemInput is one requested line of a checkout.
type CheckoutItemInput struct {
	TicketTypeID uuid.UUID       `json:"ticketTypeId" validate:"required"`
	Qty          int             `json:"qty" validate:"required,gt=0"`
	HalfPrice    bool            `json:"halfPrice"`
	Attendees    []AttendeeInput `json:"attendees,omitempty" validate:"omitempty,dive"`
}

// CheckoutInput captures everything the buyer submits at checkout.
type CheckoutInput struct {
	EventID       uuid.UUID           `json:"eventId" validate:"required"`
	Items         []CheckoutItemInput `json:"items" validate:"required,min=1,dive"`
	PromoCode     string              `json:"promoCode,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod" validate:"required"`
	Installments  int                 `json:"installments,omitempty"`
}

// Totals is the pricing breakdown persisted on the order.
type Totals struct {
	SubtotalCents   int64
	DiscountCents   int64
	ServiceFeeCents int64
	TotalCents      int64
}
