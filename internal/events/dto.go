package events

import "time"

// CreateEventInput is the organizer-facing payload to create an event.
type CreateEventInput struct {
	Name        string     `json:"name" validate:"required,min=3,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	Venue       string     `json:"venue" validate:"max=300"`
	StartsAt    time.Time  `json:"starts_at" validate:"required"`
	EndsAt      *time.Time `json:"ends_at"`
}

// UpdateEventInput carries partial event edits. Nil fields are left untouched.
type UpdateEventInput struct {
	Name        *string    `json:"name" validate:"omitempty,min=3,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Venue       *string    `json:"venue" validate:"omitempty,max=300"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

// CreateTicketTypeInput defines a new sellable tier.
type CreateTicketTypeInput struct {
	Name         string     `json:"name" validate:"required,min=1,max=120"`
	PriceCents   int64      `json:"price_cents" validate:"gte=0"`
	TotalQty     int        `json:"total_qty" validate:"gt=0"`
	HalfPriceQty int        `json:"half_price_qty" validate:"gte=0"`
	MinPerOrder  int        `json:"min_per_order" validate:"gte=0"`
	MaxPerOrder  int        `json:"max_per_order" validate:"gte=0"`
	Hidden       bool       `json:"hidden"`
	SalesStartAt *time.Time `json:"sales_start_at"`
	SalesEndAt   *time.Time `json:"sales_end_at"`
}

// ResizeTicketTypeInput adjusts the inventory pools of an existing tier.
type ResizeTicketTypeInput struct {
	TotalQty     int `json:"total_qty" validate:"gt=0"`
	HalfPriceQty int `json:"half_price_qty" validate:"gte=0"`
}
