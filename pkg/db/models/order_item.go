package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Attendee identifies who a seat is for. Email and CPF are optional; door
// staff match on whatever the buyer supplied.
type Attendee struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	CPF   string `json:"cpf,omitempty"`
}

// OrderItem is one ticket tier within an order. Attendees holds the people
// supplied at checkout, one per seat; tickets without named attendees stay
// on the buyer.
type OrderItem struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	TicketTypeID uuid.UUID `gorm:"column:ticket_type_id;type:uuid;not null;index"`

	Quantity       int   `gorm:"column:quantity;not null"`
	HalfPrice      bool  `gorm:"column:half_price;not null;default:false"`
	UnitPriceCents int64 `gorm:"column:unit_price_cents;not null"`

	Attendees json.RawMessage `gorm:"column:attendees;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }

// AttendeeList decodes the attendee column, tolerating an empty column and
// rows written back when it held bare name strings.
func (i OrderItem) AttendeeList() []Attendee {
	if len(i.Attendees) == 0 {
		return nil
	}
	var attendees []Attendee
	if err := json.Unmarshal(i.Attendees, &attendees); err == nil {
		return attendees
	}
	var names []string
	if err := json.Unmarshal(i.Attendees, &names); err != nil {
		return nil
	}
	attendees = make([]Attendee, len(names))
	for idx, name := range names {
		attendees[idx] = Attendee{Name: name}
	}
	return attendees
}
