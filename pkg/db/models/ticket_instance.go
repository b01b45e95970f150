package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

// TicketInstance is one minted seat with a globally unique scannable code.
type TicketInstance struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	TicketTypeID uuid.UUID `gorm:"column:ticket_type_id;type:uuid;not null;index"`
	EventID      uuid.UUID `gorm:"column:event_id;type:uuid;not null;index"`

	Code   string                     `gorm:"column:code;not null;uniqueIndex:ux_ticket_instances_code"`
	Status enums.TicketInstanceStatus `gorm:"column:status;type:ticket_instance_status_enum;not null;default:active"`

	HolderID      uuid.UUID `gorm:"column:holder_id;type:uuid;not null;index"`
	AttendeeName  *string   `gorm:"column:attendee_name"`
	AttendeeEmail *string   `gorm:"column:attendee_email"`
	AttendeeCPF   *string   `gorm:"column:attendee_cpf"`
	HalfPrice     bool      `gorm:"column:half_price;not null;default:false"`

	CheckedInAt       *time.Time `gorm:"column:checked_in_at"`
	CheckedInBy       *uuid.UUID `gorm:"column:checked_in_by;type:uuid"`
	CheckedInLocation *string    `gorm:"column:checked_in_location"`
	CheckedInNotes    *string    `gorm:"column:checked_in_notes"`

	TransferredFrom *uuid.UUID `gorm:"column:transferred_from;type:uuid"`
	TransferredAt   *time.Time `gorm:"column:transferred_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (TicketInstance) TableName() string { return "ticket_instances" }
