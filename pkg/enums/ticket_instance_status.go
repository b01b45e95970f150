package enums

import "fmt"

// TicketInstanceStatus maps to the ticket_instance_status enum in Postgres.
type TicketInstanceStatus string

const (
	TicketStatusActive    TicketInstanceStatus = "active"
	TicketStatusCheckedIn TicketInstanceStatus = "checked_in"
	TicketStatusCancelled TicketInstanceStatus = "cancelled"
)

var validTicketInstanceStatuses = []TicketInstanceStatus{
	TicketStatusActive,
	TicketStatusCheckedIn,
	TicketStatusCancelled,
}

// IsValid reports whether the value matches the canonical enum.
func (s TicketInstanceStatus) IsValid() bool {
	for _, candidate := range validTicketInstanceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTicketInstanceStatus converts raw input into TicketInstanceStatus.
func ParseTicketInstanceStatus(value string) (TicketInstanceStatus, error) {
	for _, candidate := range validTicketInstanceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ticket status %q", value)
}
