package enums

import "fmt"

// EventStatus controls whether an event is visible to buyers.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusHidden    EventStatus = "hidden"
)

var validEventStatuses = []EventStatus{
	EventStatusDraft,
	EventStatusPublished,
	EventStatusHidden,
}

// IsValid reports whether the value matches the canonical enum.
func (s EventStatus) IsValid() bool {
	for _, candidate := range validEventStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEventStatus converts raw input into EventStatus.
func ParseEventStatus(value string) (EventStatus, error) {
	for _, candidate := range validEventStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event status %q", value)
}
