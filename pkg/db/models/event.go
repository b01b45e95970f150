package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

// Event is an organizer-owned show that ticket types hang off.
type Event struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrganizerID uuid.UUID         `gorm:"column:organizer_id;type:uuid;not null;index"`
	Name        string            `gorm:"column:name;not null"`
	Description string            `gorm:"column:description"`
	Venue       string            `gorm:"column:venue"`
	StartsAt    time.Time         `gorm:"column:starts_at;not null"`
	EndsAt      *time.Time        `gorm:"column:ends_at"`
	Status      enums.EventStatus `gorm:"column:status;type:event_status_enum;not null;default:draft"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Event) TableName() string { return "events" }
