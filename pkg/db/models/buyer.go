package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

// Buyer is an account that can purchase tickets. Organizers share the same
// table and are distinguished by role.
type Buyer struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name         string          `gorm:"column:name;not null"`
	Email        string          `gorm:"column:email;not null;uniqueIndex:ux_buyers_email"`
	CPF          string          `gorm:"column:cpf;not null"`
	PasswordHash string          `gorm:"column:password_hash;not null"`
	Role         enums.ActorRole `gorm:"column:role;type:actor_role_enum;not null;default:buyer"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Buyer) TableName() string { return "buyers" }
