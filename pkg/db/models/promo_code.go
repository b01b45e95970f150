package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

// PromoCode is an organizer-issued discount. DiscountValue holds either a
// percentage (0 < v <= 100) or a fixed amount in cents depending on type.
type PromoCode struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	EventID uuid.UUID `gorm:"column:event_id;type:uuid;not null;uniqueIndex:ux_promo_codes_event_code,priority:1"`

	Code          string                  `gorm:"column:code;not null;uniqueIndex:ux_promo_codes_event_code,priority:2"`
	DiscountType  enums.PromoDiscountType `gorm:"column:discount_type;type:promo_discount_type_enum;not null"`
	DiscountValue decimal.Decimal         `gorm:"column:discount_value;type:numeric(12,2);not null"`

	MaxUses          int   `gorm:"column:max_uses;not null;default:0"`
	UsedCount        int   `gorm:"column:used_count;not null;default:0"`
	MaxUsesPerBuyer  int   `gorm:"column:max_uses_per_buyer;not null;default:0"`
	MinSubtotal      int64 `gorm:"column:min_subtotal_cents;not null;default:0"`
	MaxDiscountCents int64 `gorm:"column:max_discount_cents;not null;default:0"`

	// TicketTypeIDs is an optional allow-list. Empty means the code applies
	// to every ticket type of the event.
	TicketTypeIDs json.RawMessage `gorm:"column:ticket_type_ids;type:jsonb"`

	StartsAt *time.Time `gorm:"column:starts_at"`
	EndsAt   *time.Time `gorm:"column:ends_at"`
	Active   bool       `gorm:"column:active;not null;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PromoCode) TableName() string { return "promo_codes" }

// AllowedTicketTypes decodes the allow-list, tolerating an empty column.
func (p PromoCode) AllowedTicketTypes() []uuid.UUID {
	if len(p.TicketTypeIDs) == 0 {
		return nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(p.TicketTypeIDs, &ids); err != nil {
		return nil
	}
	return ids
}
