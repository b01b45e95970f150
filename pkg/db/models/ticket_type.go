package models

import (
	"time"

	"github.com/google/uuid"
)

// TicketType is a sellable tier of an event and the row the inventory
// ledger mutates. Counter columns are only written through guarded updates;
// available quantity is always derived, never stored.
type TicketType struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	EventID uuid.UUID `gorm:"column:event_id;type:uuid;not null;index"`
	Name    string    `gorm:"column:name;not null"`

	PriceCents int64 `gorm:"column:price_cents;not null"`

	TotalQty    int `gorm:"column:total_qty;not null"`
	SoldQty     int `gorm:"column:sold_qty;not null;default:0"`
	ReservedQty int `gorm:"column:reserved_qty;not null;default:0"`

	HalfPriceQty      int `gorm:"column:half_price_qty;not null;default:0"`
	HalfPriceSold     int `gorm:"column:half_price_sold;not null;default:0"`
	HalfPriceReserved int `gorm:"column:half_price_reserved;not null;default:0"`

	MinPerOrder int `gorm:"column:min_per_order;not null;default:1"`
	MaxPerOrder int `gorm:"column:max_per_order;not null;default:10"`

	Hidden bool `gorm:"column:hidden;not null;default:false"`

	SalesStartAt *time.Time `gorm:"column:sales_start_at"`
	SalesEndAt   *time.Time `gorm:"column:sales_end_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (TicketType) TableName() string { return "ticket_types" }

// AvailableFull returns the remaining capacity of the shared seat pool.
func (t TicketType) AvailableFull() int {
	return t.TotalQty - t.SoldQty - t.ReservedQty
}

// AvailableHalf returns the remaining half-price capacity. The half-price
// quota is a sub-pool of the same seats, so availability is bounded by the
// shared pool as well.
func (t TicketType) AvailableHalf() int {
	remaining := t.HalfPriceQty - t.HalfPriceSold - t.HalfPriceReserved
	if shared := t.AvailableFull(); shared < remaining {
		return shared
	}
	return remaining
}

// HalfPriceCents is the discounted unit price, rounded down.
func (t TicketType) HalfPriceCents() int64 {
	return t.PriceCents / 2
}

// IsFree reports whether the tier costs nothing.
func (t TicketType) IsFree() bool {
	return t.PriceCents == 0
}
