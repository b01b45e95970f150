package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

// Order is the buyer-facing purchase aggregate. A pending order is also the
// inventory reservation handle; quantities are derived from its items.
type Order struct {
	ID      uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	EventID uuid.UUID         `gorm:"column:event_id;type:uuid;not null;index"`
	Status  enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;default:pending"`

	SubtotalCents   int64 `gorm:"column:subtotal_cents;not null"`
	DiscountCents   int64 `gorm:"column:discount_cents;not null;default:0"`
	ServiceFeeCents int64 `gorm:"column:service_fee_cents;not null;default:0"`
	TotalCents      int64 `gorm:"column:total_cents;not null"`

	PromoCodeID *uuid.UUID `gorm:"column:promo_code_id;type:uuid;index"`

	// Buyer snapshot, immutable after creation.
	BuyerName  string `gorm:"column:buyer_name;not null"`
	BuyerEmail string `gorm:"column:buyer_email;not null"`
	BuyerCPF   string `gorm:"column:buyer_cpf;not null"`

	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:payment_method_enum;not null"`
	Installments  int                 `gorm:"column:installments;not null;default:1"`

	ExpiresAt   *time.Time `gorm:"column:expires_at;index"`
	ConfirmedAt *time.Time `gorm:"column:confirmed_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	ExpiredAt   *time.Time `gorm:"column:expired_at"`

	EmailSent      bool       `gorm:"column:email_sent;not null;default:false"`
	EmailSentAt    *time.Time `gorm:"column:email_sent_at"`
	EmailLastError *string    `gorm:"column:email_last_error"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

// IsFree reports whether nothing is owed on the order.
func (o Order) IsFree() bool {
	return o.TotalCents == 0
}
