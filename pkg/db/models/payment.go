package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

// Payment mirrors one provider charge for an order. A partial unique index
// (ux_payments_order_active, WHERE status <> 'cancelled') keeps at most one
// live payment per order.
type Payment struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`

	ProviderPaymentID string              `gorm:"column:provider_payment_id;not null;uniqueIndex:ux_payments_provider_id"`
	Status            enums.PaymentStatus `gorm:"column:status;type:payment_status_enum;not null;default:pending"`
	Method            enums.PaymentMethod `gorm:"column:method;type:payment_method_enum;not null"`

	AmountCents  int64      `gorm:"column:amount_cents;not null"`
	Installments int        `gorm:"column:installments;not null;default:1"`
	DueDate      *time.Time `gorm:"column:due_date"`

	PixPayload *string `gorm:"column:pix_payload"`
	BoletoURL  *string `gorm:"column:boleto_url"`
	InvoiceURL *string `gorm:"column:invoice_url"`

	PaidAt     *time.Time `gorm:"column:paid_at"`
	RefundedAt *time.Time `gorm:"column:refunded_at"`

	// Last raw status and payload seen from the provider, kept for audits
	// and dispute handling.
	ProviderStatus   *string         `gorm:"column:provider_status"`
	ProviderSnapshot json.RawMessage `gorm:"column:provider_snapshot;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }
