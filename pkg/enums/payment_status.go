package enums

import "fmt"

// PaymentStatus tracks the provider-side lifecycle of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusReceived  PaymentStatus = "received"
	PaymentStatusOverdue   PaymentStatus = "overdue"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusFailed    PaymentStatus = "failed"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusConfirmed,
	PaymentStatusReceived,
	PaymentStatusOverdue,
	PaymentStatusRefunded,
	PaymentStatusCancelled,
	PaymentStatusFailed,
}

// IsValid reports whether the value matches the canonical enum.
func (s PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Settled reports whether the payment counts as paid.
func (s PaymentStatus) Settled() bool {
	return s == PaymentStatusConfirmed || s == PaymentStatusReceived
}

// TerminalFailure reports whether the provider gave up on collecting this
// payment. The order behind it will never be paid through this attempt.
func (s PaymentStatus) TerminalFailure() bool {
	return s == PaymentStatusOverdue || s == PaymentStatusCancelled || s == PaymentStatusFailed
}

// ParsePaymentStatus converts raw input into PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
