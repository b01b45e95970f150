package gateway

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

// CustomerRequest creates a payer record at the provider.
type CustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	CPF   string `json:"cpfCnpj"`
}

// Customer is the provider-side payer record.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SplitEntry routes a percentage of a payment to another wallet.
type SplitEntry struct {
	WalletID   string          `json:"walletId"`
	Percentage decimal.Decimal `json:"percentualValue"`
}

// PaymentRequest creates a charge. Value is in BRL with two decimal places;
// ExternalReference carries the order id so webhooks can be matched back.
type PaymentRequest struct {
	CustomerID        string          `json:"customer"`
	BillingType       string          `json:"billingType"`
	Value             decimal.Decimal `json:"value"`
	DueDate           string          `json:"dueDate"`
	Description       string          `json:"description,omitempty"`
	ExternalReference string          `json:"externalReference"`
	InstallmentCount  int             `json:"installmentCount,omitempty"`
	Split             []SplitEntry    `json:"split,omitempty"`
}

// Payment is the provider-side charge record.
type Payment struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	Value             decimal.Decimal `json:"value"`
	BillingType       string          `json:"billingType"`
	ExternalReference string          `json:"externalReference"`
	InvoiceURL        string          `json:"invoiceUrl"`
	BankSlipURL       string          `json:"bankSlipUrl"`
	InstallmentCount  int             `json:"installmentCount"`
	DueDate           string          `json:"dueDate"`
}

// PixQRCode is the copy-and-paste payload for a pix charge.
type PixQRCode struct {
	EncodedImage string `json:"encodedImage"`
	Payload      string `json:"payload"`
	ExpiresAt    string `json:"expirationDate"`
}

// BillingTypeFor maps the local payment method onto the provider's name.
func BillingTypeFor(method enums.PaymentMethod) string {
	switch method {
	case enums.PaymentMethodPix:
		return "PIX"
	case enums.PaymentMethodBoleto:
		return "BOLETO"
	case enums.PaymentMethodCreditCard:
		return "CREDIT_CARD"
	}
	return ""
}

// StatusFor maps a provider payment status onto the local enum. Unknown
// statuses return false so callers can record and ignore them.
func StatusFor(providerStatus string) (enums.PaymentStatus, bool) {
	switch providerStatus {
	case "PENDING", "AWAITING_RISK_ANALYSIS":
		return enums.PaymentStatusPending, true
	case "CONFIRMED":
		return enums.PaymentStatusConfirmed, true
	case "RECEIVED", "RECEIVED_IN_CASH":
		return enums.PaymentStatusReceived, true
	case "OVERDUE":
		return enums.PaymentStatusOverdue, true
	case "REFUNDED":
		return enums.PaymentStatusRefunded, true
	case "DELETED":
		return enums.PaymentStatusCancelled, true
	}
	return "", false
}

// FormatDueDate renders a due date the way the provider expects.
func FormatDueDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// CentsToValue converts integer cents into the decimal BRL amount the
// provider speaks.
func CentsToValue(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
