package enums

// GatewayEventType is the provider-assigned webhook event name.
type GatewayEventType string

const (
	GatewayEventPaymentCreated   GatewayEventType = "PAYMENT_CREATED"
	GatewayEventPaymentUpdated   GatewayEventType = "PAYMENT_UPDATED"
	GatewayEventPaymentConfirmed GatewayEventType = "PAYMENT_CONFIRMED"
	GatewayEventPaymentReceived  GatewayEventType = "PAYMENT_RECEIVED"
	GatewayEventPaymentOverdue   GatewayEventType = "PAYMENT_OVERDUE"
	GatewayEventPaymentRefunded  GatewayEventType = "PAYMENT_REFUNDED"
	GatewayEventPaymentDeleted   GatewayEventType = "PAYMENT_DELETED"
)

var validGatewayEventTypes = []GatewayEventType{
	GatewayEventPaymentCreated,
	GatewayEventPaymentUpdated,
	GatewayEventPaymentConfirmed,
	GatewayEventPaymentReceived,
	GatewayEventPaymentOverdue,
	GatewayEventPaymentRefunded,
	GatewayEventPaymentDeleted,
}

// IsValid reports whether the value is a known provider event name.
// Unknown names are tolerated upstream; they are recorded and acked.
func (t GatewayEventType) IsValid() bool {
	for _, candidate := range validGatewayEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// PaymentStatus maps the event name onto the local payment status.
// The second return is false for events that carry no status change.
func (t GatewayEventType) PaymentStatus() (PaymentStatus, bool) {
	switch t {
	case GatewayEventPaymentConfirmed:
		return PaymentStatusConfirmed, true
	case GatewayEventPaymentReceived:
		return PaymentStatusReceived, true
	case GatewayEventPaymentOverdue:
		return PaymentStatusOverdue, true
	case GatewayEventPaymentRefunded:
		return PaymentStatusRefunded, true
	case GatewayEventPaymentDeleted:
		return PaymentStatusCancelled, true
	}
	return "", false
}
