package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts inbound gateway webhook deliveries by outcome.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	processed *prometheus.CounterVec
	rejected  *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received",
		Help: "Webhook deliveries accepted for processing.",
	}, []string{"event_type"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed",
		Help: "Webhook deliveries fully reconciled.",
	}, []string{"event_type"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_rejected",
		Help: "Webhook deliveries rejected before processing.",
	}, []string{"reason"})
	reg.MustRegister(received, processed, rejected)
	return &WebhookMetrics{received: received, processed: processed, rejected: rejected}
}

// IncReceived counts an accepted delivery.
func (m *WebhookMetrics) IncReceived(eventType string) {
	if m == nil || m.received == nil {
		return
	}
	m.received.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncProcessed counts a reconciled delivery.
func (m *WebhookMetrics) IncProcessed(eventType string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncRejected counts a rejected delivery by reason.
func (m *WebhookMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}
