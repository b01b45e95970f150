package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingressolab/ingresso-backend/internal/payments"
	gatewaywebhook "github.com/ingressolab/ingresso-backend/internal/webhooks/gateway"
	"github.com/ingressolab/ingresso-backend/pkg/config"
	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
	"github.com/ingressolab/ingresso-backend/pkg/metrics"
)

type stubReconciler struct {
	payment *models.Payment
	applied []enums.PaymentStatus
}

func (s *stubReconciler) FindByProviderID(_ context.Context, id string) (*models.Payment, error) {
	if s.payment != nil && s.payment.ProviderPaymentID == id {
		return s.payment, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
}

func (s *stubReconciler) GetActiveForOrder(_ context.Context, _ uuid.UUID) (*models.Payment, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active payment for order")
}

func (s *stubReconciler) ApplyStatus(_ context.Context, payment *models.Payment, next enums.PaymentStatus) (*payments.StatusChange, error) {
	s.applied = append(s.applied, next)
	prev := payment.Status
	payment.Status = next
	return &payments.StatusChange{Payment: payment, Previous: prev, Changed: prev != next}, nil
}

func (s *stubReconciler) RecordProviderSnapshot(_ context.Context, _ uuid.UUID, _ string, _ json.RawMessage) error {
	return nil
}

type memoryStore struct {
	data map[string]string
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = "1"
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "ing:idempotency:" + scope + ":" + id
}

func newWebhookHandler(t *testing.T, stub *stubReconciler) http.HandlerFunc {
	t.Helper()
	logg := logger.New(logger.Options{Output: io.Discard})
	svc, err := gatewaywebhook.NewService(gatewaywebhook.ServiceParams{Payments: stub, Logger: logg})
	require.NoError(t, err)
	guard, err := gatewaywebhook.NewIdempotencyGuard(&memoryStore{data: map[string]string{}}, time.Hour, "gateway")
	require.NoError(t, err)
	m := metrics.NewWebhookMetrics(prometheus.NewRegistry())
	cfg := config.WebhookConfig{AuthToken: "hook-secret"}
	return GatewayWebhook(cfg, svc, guard, m, logg)
}

func postWebhook(handler http.HandlerFunc, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewBufferString(body))
	if token != "" {
		req.Header.Set("X-Webhook-Token", token)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestGatewayWebhookRejectsBadToken(t *testing.T) {
	handler := newWebhookHandler(t, &stubReconciler{})

	rec := postWebhook(handler, "wrong", `{"id":"evt_1","event":"PAYMENT_CONFIRMED","payment":{"id":"pay_1"}}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(handler, "", `{"id":"evt_1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGatewayWebhookFailsClosedWithoutConfiguredToken(t *testing.T) {
	logg := logger.New(logger.Options{Output: io.Discard})
	svc, err := gatewaywebhook.NewService(gatewaywebhook.ServiceParams{Payments: &stubReconciler{}, Logger: logg})
	require.NoError(t, err)
	handler := GatewayWebhook(config.WebhookConfig{}, svc, nil, nil, logg)

	rec := postWebhook(handler, "", `{"id":"evt_1","event":"PAYMENT_CONFIRMED","payment":{"id":"pay_1"}}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGatewayWebhookProcessesEvent(t *testing.T) {
	stub := &stubReconciler{payment: &models.Payment{
		ID:                uuid.New(),
		OrderID:           uuid.New(),
		ProviderPaymentID: "pay_1",
		Status:            enums.PaymentStatusPending,
	}}
	handler := newWebhookHandler(t, stub)

	rec := postWebhook(handler, "hook-secret", `{"id":"evt_1","event":"PAYMENT_CONFIRMED","payment":{"id":"pay_1","status":"CONFIRMED"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stub.applied, 1)
	assert.Equal(t, enums.PaymentStatusConfirmed, stub.applied[0])
}

func TestGatewayWebhookDeduplicatesByEventID(t *testing.T) {
	stub := &stubReconciler{payment: &models.Payment{
		ID:                uuid.New(),
		OrderID:           uuid.New(),
		ProviderPaymentID: "pay_1",
		Status:            enums.PaymentStatusPending,
	}}
	handler := newWebhookHandler(t, stub)
	body := `{"id":"evt_1","event":"PAYMENT_CONFIRMED","payment":{"id":"pay_1","status":"CONFIRMED"}}`

	rec := postWebhook(handler, "hook-secret", body)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postWebhook(handler, "hook-secret", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate")
	assert.Len(t, stub.applied, 1)
}

func TestGatewayWebhookRejectsMalformedPayload(t *testing.T) {
	handler := newWebhookHandler(t, &stubReconciler{})

	rec := postWebhook(handler, "hook-secret", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postWebhook(handler, "hook-secret", `{"event":"PAYMENT_CONFIRMED","payment":{"id":"pay_1"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
