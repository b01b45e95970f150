package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingressolab/ingresso-backend/pkg/config"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.GatewayConfig{
		BaseURL:     server.URL,
		AccessToken: "tok_test",
		Timeout:     2 * time.Second,
	}, nil)
	require.NoError(t, err)
	return client, server
}

func TestCreatePaymentSendsAuthAndBody(t *testing.T) {
	var gotToken string
	var gotBody map[string]any

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v3/payments", r.URL.Path)
		gotToken = r.Header.Get("access_token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(Payment{ID: "pay_123", Status: "PENDING"})
	}))

	payment, err := client.CreatePayment(context.Background(), PaymentRequest{
		CustomerID:        "cus_1",
		BillingType:       BillingTypeFor(enums.PaymentMethodPix),
		Value:             CentsToValue(12550),
		DueDate:           FormatDueDate(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		ExternalReference: "order-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "pay_123", payment.ID)
	assert.Equal(t, "tok_test", gotToken)
	assert.Equal(t, "PIX", gotBody["billingType"])
	assert.Equal(t, "125.5", gotBody["value"])
	assert.Equal(t, "2026-03-01", gotBody["dueDate"])
	assert.Equal(t, "order-1", gotBody["externalReference"])
}

func TestCreatePaymentRejectsOversizedSplit(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not reach the provider")
	}))

	_, err := client.CreatePayment(context.Background(), PaymentRequest{
		CustomerID:  "cus_1",
		BillingType: "PIX",
		Value:       CentsToValue(1000),
		Split: []SplitEntry{
			{WalletID: "w1", Percentage: decimal.NewFromInt(70)},
			{WalletID: "w2", Percentage: decimal.NewFromInt(40)},
		},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestGetPaymentMapsNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetPayment(context.Background(), "pay_missing")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestProviderErrorsAreDependencyErrors(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]string{{"code": "invalid_value", "description": "value too low"}},
		})
	}))

	_, err := client.CreatePayment(context.Background(), PaymentRequest{
		CustomerID:  "cus_1",
		BillingType: "BOLETO",
		Value:       CentsToValue(1),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
	assert.Contains(t, err.Error(), "value too low")
}

func TestCancelPayment(t *testing.T) {
	cancelled := false
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/v3/payments/pay_9", r.URL.Path)
		cancelled = true
		json.NewEncoder(w).Encode(map[string]any{"deleted": true})
	}))

	require.NoError(t, client.CancelPayment(context.Background(), "pay_9"))
	assert.True(t, cancelled)
}

func TestStatusForMapping(t *testing.T) {
	status, ok := StatusFor("RECEIVED_IN_CASH")
	require.True(t, ok)
	assert.Equal(t, enums.PaymentStatusReceived, status)

	_, ok = StatusFor("SOME_FUTURE_STATUS")
	assert.False(t, ok)
}
