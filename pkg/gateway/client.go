package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ingressolab/ingresso-backend/pkg/config"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
)

const defaultTimeout = 15 * time.Second

// Gateway is the payment-provider surface consumed by the services. The
// HTTP client below is the only production implementation; tests supply
// fakes.
type Gateway interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error)
	CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error)
	GetPayment(ctx context.Context, providerPaymentID string) (*Payment, error)
	GetPixQRCode(ctx context.Context, providerPaymentID string) (*PixQRCode, error)
	CancelPayment(ctx context.Context, providerPaymentID string) error
}

// Client talks to the provider's REST API with access_token header auth.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logg        *logger.Logger
}

// NewClient builds a provider client from configuration.
func NewClient(cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, fmt.Errorf("gateway access token is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: timeout},
		logg:        logg,
	}, nil
}

// CreateCustomer registers a payer at the provider.
func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error) {
	if req.Name == "" || req.CPF == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name and cpf are required")
	}
	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/v3/customers", req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreatePayment opens a charge against an existing customer.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	if req.CustomerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if req.BillingType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "billing type is required")
	}
	if err := ValidateSplit(req.Split); err != nil {
		return nil, err
	}
	var payment Payment
	if err := c.do(ctx, http.MethodPost, "/v3/payments", req, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPayment fetches the current provider-side state of a charge.
func (c *Client) GetPayment(ctx context.Context, providerPaymentID string) (*Payment, error) {
	if providerPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/v3/payments/"+providerPaymentID, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPixQRCode fetches the pix payload for a charge.
func (c *Client) GetPixQRCode(ctx context.Context, providerPaymentID string) (*PixQRCode, error) {
	if providerPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	var qr PixQRCode
	if err := c.do(ctx, http.MethodGet, "/v3/payments/"+providerPaymentID+"/pixQrCode", nil, &qr); err != nil {
		return nil, err
	}
	return &qr, nil
}

// CancelPayment voids an open charge at the provider.
func (c *Client) CancelPayment(ctx context.Context, providerPaymentID string) error {
	if providerPaymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	return c.do(ctx, http.MethodDelete, "/v3/payments/"+providerPaymentID, nil, nil)
}

type providerError struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.accessToken)

	if c.logg != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{"method": method, "path": path})
		c.logg.Info(logCtx, "gateway request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return c.errorFromResponse(resp.StatusCode, payload)
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
	}
	return nil
}

func (c *Client) errorFromResponse(status int, payload []byte) error {
	description := ""
	var decoded providerError
	if err := json.Unmarshal(payload, &decoded); err == nil && len(decoded.Errors) > 0 {
		description = decoded.Errors[0].Description
	}
	if description == "" {
		description = strings.TrimSpace(string(payload))
	}

	switch {
	case status == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "gateway resource not found")
	case status >= http.StatusInternalServerError:
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("gateway error (%d): %s", status, description))
	default:
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("gateway rejected request (%d): %s", status, description))
	}
}
