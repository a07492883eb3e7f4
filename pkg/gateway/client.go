package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auricjewels/auric-backend/pkg/config"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
)

const (
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024
	currencyINR                 = "INR"
)

// Client wraps the hosted payment gateway used for prepaid checkout.
// Amounts cross the wire in paise, matching the gateway's smallest-unit
// convention for INR.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the gateway client from configuration. It returns a
// typed dependency error when the key pair is absent so callers can
// degrade the prepaid path instead of crashing at boot.
func NewClient(cfg config.GatewayConfig, opts ...Option) (*Client, error) {
	if !cfg.Configured() {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayMisconfigured, "payment gateway credentials are not configured")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		keyID:      strings.TrimSpace(cfg.KeyID),
		keySecret:  strings.TrimSpace(cfg.KeySecret),
		httpClient: &http.Client{Timeout: timeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// GatewayOrder is the order registered with the gateway ahead of capture.
type GatewayOrder struct {
	ID          string
	AmountPaise int64
	Currency    string
	Receipt     string
	Status      string
}

// VerifyRequest carries the callback parameters the gateway posts back
// after a capture attempt.
type VerifyRequest struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// VerifyResult is the gateway's judgment on a capture attempt. The
// signature check happens on the gateway side; the adapter only relays
// the boolean.
type VerifyResult struct {
	Verified  bool
	PaymentID string
	Status    string
}

// Refund is the gateway's record of a refund issued against a payment.
type Refund struct {
	ID          string
	PaymentID   string
	AmountPaise int64
	Status      string
}

// CreateOrder registers a payable amount with the gateway and returns
// the gateway order the client SDK completes payment against.
func (c *Client) CreateOrder(ctx context.Context, amountPaise int64, receipt string) (*GatewayOrder, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayMisconfigured, "payment gateway client not configured")
	}
	if amountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order amount must be positive")
	}

	payload := struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
	}{Amount: amountPaise, Currency: currencyINR, Receipt: receipt}

	var apiResp struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
		Status   string `json:"status"`
	}
	if err := c.post(ctx, "/v1/orders", payload, &apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gateway order")
	}

	return &GatewayOrder{
		ID:          apiResp.ID,
		AmountPaise: apiResp.Amount,
		Currency:    apiResp.Currency,
		Receipt:     apiResp.Receipt,
		Status:      apiResp.Status,
	}, nil
}

// VerifyPayment asks the gateway to validate a capture callback. A
// transport failure is a dependency error; a clean "not verified"
// answer is returned without error so the caller can fail the payment
// leg deliberately.
func (c *Client) VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayMisconfigured, "payment gateway client not configured")
	}
	if strings.TrimSpace(req.GatewayOrderID) == "" || strings.TrimSpace(req.PaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order ID and payment ID are required")
	}

	payload := struct {
		OrderID   string `json:"order_id"`
		PaymentID string `json:"payment_id"`
		Signature string `json:"signature"`
	}{OrderID: req.GatewayOrderID, PaymentID: req.PaymentID, Signature: req.Signature}

	var apiResp struct {
		Verified  bool   `json:"verified"`
		PaymentID string `json:"payment_id"`
		Status    string `json:"status"`
	}
	if err := c.post(ctx, "/v1/payments/verify", payload, &apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify gateway payment")
	}

	return &VerifyResult{
		Verified:  apiResp.Verified,
		PaymentID: apiResp.PaymentID,
		Status:    apiResp.Status,
	}, nil
}

// RefundPayment issues a full or partial refund against a captured payment.
func (c *Client) RefundPayment(ctx context.Context, paymentID string, amountPaise int64) (*Refund, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayMisconfigured, "payment gateway client not configured")
	}
	trimmed := strings.TrimSpace(paymentID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment ID is required")
	}
	if amountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	payload := struct {
		Amount int64 `json:"amount"`
	}{Amount: amountPaise}

	var apiResp struct {
		ID        string `json:"id"`
		PaymentID string `json:"payment_id"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
	}
	path := fmt.Sprintf("/v1/payments/%s/refund", url.PathEscape(trimmed))
	if err := c.post(ctx, path, payload, &apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund gateway payment")
	}

	return &Refund{
		ID:          apiResp.ID,
		PaymentID:   apiResp.PaymentID,
		AmountPaise: apiResp.Amount,
		Status:      apiResp.Status,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
