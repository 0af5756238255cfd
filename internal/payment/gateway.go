// internal/payment/gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"referralbridge/internal/common/config"
	stderrors "referralbridge/internal/common/errors"
	commonhttp "referralbridge/internal/common/http"
	"referralbridge/internal/common/logger"
	"referralbridge/internal/models"
)

// OrderCreator is the provider-facing order initiation contract consumed by the
// workflow and the HTTP API.
type OrderCreator interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*models.PaymentOrder, error)
	Ready() bool
	KeyID() string
}

// Gateway talks to the payment provider's REST API (Razorpay-style orders
// endpoint, basic auth with key id/secret).
type Gateway struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *commonhttp.Client
	logger    logger.Logger
}

// NewGateway fails when credentials are missing: provider misconfiguration is
// a fatal startup-time condition, not a per-call error.
func NewGateway(cfg config.PaymentConfig, log logger.Logger) (*Gateway, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("payment gateway credentials missing")
	}
	return &Gateway{
		baseURL:   cfg.BaseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		client:    commonhttp.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		logger:    log.WithFields(map[string]interface{}{"component": "payment-gateway"}),
	}, nil
}

// Ready reports whether the gateway is configured for checkout use.
func (g *Gateway) Ready() bool {
	return g.keyID != "" && g.keySecret != ""
}

// KeyID returns the public key identifier embedded in checkout parameters.
func (g *Gateway) KeyID() string {
	return g.keyID
}

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CreateOrder requests a payment order from the provider. A non-positive
// amount is rejected before any network call. Provider-side failure surfaces
// as a retryable error; the workflow reverts to "email verified, payment not
// started" without re-requiring email verification.
func (g *Gateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*models.PaymentOrder, error) {
	if amount <= 0 {
		return nil, stderrors.NewInvalidAmountError(amount)
	}

	body, err := json.Marshal(orderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		return nil, stderrors.NewOrderCreateFailedError(err)
	}

	req, err := http.NewRequest(http.MethodPost, g.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, stderrors.NewOrderCreateFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, stderrors.NewOrderCreateFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		g.logger.Error("order creation rejected by provider", map[string]interface{}{
			"status": resp.StatusCode,
			"body":   string(raw),
		})
		return nil, stderrors.NewOrderCreateFailedError(
			fmt.Errorf("provider returned %d", resp.StatusCode))
	}

	var out orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, stderrors.NewOrderCreateFailedError(err)
	}

	g.logger.Info("payment order created", map[string]interface{}{
		"orderId":  out.ID,
		"amount":   out.Amount,
		"currency": out.Currency,
	})

	return &models.PaymentOrder{
		OrderID:  out.ID,
		KeyID:    g.keyID,
		Amount:   out.Amount,
		Currency: out.Currency,
	}, nil
}
