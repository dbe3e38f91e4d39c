package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"bus-ticketing/internal/config"
	"bus-ticketing/internal/models"
)

// Gateway is the payment collaborator boundary: order creation for
// non-wallet checkouts and the HMAC signature check for the
// verification callback. Signatures may be replayed; idempotency is
// the booking core's job, not the gateway's.
type Gateway interface {
	CreateOrder(ctx context.Context, amount float64, currency, reference string) (string, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type Client struct {
	cfg    config.PaymentConfig
	client *http.Client
}

func NewClient(cfg config.PaymentConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, client: httpClient}
}

type orderRequest struct {
	Amount   int64  `json:"amount"` // smallest currency unit
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID string `json:"id"`
}

// CreateOrder registers an order with the gateway and returns its ID.
func (c *Client) CreateOrder(ctx context.Context, amount float64, currency, reference string) (string, error) {
	body, err := json.Marshal(orderRequest{
		Amount:   int64(math.Round(amount * 100)),
		Currency: currency,
		Receipt:  reference,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/orders", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &models.ExternalPaymentError{Reason: "gateway unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &models.ExternalPaymentError{Reason: fmt.Sprintf("order creation failed with status %d", resp.StatusCode)}
	}

	var order orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return "", &models.ExternalPaymentError{Reason: "malformed gateway response", Err: err}
	}
	if order.ID == "" {
		return "", &models.ExternalPaymentError{Reason: "gateway returned empty order id"}
	}
	return order.ID, nil
}

// VerifySignature checks the callback signature: hex HMAC-SHA256 of
// "orderID|paymentID" under the key secret, compared in constant time.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	expected := Sign(orderID, paymentID, c.cfg.KeySecret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the gateway signature. Exported for tests and for the
// sandbox gateway stub.
func Sign(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
