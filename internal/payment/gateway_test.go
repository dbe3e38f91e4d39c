package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-ticketing/internal/config"
	"bus-ticketing/internal/models"
)

func TestSignIsDeterministic(t *testing.T) {
	sig1 := Sign("order_123", "pay_456", "secret")
	sig2 := Sign("order_123", "pay_456", "secret")
	assert.Equal(t, sig1, sig2)
	assert.Len(t, sig1, 64) // hex-encoded SHA-256
}

func TestSignDependsOnEveryInput(t *testing.T) {
	base := Sign("order_123", "pay_456", "secret")
	assert.NotEqual(t, base, Sign("order_999", "pay_456", "secret"))
	assert.NotEqual(t, base, Sign("order_123", "pay_999", "secret"))
	assert.NotEqual(t, base, Sign("order_123", "pay_456", "other-secret"))
}

func TestVerifySignature(t *testing.T) {
	client := NewClient(config.PaymentConfig{KeySecret: "secret"}, nil)

	valid := Sign("order_123", "pay_456", "secret")
	assert.True(t, client.VerifySignature("order_123", "pay_456", valid))

	// Tampered signature must be rejected.
	assert.False(t, client.VerifySignature("order_123", "pay_456", valid[:len(valid)-1]+"0"))
	// Signature for a different order must not verify.
	assert.False(t, client.VerifySignature("order_999", "pay_456", valid))
	assert.False(t, client.VerifySignature("order_123", "pay_456", ""))
}

func TestCreateOrder(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders", r.URL.Path)
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key-id", user)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "order_abc"})
	}))
	defer server.Close()

	client := NewClient(config.PaymentConfig{
		BaseURL:   server.URL,
		KeyID:     "key-id",
		KeySecret: "key-secret",
		Currency:  "INR",
	}, server.Client())

	orderID, err := client.CreateOrder(context.Background(), 1210.0, "INR", "BT00000001")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", orderID)

	// Amount travels in the smallest currency unit.
	assert.Equal(t, float64(121000), gotBody["amount"])
	assert.Equal(t, "INR", gotBody["currency"])
	assert.Equal(t, "BT00000001", gotBody["receipt"])
}

func TestCreateOrderGatewayFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(config.PaymentConfig{BaseURL: server.URL}, server.Client())

	_, err := client.CreateOrder(context.Background(), 100, "INR", "BT00000002")
	require.Error(t, err)
	var payErr *models.ExternalPaymentError
	assert.ErrorAs(t, err, &payErr)
}

func TestCreateOrderEmptyID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": ""})
	}))
	defer server.Close()

	client := NewClient(config.PaymentConfig{BaseURL: server.URL}, server.Client())

	_, err := client.CreateOrder(context.Background(), 100, "INR", "BT00000003")
	var payErr *models.ExternalPaymentError
	assert.ErrorAs(t, err, &payErr)
}
