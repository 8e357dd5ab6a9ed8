package braintree

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refunds-backend/internal/gateway"
)

func TestVerifySignature(t *testing.T) {
	secret := "bt_secret"
	payload := []byte(`{"id":"wn_1"}`)
	header := "public_key|" + ComputeSignature(payload, secret)

	assert.True(t, VerifySignature(payload, header, secret))
	assert.False(t, VerifySignature(payload, header, "other_secret"))
	assert.False(t, VerifySignature([]byte(`{"id":"wn_2"}`), header, secret))
	assert.False(t, VerifySignature(payload, "no-separator", secret))
	assert.False(t, VerifySignature(payload, "public_key|", secret))
}

func TestProcessRefund(t *testing.T) {
	t.Run("successful mutation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NotEmpty(t, r.Header.Get("Authorization"))
			assert.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))

			var req graphQLRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			input := req.Variables["input"].(map[string]interface{})
			assert.Equal(t, "txn_123", input["transactionId"])
			refund := input["refund"].(map[string]interface{})
			assert.Equal(t, "25.00", refund["amount"])

			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"refundTransaction": map[string]interface{}{
						"refund": map[string]interface{}{
							"id":        "rfnd_abc",
							"status":    "SUBMITTED_FOR_SETTLEMENT",
							"amount":    map[string]string{"value": "25.00", "currencyCode": "USD"},
							"createdAt": "2026-08-01T10:00:00Z",
						},
					},
				},
			})
		}))
		defer server.Close()

		client := NewClient(&Config{APIURL: server.URL})
		result, err := client.ProcessRefund(context.Background(), gateway.RefundRequest{
			RefundID:             "ref-1",
			GatewayTransactionID: "txn_123",
			Amount:               2500,
			Currency:             "USD",
			IdempotencyKey:       "idem-1",
		}, gateway.Credentials{APIKey: "pub", APISecret: "priv"})

		require.NoError(t, err)
		assert.Equal(t, "rfnd_abc", result.GatewayRefundID)
		assert.Equal(t, gateway.StatusProcessing, result.Status)
		assert.Equal(t, int64(2500), result.ProcessedAmount)
	})

	t.Run("graphql validation error is terminal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"errors": []map[string]interface{}{{
					"message": "Transaction has already been fully refunded.",
					"extensions": map[string]string{
						"errorType":  "user_error",
						"legacyCode": "91512",
					},
				}},
			})
		}))
		defer server.Close()

		client := NewClient(&Config{APIURL: server.URL})
		_, err := client.ProcessRefund(context.Background(), gateway.RefundRequest{
			Amount: 100,
		}, gateway.Credentials{})

		require.Error(t, err)
		assert.False(t, gateway.IsRetryable(err))
	})

	t.Run("graphql internal error is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"errors": []map[string]interface{}{{
					"message": "An unexpected error occurred.",
					"extensions": map[string]string{
						"errorType": "internal",
					},
				}},
			})
		}))
		defer server.Close()

		client := NewClient(&Config{APIURL: server.URL})
		_, err := client.ProcessRefund(context.Background(), gateway.RefundRequest{
			Amount: 100,
		}, gateway.Credentials{})

		require.Error(t, err)
		assert.True(t, gateway.IsRetryable(err))
	})
}

func TestCheckRefundStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"node": map[string]interface{}{
					"id":        "rfnd_abc",
					"status":    "SETTLED",
					"amount":    map[string]string{"value": "25.00", "currencyCode": "USD"},
					"createdAt": "2026-08-01T10:00:00Z",
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(&Config{APIURL: server.URL})
	result, err := client.CheckRefundStatus(context.Background(), "rfnd_abc", gateway.Credentials{})

	require.NoError(t, err)
	assert.Equal(t, gateway.StatusCompleted, result.Status)
}

func TestParseWebhookEvent(t *testing.T) {
	client := NewClient(&Config{})

	t.Run("settled refund", func(t *testing.T) {
		payload := []byte(`{
			"id": "wn_1",
			"kind": "refund_settled",
			"timestamp": "2026-08-01T10:00:00Z",
			"subject": {"refund": {"id": "rfnd_abc", "status": "SETTLED"}}
		}`)

		events, err := client.ParseWebhookEvent(payload)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "wn_1", events[0].EventID)
		assert.Equal(t, "rfnd_abc", events[0].GatewayRefundID)
		assert.Equal(t, gateway.StatusCompleted, events[0].Status)
	})

	t.Run("unrelated kind skipped", func(t *testing.T) {
		payload := []byte(`{"id": "wn_2", "kind": "dispute_opened", "subject": {}}`)
		events, err := client.ParseWebhookEvent(payload)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
