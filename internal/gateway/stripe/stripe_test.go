package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refunds-backend/internal/gateway"
)

func testCreds() gateway.Credentials {
	return gateway.Credentials{APIKey: "sk_test_abc"}
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1700000000, 0)

	valid := fmt.Sprintf("t=%d,v1=%s", now.Unix(), ComputeSignature(now.Unix(), payload, secret))

	t.Run("valid signature", func(t *testing.T) {
		assert.True(t, VerifySignature(payload, valid, secret, now))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, VerifySignature(payload, valid, "whsec_other", now))
	})

	t.Run("tampered body", func(t *testing.T) {
		assert.False(t, VerifySignature([]byte(`{"id":"evt_2"}`), valid, secret, now))
	})

	t.Run("stale timestamp rejected", func(t *testing.T) {
		assert.False(t, VerifySignature(payload, valid, secret, now.Add(6*time.Minute)))
	})

	t.Run("missing parts", func(t *testing.T) {
		assert.False(t, VerifySignature(payload, "t=123", secret, now))
		assert.False(t, VerifySignature(payload, "v1=deadbeef", secret, now))
		assert.False(t, VerifySignature(payload, "", secret, now))
	})
}

func TestProcessRefund(t *testing.T) {
	t.Run("successful refund", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/refunds", r.URL.Path)
			assert.Equal(t, "Bearer sk_test_abc", r.Header.Get("Authorization"))
			assert.Equal(t, "idem-key-1", r.Header.Get("Idempotency-Key"))

			require.NoError(t, r.ParseForm())
			assert.Equal(t, "ch_123", r.FormValue("charge"))
			assert.Equal(t, "2500", r.FormValue("amount"))

			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":      "re_123",
				"object":  "refund",
				"amount":  2500,
				"charge":  "ch_123",
				"status":  "pending",
				"created": 1700000000,
			})
		}))
		defer server.Close()

		client := NewClient(&Config{APIURL: server.URL})
		result, err := client.ProcessRefund(context.Background(), gateway.RefundRequest{
			RefundID:             "ref-1",
			GatewayTransactionID: "ch_123",
			Amount:               2500,
			Currency:             "USD",
			IdempotencyKey:       "idem-key-1",
		}, testCreds())

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "re_123", result.GatewayRefundID)
		assert.Equal(t, gateway.StatusPending, result.Status)
		assert.Equal(t, int64(2500), result.ProcessedAmount)
		assert.NotNil(t, result.EstimatedSettlementDate)
	})

	t.Run("unmapped status reported unknown", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "re_456",
				"status": "some_future_status",
			})
		}))
		defer server.Close()

		client := NewClient(&Config{APIURL: server.URL})
		result, err := client.ProcessRefund(context.Background(), gateway.RefundRequest{}, testCreds())

		require.NoError(t, err)
		assert.Equal(t, gateway.StatusUnknown, result.Status)
	})

	t.Run("rate limit is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{
					"type":    "rate_limit_error",
					"code":    "rate_limit",
					"message": "too many requests",
				},
			})
		}))
		defer server.Close()

		client := NewClient(&Config{APIURL: server.URL})
		_, err := client.ProcessRefund(context.Background(), gateway.RefundRequest{}, testCreds())

		require.Error(t, err)
		assert.True(t, gateway.IsRetryable(err))
	})

	t.Run("already refunded is terminal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{
					"type":    "invalid_request_error",
					"code":    "charge_already_refunded",
					"message": "Charge ch_123 has already been refunded.",
				},
			})
		}))
		defer server.Close()

		client := NewClient(&Config{APIURL: server.URL})
		_, err := client.ProcessRefund(context.Background(), gateway.RefundRequest{}, testCreds())

		require.Error(t, err)
		assert.False(t, gateway.IsRetryable(err))
	})

	t.Run("server error is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewClient(&Config{APIURL: server.URL})
		_, err := client.ProcessRefund(context.Background(), gateway.RefundRequest{}, testCreds())

		require.Error(t, err)
		assert.True(t, gateway.IsRetryable(err))
	})
}

func TestCheckRefundStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds/re_123", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "re_123",
			"amount":  1000,
			"status":  "succeeded",
			"created": 1700000000,
		})
	}))
	defer server.Close()

	client := NewClient(&Config{APIURL: server.URL})
	result, err := client.CheckRefundStatus(context.Background(), "re_123", testCreds())

	require.NoError(t, err)
	assert.Equal(t, gateway.StatusCompleted, result.Status)
	assert.True(t, result.Success)
}

func TestParseWebhookEvent(t *testing.T) {
	client := NewClient(&Config{})

	t.Run("refund update event", func(t *testing.T) {
		payload := []byte(`{
			"id": "evt_1",
			"type": "charge.refund.updated",
			"created": 1700000000,
			"data": {"object": {"id": "re_123", "status": "succeeded", "amount": 500}}
		}`)

		events, err := client.ParseWebhookEvent(payload)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "evt_1", events[0].EventID)
		assert.Equal(t, "re_123", events[0].GatewayRefundID)
		assert.Equal(t, gateway.StatusCompleted, events[0].Status)
	})

	t.Run("unrelated event ignored", func(t *testing.T) {
		payload := []byte(`{"id": "evt_2", "type": "invoice.paid", "data": {"object": {}}}`)
		events, err := client.ParseWebhookEvent(payload)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
