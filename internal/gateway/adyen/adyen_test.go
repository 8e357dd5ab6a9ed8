package adyen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refunds-backend/internal/gateway"
)

// 32 zero bytes, hex encoded.
const testHMACKey = "0000000000000000000000000000000000000000000000000000000000000000"

func signedNotification(t *testing.T, item notificationItem) []byte {
	t.Helper()
	sig, err := ComputeItemSignature(&item, testHMACKey)
	require.NoError(t, err)
	if item.AdditionalData == nil {
		item.AdditionalData = map[string]string{}
	}
	item.AdditionalData["hmacSignature"] = sig

	payload, err := json.Marshal(map[string]interface{}{
		"live": "false",
		"notificationItems": []map[string]interface{}{
			{"NotificationRequestItem": item},
		},
	})
	require.NoError(t, err)
	return payload
}

func refundItem() notificationItem {
	return notificationItem{
		EventCode:           "REFUND",
		PspReference:        "psp_refund_1",
		OriginalReference:   "psp_payment_1",
		MerchantAccountCode: "TestMerchant",
		MerchantReference:   "ref-1",
		Success:             "true",
		EventDate:           "2026-08-01T12:00:00+02:00",
		Amount:              amount{Currency: "EUR", Value: 1500},
	}
}

func TestProcessRefund(t *testing.T) {
	t.Run("accepted refund reports pending", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/payments/psp_payment_1/refunds", r.URL.Path)
			assert.Equal(t, "api-key-1", r.Header.Get("X-API-Key"))
			assert.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))

			var body refundRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "TestMerchant", body.MerchantAccount)
			assert.Equal(t, int64(1500), body.Amount.Value)

			json.NewEncoder(w).Encode(refundResponse{
				PspReference: "psp_refund_1",
				Status:       "received",
				Amount:       body.Amount,
			})
		}))
		defer server.Close()

		client := NewClient(&Config{APIURL: server.URL})
		result, err := client.ProcessRefund(context.Background(), gateway.RefundRequest{
			RefundID:             "ref-1",
			GatewayTransactionID: "psp_payment_1",
			Amount:               1500,
			Currency:             "EUR",
			IdempotencyKey:       "idem-1",
		}, gateway.Credentials{APIKey: "api-key-1", MerchantAccount: "TestMerchant"})

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "psp_refund_1", result.GatewayRefundID)
		assert.Equal(t, gateway.StatusPending, result.Status)
	})

	t.Run("security error is terminal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errorResponse{
				Status: 401, ErrorCode: "901", Message: "Invalid Merchant Account", ErrorType: "security",
			})
		}))
		defer server.Close()

		client := NewClient(&Config{APIURL: server.URL})
		_, err := client.ProcessRefund(context.Background(), gateway.RefundRequest{
			GatewayTransactionID: "psp_payment_1",
		}, gateway.Credentials{})

		require.Error(t, err)
		assert.False(t, gateway.IsRetryable(err))
	})

	t.Run("internal error is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errorResponse{
				Status: 500, ErrorCode: "905", Message: "Payment details are not supported", ErrorType: "internal",
			})
		}))
		defer server.Close()

		client := NewClient(&Config{APIURL: server.URL})
		_, err := client.ProcessRefund(context.Background(), gateway.RefundRequest{
			GatewayTransactionID: "psp_payment_1",
		}, gateway.Credentials{})

		require.Error(t, err)
		assert.True(t, gateway.IsRetryable(err))
	})
}

func TestCheckRefundStatusReportsUnknown(t *testing.T) {
	client := NewClient(&Config{})
	result, err := client.CheckRefundStatus(context.Background(), "psp_refund_1", gateway.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusUnknown, result.Status)
}

func TestValidateWebhookSignature(t *testing.T) {
	client := NewClient(&Config{HMACKey: testHMACKey})

	t.Run("valid batch", func(t *testing.T) {
		payload := signedNotification(t, refundItem())
		assert.True(t, client.ValidateWebhookSignature(payload, "", ""))
	})

	t.Run("tampered amount rejected", func(t *testing.T) {
		forged := strings.Replace(string(signedNotification(t, refundItem())),
			`"value":1500`, `"value":9999`, 1)
		assert.False(t, client.ValidateWebhookSignature([]byte(forged), "", ""))
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		item := refundItem()
		payload, err := json.Marshal(map[string]interface{}{
			"notificationItems": []map[string]interface{}{
				{"NotificationRequestItem": item},
			},
		})
		require.NoError(t, err)
		assert.False(t, client.ValidateWebhookSignature(payload, "", ""))
	})
}

func TestParseWebhookEvent(t *testing.T) {
	client := NewClient(&Config{HMACKey: testHMACKey})

	t.Run("successful refund", func(t *testing.T) {
		payload := signedNotification(t, refundItem())
		events, err := client.ParseWebhookEvent(payload)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "psp_refund_1:REFUND", events[0].EventID)
		assert.Equal(t, gateway.StatusCompleted, events[0].Status)
	})

	t.Run("failed refund", func(t *testing.T) {
		item := refundItem()
		item.EventCode = "REFUND_FAILED"
		item.Success = "false"
		payload := signedNotification(t, item)

		events, err := client.ParseWebhookEvent(payload)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, gateway.StatusFailed, events[0].Status)
	})

	t.Run("unrelated event skipped", func(t *testing.T) {
		item := refundItem()
		item.EventCode = "AUTHORISATION"
		payload := signedNotification(t, item)

		events, err := client.ParseWebhookEvent(payload)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
