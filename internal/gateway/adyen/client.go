package adyen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"refunds-backend/internal/gateway"
	"refunds-backend/internal/infrastructure/metrics"
)

// =====================================================
// ADYEN CLIENT IMPLEMENTATION
// =====================================================

type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new Adyen adapter.
func NewClient(config *Config) gateway.Adapter {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Type() string {
	return gateway.TypeAdyen
}

// =====================================================
// PROCESS REFUND
// =====================================================

// ProcessRefund submits a refund for the original payment.
//
// Adyen is asynchronous: a 2xx means "received", and the real outcome
// arrives later through the REFUND / REFUND_FAILED notification. The
// result therefore reports PENDING, never COMPLETED.
func (c *Client) ProcessRefund(
	ctx context.Context,
	req gateway.RefundRequest,
	creds gateway.Credentials,
) (*gateway.RefundResult, error) {
	body := refundRequest{
		MerchantAccount: creds.MerchantAccount,
		Amount: amount{
			Currency: req.Currency,
			Value:    req.Amount,
		},
		Reference: req.RefundID,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode refund request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.RefundURL(req.GatewayTransactionID), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", creds.APIKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	metrics.GatewayLatency.WithLabelValues(gateway.TypeAdyen, "process_refund").
		Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, gateway.ClassifyTransport(gateway.TypeAdyen, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gateway.ClassifyTransport(gateway.TypeAdyen, err)
	}

	if resp.StatusCode >= 400 {
		return nil, c.classifyError(resp.StatusCode, bodyBytes)
	}

	var refund refundResponse
	if err := json.Unmarshal(bodyBytes, &refund); err != nil {
		return nil, gateway.NewError(gateway.TypeAdyen, gateway.CategoryUnknown,
			"MALFORMED_RESPONSE", "unparseable refund response", err)
	}

	var raw map[string]interface{}
	json.Unmarshal(bodyBytes, &raw)

	now := time.Now().UTC()
	settlement := now.AddDate(0, 0, 5)
	return &gateway.RefundResult{
		Success:                 true,
		GatewayRefundID:         refund.PspReference,
		Status:                  gateway.StatusPending,
		ProcessedAmount:         refund.Amount.Value,
		ProcessingDate:          &now,
		EstimatedSettlementDate: &settlement,
		GatewayResponseCode:     refund.Status,
		RawResponse:             raw,
	}, nil
}

// =====================================================
// CHECK REFUND STATUS
// =====================================================

// CheckRefundStatus cannot poll Adyen: there is no refund status
// endpoint. The adapter reports UNKNOWN so the worker keeps waiting
// for the notification instead of failing the refund.
func (c *Client) CheckRefundStatus(
	ctx context.Context,
	gatewayRefundID string,
	creds gateway.Credentials,
) (*gateway.RefundResult, error) {
	return &gateway.RefundResult{
		Success:         true,
		GatewayRefundID: gatewayRefundID,
		Status:          gateway.StatusUnknown,
	}, nil
}

func (c *Client) classifyError(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.ErrorType == "" {
		return gateway.ClassifyHTTPStatus(gateway.TypeAdyen, statusCode, string(body))
	}

	switch errResp.ErrorType {
	case "security":
		return gateway.NewError(gateway.TypeAdyen, gateway.CategoryAuthentication,
			errResp.ErrorCode, errResp.Message, nil)
	case "validation", "configuration":
		return gateway.NewError(gateway.TypeAdyen, gateway.CategoryValidation,
			errResp.ErrorCode, errResp.Message, nil)
	case "internal":
		return gateway.NewError(gateway.TypeAdyen, gateway.CategoryServer,
			errResp.ErrorCode, errResp.Message, nil)
	default:
		return gateway.ClassifyHTTPStatus(gateway.TypeAdyen, statusCode, errResp.Message)
	}
}

// =====================================================
// WEBHOOKS
// =====================================================

// ValidateWebhookSignature verifies every notification item in the
// batch. A single forged item rejects the whole batch.
func (c *Client) ValidateWebhookSignature(payload []byte, signature string, secret string) bool {
	if secret == "" {
		secret = c.config.HMACKey
	}

	var envelope notificationEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return false
	}
	if len(envelope.NotificationItems) == 0 {
		return false
	}

	for i := range envelope.NotificationItems {
		if !verifyItemSignature(&envelope.NotificationItems[i].NotificationRequestItem, secret) {
			return false
		}
	}
	return true
}

func (c *Client) ParseWebhookEvent(payload []byte) ([]gateway.NormalizedEvent, error) {
	var envelope notificationEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse Adyen notification: %w", err)
	}

	events := make([]gateway.NormalizedEvent, 0, len(envelope.NotificationItems))
	for _, wrapper := range envelope.NotificationItems {
		item := wrapper.NotificationRequestItem

		if item.EventCode != "REFUND" && item.EventCode != "REFUND_FAILED" {
			continue
		}

		status := gateway.StatusFailed
		if item.EventCode == "REFUND" && item.Success == "true" {
			status = gateway.StatusCompleted
		}

		occurred, err := time.Parse(time.RFC3339, item.EventDate)
		if err != nil {
			occurred = time.Now().UTC()
		}

		raw := map[string]interface{}{
			"eventCode":         item.EventCode,
			"pspReference":      item.PspReference,
			"originalReference": item.OriginalReference,
			"success":           item.Success,
			"reason":            item.Reason,
		}

		events = append(events, gateway.NormalizedEvent{
			EventID:         item.PspReference + ":" + item.EventCode,
			GatewayRefundID: item.PspReference,
			Status:          status,
			OccurredAt:      occurred,
			Raw:             raw,
		})
	}

	return events, nil
}
