package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"refunds-backend/internal/gateway"
	"refunds-backend/internal/infrastructure/metrics"
)

// =====================================================
// STRIPE CLIENT IMPLEMENTATION
// =====================================================

type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new Stripe adapter.
func NewClient(config *Config) gateway.Adapter {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Type() string {
	return gateway.TypeStripe
}

// =====================================================
// PROCESS REFUND
// =====================================================

// ProcessRefund issues a refund against the original charge.
//
// Stripe specifics:
// - form-encoded body, Idempotency-Key header dedupes retries
// - partial refunds pass amount in minor units
func (c *Client) ProcessRefund(
	ctx context.Context,
	req gateway.RefundRequest,
	creds gateway.Credentials,
) (*gateway.RefundResult, error) {
	form := url.Values{}
	form.Set("charge", req.GatewayTransactionID)
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("reason", mapReason(req.Reason))
	form.Set("metadata[refund_id]", req.RefundID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.RefundURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+creds.APIKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	return c.doRefundCall(httpReq, "process_refund")
}

// =====================================================
// CHECK REFUND STATUS
// =====================================================

func (c *Client) CheckRefundStatus(
	ctx context.Context,
	gatewayRefundID string,
	creds gateway.Credentials,
) (*gateway.RefundResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.RefundStatusURL(gatewayRefundID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+creds.APIKey)

	return c.doRefundCall(httpReq, "check_status")
}

func (c *Client) doRefundCall(httpReq *http.Request, operation string) (*gateway.RefundResult, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	metrics.GatewayLatency.WithLabelValues(gateway.TypeStripe, operation).
		Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, gateway.ClassifyTransport(gateway.TypeStripe, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gateway.ClassifyTransport(gateway.TypeStripe, err)
	}

	if resp.StatusCode >= 400 {
		return nil, c.classifyError(resp.StatusCode, bodyBytes)
	}

	var refund refundResponse
	if err := json.Unmarshal(bodyBytes, &refund); err != nil {
		return nil, gateway.NewError(gateway.TypeStripe, gateway.CategoryUnknown,
			"MALFORMED_RESPONSE", "unparseable refund response", err)
	}

	var raw map[string]interface{}
	json.Unmarshal(bodyBytes, &raw)

	return c.toResult(&refund, raw), nil
}

// classifyError maps Stripe's error envelope onto the shared taxonomy.
func (c *Client) classifyError(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Type == "" {
		return gateway.ClassifyHTTPStatus(gateway.TypeStripe, statusCode, string(body))
	}

	code := errResp.Error.Code
	msg := errResp.Error.Message

	switch errResp.Error.Type {
	case "authentication_error":
		return gateway.NewError(gateway.TypeStripe, gateway.CategoryAuthentication, code, msg, nil)
	case "rate_limit_error":
		e := gateway.NewError(gateway.TypeStripe, gateway.CategoryRejection, code, msg, nil)
		e.RateLimited = true
		return e
	case "invalid_request_error":
		return gateway.NewError(gateway.TypeStripe, gateway.CategoryValidation, code, msg, nil)
	case "card_error":
		if terminal, known := terminalErrorCodes[code]; known && !terminal {
			return gateway.NewError(gateway.TypeStripe, gateway.CategoryServer, code, msg, nil)
		}
		return gateway.NewError(gateway.TypeStripe, gateway.CategoryRejection, code, msg, nil)
	case "api_error":
		return gateway.NewError(gateway.TypeStripe, gateway.CategoryServer, code, msg, nil)
	default:
		return gateway.ClassifyHTTPStatus(gateway.TypeStripe, statusCode, msg)
	}
}

func (c *Client) toResult(refund *refundResponse, raw map[string]interface{}) *gateway.RefundResult {
	status := gateway.StatusUnknown
	if mapped, ok := statusMap[refund.Status]; ok {
		status = gateway.Status(mapped)
	}

	processed := time.Unix(refund.Created, 0).UTC()
	result := &gateway.RefundResult{
		Success:             status != gateway.StatusFailed,
		GatewayRefundID:     refund.ID,
		Status:              status,
		ProcessedAmount:     refund.Amount,
		ProcessingDate:      &processed,
		GatewayResponseCode: refund.Status,
		RawResponse:         raw,
	}

	if status == gateway.StatusFailed {
		result.ErrorCode = refund.FailureReason
		result.ErrorMessage = "refund failed: " + refund.FailureReason
	}

	// Card refunds settle in 5-10 business days.
	if status == gateway.StatusPending || status == gateway.StatusProcessing {
		settlement := processed.AddDate(0, 0, 7)
		result.EstimatedSettlementDate = &settlement
	}

	return result
}

// =====================================================
// WEBHOOKS
// =====================================================

func (c *Client) ValidateWebhookSignature(payload []byte, signature string, secret string) bool {
	if secret == "" {
		secret = c.config.WebhookSecret
	}
	return VerifySignature(payload, signature, secret, time.Now())
}

func (c *Client) ParseWebhookEvent(payload []byte) ([]gateway.NormalizedEvent, error) {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse Stripe webhook: %w", err)
	}

	if !strings.HasPrefix(event.Type, "charge.refund.") && !strings.HasPrefix(event.Type, "refund.") {
		// Unrelated event kind: nothing to do, but not an error.
		return nil, nil
	}

	status := gateway.StatusUnknown
	if mapped, ok := statusMap[event.Data.Object.Status]; ok {
		status = gateway.Status(mapped)
	}

	var raw map[string]interface{}
	json.Unmarshal(payload, &raw)

	return []gateway.NormalizedEvent{{
		EventID:         event.ID,
		GatewayRefundID: event.Data.Object.ID,
		Status:          status,
		OccurredAt:      time.Unix(event.Created, 0).UTC(),
		Raw:             raw,
	}}, nil
}

// mapReason maps internal reasons onto Stripe's closed reason enum.
func mapReason(reason string) string {
	switch reason {
	case "duplicate", "fraudulent", "requested_by_customer":
		return reason
	default:
		return "requested_by_customer"
	}
}
