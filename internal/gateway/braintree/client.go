package braintree

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"refunds-backend/internal/gateway"
	"refunds-backend/internal/infrastructure/metrics"
)

// =====================================================
// BRAINTREE CLIENT IMPLEMENTATION
// =====================================================

type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new Braintree adapter.
func NewClient(config *Config) gateway.Adapter {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Type() string {
	return gateway.TypeBraintree
}

// =====================================================
// PROCESS REFUND
// =====================================================

func (c *Client) ProcessRefund(
	ctx context.Context,
	req gateway.RefundRequest,
	creds gateway.Credentials,
) (*gateway.RefundResult, error) {
	// GraphQL amounts are decimal strings in major units.
	major := decimal.NewFromInt(req.Amount).Shift(-2)

	gqlReq := graphQLRequest{
		Query: refundMutation,
		Variables: map[string]interface{}{
			"input": map[string]interface{}{
				"transactionId": req.GatewayTransactionID,
				"refund": map[string]interface{}{
					"amount":  major.StringFixed(2),
					"orderId": req.RefundID,
				},
			},
		},
	}

	bodyBytes, err := c.doGraphQL(ctx, gqlReq, creds, req.IdempotencyKey, "process_refund")
	if err != nil {
		return nil, err
	}

	var resp refundMutationResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, gateway.NewError(gateway.TypeBraintree, gateway.CategoryUnknown,
			"MALFORMED_RESPONSE", "unparseable refund response", err)
	}
	if len(resp.Errors) > 0 {
		return nil, classifyGraphQLError(resp.Errors[0])
	}

	var raw map[string]interface{}
	json.Unmarshal(bodyBytes, &raw)

	return toResult(&resp.Data.RefundTransaction.Refund, raw), nil
}

// =====================================================
// CHECK REFUND STATUS
// =====================================================

func (c *Client) CheckRefundStatus(
	ctx context.Context,
	gatewayRefundID string,
	creds gateway.Credentials,
) (*gateway.RefundResult, error) {
	gqlReq := graphQLRequest{
		Query:     refundQuery,
		Variables: map[string]interface{}{"id": gatewayRefundID},
	}

	bodyBytes, err := c.doGraphQL(ctx, gqlReq, creds, "", "check_status")
	if err != nil {
		return nil, err
	}

	var resp refundQueryResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, gateway.NewError(gateway.TypeBraintree, gateway.CategoryUnknown,
			"MALFORMED_RESPONSE", "unparseable status response", err)
	}
	if len(resp.Errors) > 0 {
		return nil, classifyGraphQLError(resp.Errors[0])
	}

	var raw map[string]interface{}
	json.Unmarshal(bodyBytes, &raw)

	return toResult(&resp.Data.Node, raw), nil
}

func (c *Client) doGraphQL(
	ctx context.Context,
	gqlReq graphQLRequest,
	creds gateway.Credentials,
	idempotencyKey string,
	operation string,
) ([]byte, error) {
	payload, err := json.Marshal(gqlReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode GraphQL request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.GraphQLURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(creds.APIKey + ":" + creds.APISecret))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Basic "+auth)
	httpReq.Header.Set("Braintree-Version", "2023-06-01")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	metrics.GatewayLatency.WithLabelValues(gateway.TypeBraintree, operation).
		Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, gateway.ClassifyTransport(gateway.TypeBraintree, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gateway.ClassifyTransport(gateway.TypeBraintree, err)
	}

	// GraphQL errors ride on 200; only transport-level statuses matter here.
	if resp.StatusCode >= 400 {
		return nil, gateway.ClassifyHTTPStatus(gateway.TypeBraintree, resp.StatusCode, string(bodyBytes))
	}

	return bodyBytes, nil
}

func classifyGraphQLError(gqlErr graphQLError) error {
	code := gqlErr.Extensions.LegacyCode
	if code == "" {
		code = gqlErr.Extensions.ErrorClass
	}

	switch gqlErr.Extensions.ErrorType {
	case "authorization":
		return gateway.NewError(gateway.TypeBraintree, gateway.CategoryAuthentication,
			code, gqlErr.Message, nil)
	case "user_error", "validation":
		return gateway.NewError(gateway.TypeBraintree, gateway.CategoryValidation,
			code, gqlErr.Message, nil)
	case "internal", "service_availability":
		return gateway.NewError(gateway.TypeBraintree, gateway.CategoryServer,
			code, gqlErr.Message, nil)
	default:
		return gateway.NewError(gateway.TypeBraintree, gateway.CategoryUnknown,
			code, gqlErr.Message, nil)
	}
}

func toResult(refund *refundNode, raw map[string]interface{}) *gateway.RefundResult {
	status := gateway.StatusUnknown
	if mapped, ok := statusMap[refund.Status]; ok {
		status = gateway.Status(mapped)
	}

	var amountMinor int64
	if parsed, err := decimal.NewFromString(refund.Amount.Value); err == nil {
		amountMinor = parsed.Shift(2).IntPart()
	}

	result := &gateway.RefundResult{
		Success:             status != gateway.StatusFailed,
		GatewayRefundID:     refund.ID,
		Status:              status,
		ProcessedAmount:     amountMinor,
		GatewayResponseCode: refund.Status,
		RawResponse:         raw,
	}

	if created, err := time.Parse(time.RFC3339, refund.CreatedAt); err == nil {
		createdUTC := created.UTC()
		result.ProcessingDate = &createdUTC
		if status == gateway.StatusPending || status == gateway.StatusProcessing {
			settlement := createdUTC.AddDate(0, 0, 7)
			result.EstimatedSettlementDate = &settlement
		}
	}

	if status == gateway.StatusFailed {
		result.ErrorCode = refund.Status
		result.ErrorMessage = "refund " + refund.Status
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
	return VerifySignature(payload, signature, secret)
}

func (c *Client) ParseWebhookEvent(payload []byte) ([]gateway.NormalizedEvent, error) {
	var notification webhookNotification
	if err := json.Unmarshal(payload, &notification); err != nil {
		return nil, fmt.Errorf("failed to parse Braintree webhook: %w", err)
	}

	var status gateway.Status
	switch notification.Kind {
	case "refund_settled":
		status = gateway.StatusCompleted
	case "refund_failed":
		status = gateway.StatusFailed
	default:
		return nil, nil
	}

	occurred, err := time.Parse(time.RFC3339, notification.Timestamp)
	if err != nil {
		occurred = time.Now().UTC()
	}

	var raw map[string]interface{}
	json.Unmarshal(payload, &raw)

	return []gateway.NormalizedEvent{{
		EventID:         notification.ID,
		GatewayRefundID: notification.Subject.Refund.ID,
		Status:          status,
		OccurredAt:      occurred.UTC(),
		Raw:             raw,
	}}, nil
}
