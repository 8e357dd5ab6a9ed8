package gateway

import (
	"context"
	"time"
)

// =====================================================
// GATEWAY ADAPTER CONTRACT
// =====================================================

// Status is the normalized refund status across gateways.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusPending    Status = "PENDING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	// StatusUnknown means the gateway reported something we cannot map.
	// The worker schedules a follow-up status check instead of guessing.
	StatusUnknown Status = "UNKNOWN"
)

// Gateway type identifiers.
const (
	TypeStripe    = "STRIPE"
	TypeAdyen     = "ADYEN"
	TypeBraintree = "BRAINTREE"
	TypeBalance   = "BALANCE"
	TypeACH       = "ACH"
)

// RefundRequest is the adapter-facing refund instruction.
// Amount is integer minor units.
type RefundRequest struct {
	RefundID             string
	MerchantID           string
	GatewayTransactionID string
	Amount               int64
	Currency             string
	Reason               string
	// IdempotencyKey dedupes retried calls on the gateway side.
	IdempotencyKey string
	// BankAccountID set only for the ACH path.
	BankAccountID string
}

// RefundResult is the normalized outcome of a gateway call.
type RefundResult struct {
	Success                 bool
	GatewayRefundID         string
	Status                  Status
	ProcessedAmount         int64
	ProcessingDate          *time.Time
	EstimatedSettlementDate *time.Time
	ErrorCode               string
	ErrorMessage            string
	GatewayResponseCode     string
	Retryable               bool
	RawResponse             map[string]interface{}
}

// NormalizedEvent is one webhook event after parsing.
type NormalizedEvent struct {
	// EventID is the gateway's event identifier, recorded for replay
	// protection: duplicates are acknowledged, not reprocessed.
	EventID         string
	GatewayRefundID string
	Status          Status
	OccurredAt      time.Time
	Raw             map[string]interface{}
}

// Credentials are the decrypted per-merchant gateway secrets.
type Credentials struct {
	APIKey          string `json:"api_key"`
	APISecret       string `json:"api_secret,omitempty"`
	MerchantAccount string `json:"merchant_account,omitempty"`
	WebhookSecret   string `json:"webhook_secret,omitempty"`
}

// Adapter is implemented once per gateway type.
type Adapter interface {
	// Type returns the gateway type identifier.
	Type() string

	// ProcessRefund issues the refund against the gateway.
	ProcessRefund(ctx context.Context, req RefundRequest, creds Credentials) (*RefundResult, error)

	// CheckRefundStatus polls the gateway for a previously issued refund.
	CheckRefundStatus(ctx context.Context, gatewayRefundID string, creds Credentials) (*RefundResult, error)

	// ValidateWebhookSignature verifies a webhook over the raw body bytes.
	ValidateWebhookSignature(payload []byte, signature string, secret string) bool

	// ParseWebhookEvent parses a verified webhook body into events.
	ParseWebhookEvent(payload []byte) ([]NormalizedEvent, error)
}
