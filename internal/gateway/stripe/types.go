package stripe

// =====================================================
// STRIPE WIRE TYPES
// =====================================================

// refundResponse mirrors the relevant subset of Stripe's refund object.
type refundResponse struct {
	ID            string `json:"id"`
	Object        string `json:"object"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Charge        string `json:"charge"`
	Status        string `json:"status"` // pending, requires_action, succeeded, failed, canceled
	Created       int64  `json:"created"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Param   string `json:"param"`
	} `json:"error"`
}

// webhookEvent mirrors Stripe's event envelope.
type webhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // e.g. charge.refund.updated
	Created int64  `json:"created"`
	Data    struct {
		Object refundResponse `json:"object"`
	} `json:"data"`
}

// Stripe refund status -> normalized status. Anything unmapped is
// reported UNKNOWN and re-checked rather than silently bucketed.
var statusMap = map[string]string{
	"pending":         "PENDING",
	"requires_action": "PROCESSING",
	"succeeded":       "COMPLETED",
	"failed":          "FAILED",
	"canceled":        "FAILED",
}

// Stripe error codes that identify terminal validation failures.
var terminalErrorCodes = map[string]bool{
	"charge_already_refunded":        true,
	"amount_too_large":               true,
	"balance_insufficient":           false, // platform balance, retryable
	"resource_missing":               true,
	"parameter_invalid_integer":      true,
	"refund_disallowed_for_partner":  true,
	"charge_disputed":                true,
	"testmode_charges_only":          true,
	"api_key_expired":                true,
	"expired_or_canceled_card":       true,
	"insufficient_funds_for_reversal": true,
}
