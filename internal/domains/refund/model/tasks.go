package model

// =====================================================
// TASK PAYLOADS
// =====================================================

// ProcessRefundPayload drives the gateway dispatch task.
type ProcessRefundPayload struct {
	RefundID      string `json:"refund_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// CheckGatewayPayload drives the status poll task.
type CheckGatewayPayload struct {
	RefundID      string `json:"refund_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NotifyPayload drives the notification task.
type NotifyPayload struct {
	Event         string                 `json:"event"`
	RefundID      string                 `json:"refund_id"`
	MerchantID    string                 `json:"merchant_id"`
	Data          map[string]interface{} `json:"data,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}
