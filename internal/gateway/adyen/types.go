package adyen

// =====================================================
// ADYEN WIRE TYPES
// =====================================================

type amount struct {
	Currency string `json:"currency"`
	Value    int64  `json:"value"`
}

// refundRequest is the /payments/{ref}/refunds body.
type refundRequest struct {
	MerchantAccount string `json:"merchantAccount"`
	Amount          amount `json:"amount"`
	Reference       string `json:"reference"`
}

// refundResponse is Adyen's synchronous acknowledgement. The actual
// outcome arrives later through the notification webhook.
type refundResponse struct {
	MerchantAccount     string `json:"merchantAccount"`
	PspReference        string `json:"pspReference"`
	PaymentPspReference string `json:"paymentPspReference"`
	Reference           string `json:"reference"`
	Status              string `json:"status"` // always "received" on success
	Amount              amount `json:"amount"`
}

type errorResponse struct {
	Status    int    `json:"status"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	ErrorType string `json:"errorType"` // security, validation, internal, configuration
}

// notificationEnvelope is Adyen's webhook batch format. One HTTP call
// can carry several notification items.
type notificationEnvelope struct {
	Live              string `json:"live"`
	NotificationItems []struct {
		NotificationRequestItem notificationItem `json:"NotificationRequestItem"`
	} `json:"notificationItems"`
}

type notificationItem struct {
	EventCode           string            `json:"eventCode"` // REFUND, REFUND_FAILED
	PspReference        string            `json:"pspReference"`
	OriginalReference   string            `json:"originalReference"`
	MerchantAccountCode string            `json:"merchantAccountCode"`
	MerchantReference   string            `json:"merchantReference"`
	Success             string            `json:"success"` // "true" / "false"
	EventDate           string            `json:"eventDate"`
	Amount              amount            `json:"amount"`
	Reason              string            `json:"reason"`
	AdditionalData      map[string]string `json:"additionalData"`
}
