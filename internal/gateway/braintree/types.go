package braintree

// =====================================================
// BRAINTREE WIRE TYPES
// =====================================================

// graphQLRequest is the request envelope for the single GraphQL endpoint.
type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		ErrorType  string `json:"errorType"` // user_error, validation, authorization, internal
		ErrorClass string `json:"errorClass"`
		LegacyCode string `json:"legacyCode"`
	} `json:"extensions"`
}

// refundNode is the refund payload shared by the mutation and the query.
type refundNode struct {
	ID     string `json:"id"`
	Status string `json:"status"` // SUBMITTED_FOR_SETTLEMENT, SETTLING, SETTLED, FAILED, VOIDED
	Amount struct {
		Value        string `json:"value"`
		CurrencyCode string `json:"currencyCode"`
	} `json:"amount"`
	CreatedAt string `json:"createdAt"`
}

type refundMutationResponse struct {
	Data struct {
		RefundTransaction struct {
			Refund refundNode `json:"refund"`
		} `json:"refundTransaction"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type refundQueryResponse struct {
	Data struct {
		Node refundNode `json:"node"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// webhookNotification is the decoded webhook body.
type webhookNotification struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"` // refund_settled, refund_failed
	Timestamp string `json:"timestamp"`
	Subject   struct {
		Refund refundNode `json:"refund"`
	} `json:"subject"`
}

// Braintree refund status -> normalized status.
var statusMap = map[string]string{
	"SUBMITTED_FOR_SETTLEMENT": "PROCESSING",
	"SETTLEMENT_PENDING":       "PENDING",
	"SETTLING":                 "PENDING",
	"SETTLED":                  "COMPLETED",
	"FAILED":                   "FAILED",
	"VOIDED":                   "FAILED",
}

const refundMutation = `mutation RefundTransaction($input: RefundTransactionInput!) {
  refundTransaction(input: $input) {
    refund { id status amount { value currencyCode } createdAt }
  }
}`

const refundQuery = `query RefundStatus($id: ID!) {
  node(id: $id) {
    ... on Refund { id status amount { value currencyCode } createdAt }
  }
}`
