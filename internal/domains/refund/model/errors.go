package model

import (
	"errors"
	"fmt"
	"net/http"
)

// =====================================================
// ERROR CODE CONSTANTS
// =====================================================
const (
	ErrCodeRefundNotFound      = "REF001"
	ErrCodeInvalidTransition   = "REF002"
	ErrCodeValidationFailed    = "REF003"
	ErrCodeIdempotencyConflict = "REF004"
	ErrCodeVersionConflict     = "REF005"
	ErrCodeUpdateNotPermitted  = "REF006"
	ErrCodeCancelNotPermitted  = "REF007"
	ErrCodeLockTimeout         = "REF008"
	ErrCodeRetriesExhausted    = "REF009"
	ErrCodeGatewayNotSupported = "REF010"
)

// Compliance failure codes surfaced inside FieldError.
const (
	CodeMaxRefundAmountExceeded  = "MAX_REFUND_AMOUNT_EXCEEDED"
	CodeBankAccountNotVerified   = "BANK_ACCOUNT_NOT_VERIFIED"
	CodeRefundWindowExpired      = "REFUND_WINDOW_EXPIRED"
	CodeTransactionNotFound      = "TRANSACTION_NOT_FOUND"
	CodeTransactionNotRefundable = "TRANSACTION_NOT_REFUNDABLE"
	CodeInsufficientBalance      = "INSUFFICIENT_BALANCE"
	CodeMethodNotAllowed         = "METHOD_NOT_ALLOWED"
	CodeReasonCodeRequired       = "REASON_CODE_REQUIRED"
	CodeRefundCapExceeded        = "REFUND_CAP_EXCEEDED"
	CodeCurrencyMismatch         = "CURRENCY_MISMATCH"
)

var (
	ErrRefundNotFound     = errors.New("refund not found")
	ErrVersionConflict    = errors.New("refund was modified concurrently")
	ErrUpdateNotPermitted = errors.New("refund state does not permit updates")
	ErrCancelNotPermitted = errors.New("refund state does not permit cancellation")
)

// =====================================================
// TYPED ERRORS
// =====================================================

// InvalidStateTransitionError reports an illegal lifecycle edge.
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("INVALID_STATE_TRANSITION: %s -> %s", e.From, e.To)
}

func NewInvalidStateTransition(from, to string) *InvalidStateTransitionError {
	return &InvalidStateTransitionError{From: from, To: to}
}

// FieldError is one compliance or schema failure tied to a field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationError carries every FieldError collected in the failing
// compliance layer.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("validation failed: %s (%s)", e.Fields[0].Message, e.Fields[0].Code)
	}
	return fmt.Sprintf("validation failed with %d field errors", len(e.Fields))
}

func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// IdempotencyConflictError reports a create that reused an idempotency
// key with a different payload.
type IdempotencyConflictError struct {
	Key string
}

func (e *IdempotencyConflictError) Error() string {
	return fmt.Sprintf("idempotency key %q already used with a different payload", e.Key)
}

// GetErrorResponse maps a domain error to HTTP status, message and code.
func GetErrorResponse(err error) (int, string, string) {
	var transitionErr *InvalidStateTransitionError
	var validationErr *ValidationError
	var idemErr *IdempotencyConflictError

	switch {
	case errors.Is(err, ErrRefundNotFound):
		return http.StatusNotFound, "Refund not found", ErrCodeRefundNotFound
	case errors.As(err, &transitionErr):
		return http.StatusConflict, transitionErr.Error(), ErrCodeInvalidTransition
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, validationErr.Error(), ErrCodeValidationFailed
	case errors.As(err, &idemErr):
		return http.StatusConflict, idemErr.Error(), ErrCodeIdempotencyConflict
	case errors.Is(err, ErrVersionConflict):
		return http.StatusConflict, "Refund was modified concurrently, retry", ErrCodeVersionConflict
	case errors.Is(err, ErrUpdateNotPermitted):
		return http.StatusUnprocessableEntity, "Refund state does not permit updates", ErrCodeUpdateNotPermitted
	case errors.Is(err, ErrCancelNotPermitted):
		return http.StatusUnprocessableEntity, "Refund state does not permit cancellation", ErrCodeCancelNotPermitted
	default:
		return http.StatusInternalServerError, "Internal error", "INTERNAL"
	}
}
