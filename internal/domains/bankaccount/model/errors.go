package model

import (
	"errors"
	"net/http"
)

// =====================================================
// ERROR CODE CONSTANTS
// =====================================================
const (
	ErrCodeAccountNotFound    = "BNK001"
	ErrCodeAccountNotVerified = "BNK002"
	ErrCodeAccountClosed      = "BNK003"
	ErrCodeInvalidAccount     = "BNK004"
	ErrCodeVerificationState  = "BNK005"
)

var (
	ErrAccountNotFound    = errors.New("bank account not found")
	ErrAccountNotVerified = errors.New("bank account is not verified")
	ErrAccountClosed      = errors.New("bank account is closed")
	ErrInvalidTransition  = errors.New("invalid verification state transition")
)

// GetErrorResponse maps a domain error to HTTP status, message and code.
func GetErrorResponse(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return http.StatusNotFound, "Bank account not found", ErrCodeAccountNotFound
	case errors.Is(err, ErrAccountNotVerified):
		return http.StatusUnprocessableEntity, "Bank account is not verified", ErrCodeAccountNotVerified
	case errors.Is(err, ErrAccountClosed):
		return http.StatusUnprocessableEntity, "Bank account is closed", ErrCodeAccountClosed
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict, "Invalid verification state transition", ErrCodeVerificationState
	default:
		return http.StatusUnprocessableEntity, err.Error(), ErrCodeInvalidAccount
	}
}
