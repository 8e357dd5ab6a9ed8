package model

import (
	"errors"
	"net/http"
)

// =====================================================
// ERROR CODE CONSTANTS
// =====================================================
const (
	ErrCodeApprovalNotFound      = "APR001"
	ErrCodeAlreadyDecided        = "APR002"
	ErrCodeInsufficientAuthority = "APR003"
	ErrCodeVersionConflict       = "APR004"
)

var (
	ErrApprovalNotFound      = errors.New("approval request not found")
	ErrAlreadyDecided        = errors.New("approval request already decided")
	ErrInsufficientAuthority = errors.New("approver authority below required level")
	ErrVersionConflict       = errors.New("approval request was modified concurrently")
)

// GetErrorResponse maps a domain error to HTTP status, message and code.
func GetErrorResponse(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrApprovalNotFound):
		return http.StatusNotFound, "Approval request not found", ErrCodeApprovalNotFound
	case errors.Is(err, ErrAlreadyDecided):
		return http.StatusConflict, "Approval request already decided", ErrCodeAlreadyDecided
	case errors.Is(err, ErrInsufficientAuthority):
		return http.StatusForbidden, "Approver authority below required level", ErrCodeInsufficientAuthority
	case errors.Is(err, ErrVersionConflict):
		return http.StatusConflict, "Approval request was modified concurrently, retry", ErrCodeVersionConflict
	default:
		return http.StatusInternalServerError, "Internal error", "INTERNAL"
	}
}
