package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// =====================================================
// GATEWAY ERROR CLASSIFICATION
// =====================================================

// Category buckets vendor errors into retryability classes.
type Category string

const (
	CategoryConnection     Category = "CONNECTION"
	CategoryTimeout        Category = "TIMEOUT"
	CategoryAuthentication Category = "AUTHENTICATION"
	CategoryValidation     Category = "VALIDATION"
	CategoryRejection      Category = "REJECTION" // rate-limit or policy
	CategoryServer         Category = "SERVER"
	CategoryUnknown        Category = "UNKNOWN"
)

// Error is a classified gateway failure.
type Error struct {
	Gateway  string
	Category Category
	Code     string
	Message  string
	// RateLimited distinguishes retryable REJECTION (429) from policy
	// rejections, which are terminal.
	RateLimited bool
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s/%s] %s: %s", e.Gateway, e.Category, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the worker should re-enqueue.
// CONNECTION/TIMEOUT/SERVER and rate-limit REJECTION retry;
// AUTHENTICATION/VALIDATION and policy REJECTION are terminal.
func (e *Error) Retryable() bool {
	switch e.Category {
	case CategoryConnection, CategoryTimeout, CategoryServer:
		return true
	case CategoryRejection:
		return e.RateLimited
	default:
		return false
	}
}

// NewError builds a classified error.
func NewError(gatewayType string, category Category, code, message string, err error) *Error {
	return &Error{
		Gateway:  gatewayType,
		Category: category,
		Code:     code,
		Message:  message,
		Err:      err,
	}
}

// ClassifyTransport maps transport-level failures of an HTTP call.
func ClassifyTransport(gatewayType string, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(gatewayType, CategoryTimeout, "TIMEOUT", "gateway call timed out", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewError(gatewayType, CategoryTimeout, "TIMEOUT", "gateway call timed out", err)
	default:
		return NewError(gatewayType, CategoryConnection, "CONNECTION", "gateway unreachable", err)
	}
}

// ClassifyHTTPStatus maps a non-2xx response status.
func ClassifyHTTPStatus(gatewayType string, status int, body string) *Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(gatewayType, CategoryAuthentication, fmt.Sprintf("HTTP_%d", status), body, nil)
	case status == http.StatusTooManyRequests:
		e := NewError(gatewayType, CategoryRejection, "RATE_LIMITED", body, nil)
		e.RateLimited = true
		return e
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return NewError(gatewayType, CategoryValidation, fmt.Sprintf("HTTP_%d", status), body, nil)
	case status >= 500:
		return NewError(gatewayType, CategoryServer, fmt.Sprintf("HTTP_%d", status), body, nil)
	default:
		return NewError(gatewayType, CategoryUnknown, fmt.Sprintf("HTTP_%d", status), body, nil)
	}
}

// IsRetryable inspects any error for gateway retryability.
func IsRetryable(err error) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Retryable()
	}
	return false
}
