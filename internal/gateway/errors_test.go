package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorRetryable(t *testing.T) {
	tests := []struct {
		name        string
		category    Category
		rateLimited bool
		want        bool
	}{
		{"connection errors retry", CategoryConnection, false, true},
		{"timeouts retry", CategoryTimeout, false, true},
		{"server errors retry", CategoryServer, false, true},
		{"rate limits retry", CategoryRejection, true, true},
		{"policy rejections are terminal", CategoryRejection, false, false},
		{"auth errors are terminal", CategoryAuthentication, false, false},
		{"validation errors are terminal", CategoryValidation, false, false},
		{"unknown errors are terminal", CategoryUnknown, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewError("STRIPE", tt.category, "CODE", "message", nil)
			e.RateLimited = tt.rateLimited
			assert.Equal(t, tt.want, e.Retryable())
		})
	}
}

func TestClassifyTransport(t *testing.T) {
	deadlineErr := fmt.Errorf("call failed: %w", context.DeadlineExceeded)
	e := ClassifyTransport("ADYEN", deadlineErr)
	assert.Equal(t, CategoryTimeout, e.Category)
	assert.True(t, e.Retryable())

	connErr := errors.New("connection refused")
	e = ClassifyTransport("ADYEN", connErr)
	assert.Equal(t, CategoryConnection, e.Category)
	assert.True(t, e.Retryable())
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status       int
		wantCategory Category
		wantRetry    bool
	}{
		{http.StatusUnauthorized, CategoryAuthentication, false},
		{http.StatusForbidden, CategoryAuthentication, false},
		{http.StatusTooManyRequests, CategoryRejection, true},
		{http.StatusBadRequest, CategoryValidation, false},
		{http.StatusUnprocessableEntity, CategoryValidation, false},
		{http.StatusInternalServerError, CategoryServer, true},
		{http.StatusBadGateway, CategoryServer, true},
	}

	for _, tt := range tests {
		e := ClassifyHTTPStatus("BRAINTREE", tt.status, "body")
		assert.Equal(t, tt.wantCategory, e.Category, "status %d", tt.status)
		assert.Equal(t, tt.wantRetry, e.Retryable(), "status %d", tt.status)
	}
}

func TestIsRetryable(t *testing.T) {
	wrapped := fmt.Errorf("processing: %w",
		NewError("STRIPE", CategoryServer, "HTTP_503", "unavailable", nil))
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("tcp reset")
	e := NewError("STRIPE", CategoryConnection, "CONNECTION", "unreachable", cause)
	assert.ErrorIs(t, e, cause)
}
