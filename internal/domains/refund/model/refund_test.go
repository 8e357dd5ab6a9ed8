package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRefund(status string) *RefundRequest {
	return &RefundRequest{
		ID:             "r-1",
		TransactionID:  "t-1",
		MerchantID:     "M1",
		Amount:         2500,
		Currency:       "USD",
		RefundMethod:   MethodOriginalPayment,
		Status:         status,
		ApprovalStatus: ApprovalNone,
		Version:        1,
	}
}

func TestTransitionHappyPath(t *testing.T) {
	r := newRefund(StatusDraft)

	require.NoError(t, r.Transition(StatusSubmitted, "merchant:M1", ""))
	require.NoError(t, r.Transition(StatusProcessing, "worker", ""))
	require.NoError(t, r.Transition(StatusCompleted, "gateway:STRIPE", ""))

	assert.Equal(t, StatusCompleted, r.Status)
	assert.NotNil(t, r.ProcessedAt)
	assert.NotNil(t, r.CompletedAt)
	assert.Len(t, r.StatusHistory, 3)
}

func TestTransitionIllegalEdgeMutatesNothing(t *testing.T) {
	r := newRefund(StatusCompleted)

	err := r.Transition(StatusProcessing, "worker", "")

	var transitionErr *InvalidStateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, StatusCompleted, transitionErr.From)
	assert.Equal(t, StatusProcessing, transitionErr.To)
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Empty(t, r.StatusHistory)
}

func TestTerminalStatesAbsorb(t *testing.T) {
	for _, status := range []string{
		StatusCompleted, StatusFailed, StatusRejected, StatusCanceled, StatusValidationFailed,
	} {
		assert.True(t, IsTerminalStatus(status), status)
		assert.Empty(t, allowedTransitions[status], "%s must have no outgoing edges", status)
	}
	assert.False(t, IsTerminalStatus(StatusGatewayError))
	assert.False(t, IsTerminalStatus(StatusGatewayPending))
}

func TestGatewayErrorRecovery(t *testing.T) {
	// GATEWAY_ERROR re-enters via PROCESSING; there is no direct edge to
	// COMPLETED.
	assert.True(t, CanTransition(StatusGatewayError, StatusProcessing))
	assert.True(t, CanTransition(StatusGatewayError, StatusFailed))
	assert.False(t, CanTransition(StatusGatewayError, StatusCompleted))
}

func TestHistoryTimestampsStrictlyIncrease(t *testing.T) {
	r := newRefund(StatusDraft)

	require.NoError(t, r.Transition(StatusSubmitted, "merchant:M1", ""))
	require.NoError(t, r.Transition(StatusProcessing, "worker", ""))
	require.NoError(t, r.Transition(StatusGatewayError, "worker", "timeout"))
	require.NoError(t, r.Transition(StatusProcessing, "worker", "retry"))

	for i := 1; i < len(r.StatusHistory); i++ {
		assert.True(t, r.StatusHistory[i].ChangedAt.After(r.StatusHistory[i-1].ChangedAt),
			"entry %d must be after entry %d", i, i-1)
	}
}

func TestCanBeUpdated(t *testing.T) {
	assert.True(t, newRefund(StatusDraft).CanBeUpdated())
	assert.True(t, newRefund(StatusSubmitted).CanBeUpdated())
	assert.True(t, newRefund(StatusPendingApproval).CanBeUpdated())
	assert.False(t, newRefund(StatusProcessing).CanBeUpdated())
	assert.False(t, newRefund(StatusCompleted).CanBeUpdated())
}

func TestCanBeCanceled(t *testing.T) {
	assert.True(t, newRefund(StatusSubmitted).CanBeCanceled())
	assert.True(t, newRefund(StatusPendingApproval).CanBeCanceled())
	assert.False(t, newRefund(StatusProcessing).CanBeCanceled())
	assert.False(t, newRefund(StatusCompleted).CanBeCanceled())

	// A gateway reference means money may already be moving.
	withRef := newRefund(StatusSubmitted)
	ref := "re_123"
	withRef.GatewayReference = &ref
	assert.False(t, withRef.CanBeCanceled())
}

func TestRecordProcessingErrorKeepsAttempt(t *testing.T) {
	r := newRefund(StatusProcessing)
	r.RetryCount = 2

	r.RecordProcessingError("SERVER", "HTTP_503", "service unavailable", true)

	require.Len(t, r.ProcessingErrors, 1)
	assert.Equal(t, 2, r.ProcessingErrors[0].Attempt)
	assert.True(t, r.ProcessingErrors[0].Retryable)
}
