package ach

import (
	"context"
	"time"

	"refunds-backend/internal/gateway"
)

// =====================================================
// ACH PAYOUT ADAPTER
// =====================================================

// Payout is one submitted ACH transfer.
type Payout struct {
	ID            string
	Status        string // SUBMITTED, IN_TRANSIT, SETTLED, RETURNED
	ReturnCode    string // R01, R02... when RETURNED
	SubmittedAt   time.Time
	EffectiveDate time.Time
}

// Originator submits payout entries to the ACH processor and looks up
// their settlement state. Implemented over the bank file interface by
// the bankaccount domain.
type Originator interface {
	// SubmitPayout originates a credit to the given verified account.
	// Must be idempotent on reference.
	SubmitPayout(ctx context.Context, bankAccountID string, amount int64, currency, reference string) (*Payout, error)
	// LookupPayout returns the current state of a submitted payout.
	LookupPayout(ctx context.Context, payoutID string) (*Payout, error)
}

// Adapter settles refunds by originating an ACH credit to the
// merchant's customer. Settlement takes 1-3 banking days, so results
// stay PENDING until the return window passes.
type Adapter struct {
	originator Originator
}

func NewAdapter(originator Originator) *Adapter {
	return &Adapter{originator: originator}
}

func (a *Adapter) Type() string {
	return gateway.TypeACH
}

func (a *Adapter) ProcessRefund(
	ctx context.Context,
	req gateway.RefundRequest,
	_ gateway.Credentials,
) (*gateway.RefundResult, error) {
	if req.BankAccountID == "" {
		return nil, gateway.NewError(gateway.TypeACH, gateway.CategoryValidation,
			"BANK_ACCOUNT_REQUIRED", "ACH refunds require a verified bank account", nil)
	}

	payout, err := a.originator.SubmitPayout(ctx, req.BankAccountID, req.Amount, req.Currency, req.IdempotencyKey)
	if err != nil {
		return nil, gateway.NewError(gateway.TypeACH, gateway.CategoryServer,
			"ORIGINATION_ERROR", "payout origination failed", err)
	}

	return a.toResult(payout, req.Amount), nil
}

func (a *Adapter) CheckRefundStatus(
	ctx context.Context,
	gatewayRefundID string,
	_ gateway.Credentials,
) (*gateway.RefundResult, error) {
	payout, err := a.originator.LookupPayout(ctx, gatewayRefundID)
	if err != nil {
		return nil, gateway.NewError(gateway.TypeACH, gateway.CategoryServer,
			"LOOKUP_ERROR", "payout lookup failed", err)
	}
	return a.toResult(payout, 0), nil
}

func (a *Adapter) toResult(payout *Payout, amount int64) *gateway.RefundResult {
	status := gateway.StatusUnknown
	switch payout.Status {
	case "SUBMITTED":
		status = gateway.StatusProcessing
	case "IN_TRANSIT":
		status = gateway.StatusPending
	case "SETTLED":
		status = gateway.StatusCompleted
	case "RETURNED":
		status = gateway.StatusFailed
	}

	submitted := payout.SubmittedAt.UTC()
	effective := payout.EffectiveDate.UTC()
	result := &gateway.RefundResult{
		Success:                 status != gateway.StatusFailed,
		GatewayRefundID:         payout.ID,
		Status:                  status,
		ProcessedAmount:         amount,
		ProcessingDate:          &submitted,
		EstimatedSettlementDate: &effective,
		GatewayResponseCode:     payout.Status,
	}

	if status == gateway.StatusFailed {
		result.ErrorCode = payout.ReturnCode
		result.ErrorMessage = "ACH return " + payout.ReturnCode
	}

	return result
}

// ACH returns arrive through the file interface, not webhooks.
func (a *Adapter) ValidateWebhookSignature([]byte, string, string) bool {
	return false
}

func (a *Adapter) ParseWebhookEvent([]byte) ([]gateway.NormalizedEvent, error) {
	return nil, nil
}
