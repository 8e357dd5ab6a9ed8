package balance

import (
	"context"
	"time"

	"refunds-backend/internal/gateway"
)

// =====================================================
// MERCHANT BALANCE ADAPTER
// =====================================================

// Ledger credits refund amounts against the merchant's running balance.
// Implemented by the merchant repository; the adapter stays decoupled
// from the domain packages.
type Ledger interface {
	// CreditBalance applies a balance credit and returns the ledger
	// entry ID. It must be idempotent on reference.
	CreditBalance(ctx context.Context, merchantID string, amount int64, currency, reference string) (string, error)
}

// Adapter settles refunds internally by crediting the merchant balance.
// No external call is made, so results are immediate and final.
type Adapter struct {
	ledger Ledger
}

func NewAdapter(ledger Ledger) *Adapter {
	return &Adapter{ledger: ledger}
}

func (a *Adapter) Type() string {
	return gateway.TypeBalance
}

func (a *Adapter) ProcessRefund(
	ctx context.Context,
	req gateway.RefundRequest,
	_ gateway.Credentials,
) (*gateway.RefundResult, error) {
	entryID, err := a.ledger.CreditBalance(ctx, req.MerchantID, req.Amount, req.Currency, req.IdempotencyKey)
	if err != nil {
		return nil, gateway.NewError(gateway.TypeBalance, gateway.CategoryServer,
			"LEDGER_ERROR", "balance credit failed", err)
	}

	now := time.Now().UTC()
	return &gateway.RefundResult{
		Success:                 true,
		GatewayRefundID:         entryID,
		Status:                  gateway.StatusCompleted,
		ProcessedAmount:         req.Amount,
		ProcessingDate:          &now,
		EstimatedSettlementDate: &now,
	}, nil
}

// CheckRefundStatus reports COMPLETED: balance credits settle in the
// same transaction that records them.
func (a *Adapter) CheckRefundStatus(
	ctx context.Context,
	gatewayRefundID string,
	_ gateway.Credentials,
) (*gateway.RefundResult, error) {
	now := time.Now().UTC()
	return &gateway.RefundResult{
		Success:         true,
		GatewayRefundID: gatewayRefundID,
		Status:          gateway.StatusCompleted,
		ProcessingDate:  &now,
	}, nil
}

// Balance refunds never receive webhooks.
func (a *Adapter) ValidateWebhookSignature([]byte, string, string) bool {
	return false
}

func (a *Adapter) ParseWebhookEvent([]byte) ([]gateway.NormalizedEvent, error) {
	return nil, nil
}
