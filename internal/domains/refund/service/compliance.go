package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	bankmodel "refunds-backend/internal/domains/bankaccount/model"
	bankrepo "refunds-backend/internal/domains/bankaccount/repository"
	merchantrepo "refunds-backend/internal/domains/merchant/repository"
	parammodel "refunds-backend/internal/domains/parameter/model"
	paramservice "refunds-backend/internal/domains/parameter/service"
	"refunds-backend/internal/domains/refund/model"
	txnmodel "refunds-backend/internal/domains/transaction/model"
	txnrepo "refunds-backend/internal/domains/transaction/repository"
	"refunds-backend/internal/gateway"
)

// =====================================================
// COMPLIANCE CHECKER
// =====================================================
//
// Validation runs in layers. A failing layer stops the pipeline, but
// every field error within a layer is collected before surfacing so
// the caller sees the complete picture for that layer.
//
//   1. Schema
//   2. Transaction presence and refund window
//   3. Amount policy against the remaining refundable balance
//   4. Method eligibility
//   5. Parameter-driven rules

type ComplianceChecker struct {
	params       paramservice.Resolver
	transactions txnrepo.TransactionRepository
	merchants    merchantrepo.MerchantRepository
	bankAccounts bankrepo.BankAccountRepository
	gateways     *gateway.Registry
}

func NewComplianceChecker(
	params paramservice.Resolver,
	transactions txnrepo.TransactionRepository,
	merchants merchantrepo.MerchantRepository,
	bankAccounts bankrepo.BankAccountRepository,
	gateways *gateway.Registry,
) *ComplianceChecker {
	return &ComplianceChecker{
		params:       params,
		transactions: transactions,
		merchants:    merchants,
		bankAccounts: bankAccounts,
		gateways:     gateways,
	}
}

// Check validates a refund request and returns the transaction it
// refunds. A *model.ValidationError reports business failures; other
// errors are infrastructure trouble.
func (c *ComplianceChecker) Check(ctx context.Context, merchantID string, req *model.CreateRefundRequest) (*txnmodel.Transaction, error) {
	// Layer 1: schema
	if err := req.Validate(); err != nil {
		return nil, schemaToValidationError(err)
	}

	// Layer 2: transaction presence and refund window
	txn, err := c.checkTransaction(ctx, merchantID, req)
	if err != nil {
		return nil, err
	}

	// Layer 3: amount policy
	if err := c.checkAmount(ctx, merchantID, req, txn); err != nil {
		return nil, err
	}

	// Layer 4: method eligibility
	if err := c.checkMethod(ctx, merchantID, req, txn); err != nil {
		return nil, err
	}

	// Layer 5: parameter-driven rules
	if err := c.checkParameterRules(ctx, merchantID, req); err != nil {
		return nil, err
	}

	return txn, nil
}

func (c *ComplianceChecker) checkTransaction(ctx context.Context, merchantID string, req *model.CreateRefundRequest) (*txnmodel.Transaction, error) {
	txn, err := c.transactions.GetByIDAndMerchant(ctx, req.TransactionID, merchantID)
	if err != nil {
		if errors.Is(err, txnmodel.ErrTransactionNotFound) {
			return nil, model.NewValidationError(model.FieldError{
				Field:   "transaction_id",
				Message: fmt.Sprintf("transaction %s not found for merchant", req.TransactionID),
				Code:    model.CodeTransactionNotFound,
			})
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	var fields []model.FieldError

	if !txn.IsRefundable() {
		fields = append(fields, model.FieldError{
			Field:   "transaction_id",
			Message: fmt.Sprintf("transaction status %s does not accept refunds", txn.Status),
			Code:    model.CodeTransactionNotRefundable,
		})
	}

	maxAge, err := c.resolveInt(ctx, parammodel.ParamMaxRefundAgeDays, merchantID)
	if err != nil {
		return nil, err
	}
	if age := txn.AgeDays(nowUTC()); int64(age) > maxAge {
		fields = append(fields, model.FieldError{
			Field:   "transaction_id",
			Message: fmt.Sprintf("transaction is %d days old, refund window is %d days", age, maxAge),
			Code:    model.CodeRefundWindowExpired,
		})
	}

	if len(fields) > 0 {
		return nil, model.NewValidationError(fields...)
	}
	return txn, nil
}

func (c *ComplianceChecker) checkAmount(ctx context.Context, merchantID string, req *model.CreateRefundRequest, txn *txnmodel.Transaction) error {
	var fields []model.FieldError

	if req.Currency != txn.Currency {
		fields = append(fields, model.FieldError{
			Field:   "currency",
			Message: fmt.Sprintf("refund currency %s does not match transaction currency %s", req.Currency, txn.Currency),
			Code:    model.CodeCurrencyMismatch,
		})
	}

	refunded, err := c.transactions.SumCompletedRefunds(ctx, txn.ID)
	if err != nil {
		return fmt.Errorf("failed to sum completed refunds: %w", err)
	}
	remaining := txn.Amount - refunded
	if req.Amount > remaining {
		fields = append(fields, model.FieldError{
			Field:   "amount",
			Message: fmt.Sprintf("amount %d exceeds remaining refundable %d", req.Amount, remaining),
			Code:    model.CodeMaxRefundAmountExceeded,
		})
	}

	cap, err := c.resolveDecimalMinorUnits(ctx, parammodel.ParamMaxRefundAmount, merchantID)
	if err != nil {
		return err
	}
	if cap > 0 && req.Amount > cap {
		fields = append(fields, model.FieldError{
			Field:   "amount",
			Message: fmt.Sprintf("amount %d exceeds per-refund cap %d", req.Amount, cap),
			Code:    model.CodeRefundCapExceeded,
		})
	}

	if len(fields) > 0 {
		return model.NewValidationError(fields...)
	}
	return nil
}

func (c *ComplianceChecker) checkMethod(ctx context.Context, merchantID string, req *model.CreateRefundRequest, txn *txnmodel.Transaction) error {
	var fields []model.FieldError

	switch req.RefundMethod {
	case model.MethodOriginalPayment:
		if _, err := c.gateways.Get(txn.GatewayType); err != nil {
			fields = append(fields, model.FieldError{
				Field:   "refund_method",
				Message: fmt.Sprintf("gateway %s does not support refunds", txn.GatewayType),
				Code:    model.CodeMethodNotAllowed,
			})
		}

	case model.MethodBalance:
		merchant, err := c.merchants.GetByID(ctx, merchantID)
		if err != nil {
			return fmt.Errorf("failed to load merchant: %w", err)
		}
		if !merchant.HasBalanceFor(req.Amount) {
			fields = append(fields, model.FieldError{
				Field:   "refund_method",
				Message: "merchant balance cannot cover the refund",
				Code:    model.CodeInsufficientBalance,
			})
		}

	case model.MethodOther:
		account, err := c.bankAccounts.GetByIDAndMerchant(ctx, *req.BankAccountID, merchantID)
		if err != nil {
			if errors.Is(err, bankmodel.ErrAccountNotFound) {
				fields = append(fields, model.FieldError{
					Field:   "bank_account_id",
					Message: fmt.Sprintf("bank account %s not found for merchant", *req.BankAccountID),
					Code:    model.CodeBankAccountNotVerified,
				})
				break
			}
			return fmt.Errorf("failed to load bank account: %w", err)
		}
		if !account.IsUsable() {
			fields = append(fields, model.FieldError{
				Field:   "bank_account_id",
				Message: fmt.Sprintf("bank account %s is %s", account.ID, account.VerificationStatus),
				Code:    model.CodeBankAccountNotVerified,
			})
		}
	}

	if len(fields) > 0 {
		return model.NewValidationError(fields...)
	}
	return nil
}

func (c *ComplianceChecker) checkParameterRules(ctx context.Context, merchantID string, req *model.CreateRefundRequest) error {
	var fields []model.FieldError

	reasonRequired, err := c.params.Resolve(ctx, parammodel.ParamReasonCodeRequired, merchantID)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", parammodel.ParamReasonCodeRequired, err)
	}
	if required, _ := reasonRequired.Value.AsBool(); required {
		if req.ReasonCode == nil || *req.ReasonCode == "" {
			fields = append(fields, model.FieldError{
				Field:   "reason_code",
				Message: "merchant policy requires a reason code",
				Code:    model.CodeReasonCodeRequired,
			})
		}
	}

	allowed, err := c.params.Resolve(ctx, parammodel.ParamAllowedRefundMethods, merchantID)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", parammodel.ParamAllowedRefundMethods, err)
	}
	methods, err := allowed.Value.AsStringSlice()
	if err != nil {
		return fmt.Errorf("malformed %s parameter: %w", parammodel.ParamAllowedRefundMethods, err)
	}
	if !contains(methods, req.RefundMethod) {
		fields = append(fields, model.FieldError{
			Field:   "refund_method",
			Message: fmt.Sprintf("method %s not allowed for merchant", req.RefundMethod),
			Code:    model.CodeMethodNotAllowed,
		})
	}

	if len(fields) > 0 {
		return model.NewValidationError(fields...)
	}
	return nil
}

// =====================================================
// HELPERS
// =====================================================

func (c *ComplianceChecker) resolveInt(ctx context.Context, name, merchantID string) (int64, error) {
	resolved, err := c.params.Resolve(ctx, name, merchantID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	value, err := resolved.Value.AsInt64()
	if err != nil {
		return 0, fmt.Errorf("malformed %s parameter: %w", name, err)
	}
	return value, nil
}

func (c *ComplianceChecker) resolveDecimalMinorUnits(ctx context.Context, name, merchantID string) (int64, error) {
	resolved, err := c.params.Resolve(ctx, name, merchantID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	dec, err := resolved.Value.AsDecimal()
	if err != nil {
		return 0, fmt.Errorf("malformed %s parameter: %w", name, err)
	}
	return dec.IntPart(), nil
}

// schemaToValidationError converts ozzo's field map into FieldErrors.
func schemaToValidationError(err error) error {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return model.NewValidationError(model.FieldError{
			Field:   "request",
			Message: err.Error(),
			Code:    "SCHEMA",
		})
	}

	fields := make([]model.FieldError, 0, len(fieldErrs))
	for field, fieldErr := range fieldErrs {
		fields = append(fields, model.FieldError{
			Field:   field,
			Message: fieldErr.Error(),
			Code:    "SCHEMA",
		})
	}
	return model.NewValidationError(fields...)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
