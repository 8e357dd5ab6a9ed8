package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"refunds-backend/internal/domains/bankaccount/model"
	"refunds-backend/internal/domains/bankaccount/repository"
	"refunds-backend/internal/infrastructure/secrets"
	"refunds-backend/internal/shared/utils"
	"refunds-backend/pkg/logger"
)

// =====================================================
// BANK ACCOUNT SERVICE IMPLEMENTATION
// =====================================================

type bankAccountService struct {
	repo      repository.BankAccountRepository
	encryptor *secrets.EnvelopeEncryptor
}

func NewBankAccountService(
	repo repository.BankAccountRepository,
	encryptor *secrets.EnvelopeEncryptor,
) BankAccountService {
	return &bankAccountService{
		repo:      repo,
		encryptor: encryptor,
	}
}

// Create stores a new payout account. The raw account number is sealed
// before persistence and never logged; reads carry last4 only.
func (s *bankAccountService) Create(ctx context.Context, merchantID string, req *model.CreateBankAccountRequest) (*model.BankAccount, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sealed, err := s.encryptor.EncryptString(req.AccountNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt account number: %w", err)
	}

	account := &model.BankAccount{
		ID:                     uuid.NewString(),
		MerchantID:             merchantID,
		HolderName:             req.HolderName,
		AccountType:            req.AccountType,
		RoutingNumber:          req.RoutingNumber,
		AccountNumberLast4:     utils.Last4(req.AccountNumber),
		EncryptedAccountNumber: sealed,
		Status:                 model.AccountStatusActive,
		VerificationStatus:     model.VerificationUnverified,
		IsDefault:              req.IsDefault,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}

	logger.Info("bank account created", map[string]interface{}{
		"account_id":  account.ID,
		"merchant_id": merchantID,
		"last4":       account.AccountNumberLast4,
	})

	return account, nil
}

func (s *bankAccountService) GetByID(ctx context.Context, merchantID, accountID string) (*model.BankAccount, error) {
	return s.repo.GetByIDAndMerchant(ctx, accountID, merchantID)
}

func (s *bankAccountService) List(ctx context.Context, merchantID string) ([]*model.BankAccount, error) {
	return s.repo.ListByMerchant(ctx, merchantID)
}

// UpdateVerification moves the verification state forward.
// UNVERIFIED -> PENDING -> {VERIFIED, FAILED}; FAILED -> PENDING for
// re-verification. VERIFIED is final.
func (s *bankAccountService) UpdateVerification(ctx context.Context, accountID, status string) error {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if !verificationTransitionAllowed(account.VerificationStatus, status) {
		return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, account.VerificationStatus, status)
	}

	return s.repo.UpdateVerification(ctx, accountID, status)
}

func (s *bankAccountService) SetDefault(ctx context.Context, merchantID, accountID string) error {
	account, err := s.repo.GetByIDAndMerchant(ctx, accountID, merchantID)
	if err != nil {
		return err
	}
	if account.Status != model.AccountStatusActive {
		return model.ErrAccountClosed
	}

	return s.repo.SetDefault(ctx, accountID, merchantID)
}

func (s *bankAccountService) DecryptAccountNumber(account *model.BankAccount) (string, error) {
	return s.encryptor.DecryptString(account.EncryptedAccountNumber)
}

func verificationTransitionAllowed(from, to string) bool {
	switch from {
	case model.VerificationUnverified:
		return to == model.VerificationPending
	case model.VerificationPending:
		return to == model.VerificationVerified || to == model.VerificationFailed
	case model.VerificationFailed:
		return to == model.VerificationPending
	default:
		return false
	}
}
