package model

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	routingNumberPattern = regexp.MustCompile(`^\d{9}$`)
	accountNumberPattern = regexp.MustCompile(`^\d{4,17}$`)
)

// =====================================================
// REQUEST DTOs
// =====================================================

type CreateBankAccountRequest struct {
	HolderName    string `json:"holder_name"`
	AccountType   string `json:"account_type"`
	RoutingNumber string `json:"routing_number"`
	AccountNumber string `json:"account_number"`
	IsDefault     bool   `json:"is_default"`
}

func (r CreateBankAccountRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.HolderName, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.AccountType, validation.Required, validation.In(
			AccountTypeChecking, AccountTypeSavings,
		)),
		validation.Field(&r.RoutingNumber, validation.Required, validation.Match(routingNumberPattern)),
		validation.Field(&r.AccountNumber, validation.Required, validation.Match(accountNumberPattern)),
	)
}

type UpdateVerificationRequest struct {
	VerificationStatus string `json:"verification_status"`
}

func (r UpdateVerificationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.VerificationStatus, validation.Required, validation.In(
			VerificationPending, VerificationVerified, VerificationFailed,
		)),
	)
}
