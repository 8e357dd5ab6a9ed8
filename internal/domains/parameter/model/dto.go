package model

import (
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// =====================================================
// REQUEST DTOs
// =====================================================

type CreateParameterRequest struct {
	Name           string          `json:"name"`
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	Value          json.RawMessage `json:"value"`
	EffectiveDate  *time.Time      `json:"effective_date,omitempty"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
	Overridable    *bool           `json:"overridable,omitempty"`
}

func (r CreateParameterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.EntityType, validation.Required, validation.In(
			EntityTypeProgram, EntityTypeBank, EntityTypeOrganization, EntityTypeMerchant,
		)),
		validation.Field(&r.EntityID, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.Value, validation.Required),
	)
}

type ListParametersRequest struct {
	Name       string `form:"name"`
	EntityType string `form:"entityType"`
	EntityID   string `form:"entityId"`
	Page       int    `form:"page"`
	PageSize   int    `form:"pageSize"`
}

type ResolveParameterRequest struct {
	Name       string `form:"name"`
	MerchantID string `form:"merchantId"`
}

func (r ResolveParameterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.MerchantID, validation.Required),
	)
}
