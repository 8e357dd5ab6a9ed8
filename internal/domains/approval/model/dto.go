package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DecisionRequest is the approver's verdict on an approval request.
type DecisionRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note,omitempty"`
}

func (r DecisionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Note, validation.Length(0, 512)),
	)
}
