package model

import (
	"time"
)

// =====================================================
// ENTITY TYPE CONSTANTS
// =====================================================

// Hierarchy levels, most general first. ProgramEntityID is the fixed
// entity ID at the PROGRAM level.
const (
	EntityTypeProgram      = "PROGRAM"
	EntityTypeBank         = "BANK"
	EntityTypeOrganization = "ORGANIZATION"
	EntityTypeMerchant     = "MERCHANT"

	ProgramEntityID = "PROGRAM"
)

// =====================================================
// RESOLUTION SOURCE CONSTANTS
// =====================================================
const (
	SourceMerchant     = "MERCHANT"
	SourceOrganization = "ORGANIZATION"
	SourceBank         = "BANK"
	SourceProgram      = "PROGRAM"
	SourceDefault      = "DEFAULT"
)

// =====================================================
// ENTITY: Parameter
// =====================================================
type Parameter struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	EntityType     string     `json:"entity_type"`
	EntityID       string     `json:"entity_id"`
	Value          Value      `json:"value"`
	EffectiveDate  time.Time  `json:"effective_date"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	Overridable    bool       `json:"overridable"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	CreatedBy      string     `json:"created_by"`
}

// IsEffectiveAt checks the effective window at one instant
func (p *Parameter) IsEffectiveAt(at time.Time) bool {
	if at.Before(p.EffectiveDate) {
		return false
	}
	return p.ExpirationDate == nil || at.Before(*p.ExpirationDate)
}

// =====================================================
// RESOLVED PARAMETER
// =====================================================

// Resolved is the outcome of a hierarchy lookup: the effective value
// and the level it came from.
type Resolved struct {
	Name   string `json:"name"`
	Value  Value  `json:"value"`
	Source string `json:"source"`
}
