package model

import (
	"github.com/shopspring/decimal"
)

// =====================================================
// BUILT-IN DEFINITION CATALOG
// =====================================================
//
// Every parameter the refund pipeline consults is declared here.
// Records written at any hierarchy level are validated against the
// matching definition; names without a definition cannot be resolved
// or written.

// Names of well-known parameters.
const (
	ParamMaxRefundAgeDays        = "maxRefundAgeDays"
	ParamMaxRefundAmount         = "maxRefundAmount"
	ParamApprovalThreshold       = "approvalThreshold"
	ParamApprovalLevels          = "approvalLevels"
	ParamApprovalEscalationHours = "approvalEscalationHours"
	ParamApprovalFallback        = "approvalFallback"
	ParamReasonCodeRequired      = "reasonCodeRequired"
	ParamAllowedRefundMethods    = "allowedRefundMethods"
	ParamRefundFeePercent        = "refundFeePercent"
)

// Approval fallbacks when escalation runs past the last level.
const (
	FallbackAutoApprove = "auto-approve"
	FallbackAutoReject  = "auto-reject"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func valuePtr(v Value) *Value {
	return &v
}

var builtinDefinitions = map[string]*Definition{
	ParamMaxRefundAgeDays: {
		Name:        ParamMaxRefundAgeDays,
		DataType:    DataTypeNumber,
		Description: "Refund window in days since transaction capture",
		Default:     valuePtr(NewNumberValue(180)),
		Rules: []Rule{
			{Type: RuleTypeRange, Min: dec("1"), Max: dec("3650")},
		},
	},
	ParamMaxRefundAmount: {
		Name:        ParamMaxRefundAmount,
		DataType:    DataTypeDecimal,
		Description: "Optional per-refund amount cap in minor units, 0 disables the cap",
		Default:     valuePtr(NewDecimalValue(decimal.Zero)),
		Rules: []Rule{
			{Type: RuleTypeRange, Min: dec("0")},
		},
	},
	ParamApprovalThreshold: {
		Name:        ParamApprovalThreshold,
		DataType:    DataTypeDecimal,
		Description: "Amount in minor units at or above which a refund needs approval, 0 disables",
		Default:     valuePtr(NewDecimalValue(decimal.Zero)),
		Rules: []Rule{
			{Type: RuleTypeRange, Min: dec("0")},
		},
	},
	ParamApprovalLevels: {
		Name:        ParamApprovalLevels,
		DataType:    DataTypeArray,
		Description: "Ordered approver authority levels for threshold approvals",
		Default:     valuePtr(NewArrayValue([]interface{}{"SUPERVISOR", "MANAGER"})),
	},
	ParamApprovalEscalationHours: {
		Name:        ParamApprovalEscalationHours,
		DataType:    DataTypeNumber,
		Description: "Hours before a pending approval escalates to the next level",
		Default:     valuePtr(NewNumberValue(4)),
		Rules: []Rule{
			{Type: RuleTypeRange, Min: dec("1"), Max: dec("168")},
		},
	},
	ParamApprovalFallback: {
		Name:        ParamApprovalFallback,
		DataType:    DataTypeString,
		Description: "Action when escalation passes the last level",
		Default:     valuePtr(NewStringValue(FallbackAutoReject)),
		Rules: []Rule{
			{Type: RuleTypeEnum, Values: []string{FallbackAutoApprove, FallbackAutoReject}},
		},
	},
	ParamReasonCodeRequired: {
		Name:        ParamReasonCodeRequired,
		DataType:    DataTypeBoolean,
		Description: "Whether refund creation requires a reason code",
		Default:     valuePtr(NewBoolValue(false)),
	},
	ParamAllowedRefundMethods: {
		Name:        ParamAllowedRefundMethods,
		DataType:    DataTypeArray,
		Description: "Refund methods the merchant may use",
		Default:     valuePtr(NewArrayValue([]interface{}{"ORIGINAL_PAYMENT", "BALANCE", "OTHER"})),
	},
	ParamRefundFeePercent: {
		Name:        ParamRefundFeePercent,
		DataType:    DataTypeDecimal,
		Description: "Fee percentage charged to the merchant per refund",
		Default:     valuePtr(NewDecimalValue(decimal.Zero)),
		Rules: []Rule{
			{Type: RuleTypeRange, Min: dec("0"), Max: dec("100")},
		},
	},
}

// GetDefinition returns the definition for a parameter name.
func GetDefinition(name string) (*Definition, bool) {
	def, ok := builtinDefinitions[name]
	return def, ok
}

// ListDefinitions returns the full catalog.
func ListDefinitions() []*Definition {
	defs := make([]*Definition, 0, len(builtinDefinitions))
	for _, def := range builtinDefinitions {
		defs = append(defs, def)
	}
	return defs
}
