package model

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// =====================================================
// VALIDATION RULE CONSTANTS
// =====================================================
const (
	RuleTypeRange   = "RANGE"
	RuleTypePattern = "PATTERN"
	RuleTypeEnum    = "ENUM"
)

// Rule constrains values written for a parameter.
type Rule struct {
	Type    string           `json:"type"`
	Min     *decimal.Decimal `json:"min,omitempty"`
	Max     *decimal.Decimal `json:"max,omitempty"`
	Pattern string           `json:"pattern,omitempty"`
	Values  []string         `json:"values,omitempty"`
}

// =====================================================
// PARAMETER DEFINITION
// =====================================================

// Definition declares a parameter: its data type, the built-in default
// returned when no level in the hierarchy carries a record, and the
// rules every written value must satisfy.
type Definition struct {
	Name        string `json:"name"`
	DataType    DataType `json:"data_type"`
	Description string `json:"description"`
	Default     *Value `json:"default,omitempty"`
	Rules       []Rule `json:"rules,omitempty"`
}

// Validate checks a candidate value against the declared type and rules.
func (d *Definition) Validate(v Value) error {
	if v.DataType != d.DataType {
		return fmt.Errorf("parameter %s expects %s, got %s", d.Name, d.DataType, v.DataType)
	}

	for _, rule := range d.Rules {
		if err := d.applyRule(rule, v); err != nil {
			return err
		}
	}
	return nil
}

func (d *Definition) applyRule(rule Rule, v Value) error {
	switch rule.Type {
	case RuleTypeRange:
		dec, err := v.AsDecimal()
		if err != nil {
			return fmt.Errorf("parameter %s: RANGE rule needs a numeric value: %w", d.Name, err)
		}
		if rule.Min != nil && dec.LessThan(*rule.Min) {
			return fmt.Errorf("parameter %s: value %s below minimum %s", d.Name, dec, rule.Min)
		}
		if rule.Max != nil && dec.GreaterThan(*rule.Max) {
			return fmt.Errorf("parameter %s: value %s above maximum %s", d.Name, dec, rule.Max)
		}
	case RuleTypePattern:
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("parameter %s: invalid pattern rule: %w", d.Name, err)
		}
		if !re.MatchString(v.AsString()) {
			return fmt.Errorf("parameter %s: value does not match pattern %s", d.Name, rule.Pattern)
		}
	case RuleTypeEnum:
		candidate := v.AsString()
		for _, allowed := range rule.Values {
			if candidate == allowed {
				return nil
			}
		}
		return fmt.Errorf("parameter %s: value %q not in enum %v", d.Name, candidate, rule.Values)
	default:
		return fmt.Errorf("parameter %s: unknown rule type %q", d.Name, rule.Type)
	}
	return nil
}
