package model

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// =====================================================
// DATA TYPE CONSTANTS
// =====================================================
type DataType string

const (
	DataTypeString  DataType = "STRING"
	DataTypeNumber  DataType = "NUMBER"
	DataTypeDecimal DataType = "DECIMAL"
	DataTypeBoolean DataType = "BOOLEAN"
	DataTypeObject  DataType = "OBJECT"
	DataTypeArray   DataType = "ARRAY"
)

// =====================================================
// TAGGED VALUE
// =====================================================

// Value is a tagged union over the parameter data types. Exactly one
// member is meaningful, selected by DataType. Monetary values use
// DECIMAL so no float arithmetic ever touches them.
type Value struct {
	DataType DataType               `json:"data_type"`
	Str      string                 `json:"str,omitempty"`
	Num      int64                  `json:"num,omitempty"`
	Dec      decimal.Decimal        `json:"dec,omitempty"`
	Bool     bool                   `json:"bool,omitempty"`
	Object   map[string]interface{} `json:"object,omitempty"`
	Array    []interface{}          `json:"array,omitempty"`
}

func NewStringValue(s string) Value {
	return Value{DataType: DataTypeString, Str: s}
}

func NewNumberValue(n int64) Value {
	return Value{DataType: DataTypeNumber, Num: n}
}

func NewDecimalValue(d decimal.Decimal) Value {
	return Value{DataType: DataTypeDecimal, Dec: d}
}

func NewBoolValue(b bool) Value {
	return Value{DataType: DataTypeBoolean, Bool: b}
}

func NewObjectValue(o map[string]interface{}) Value {
	return Value{DataType: DataTypeObject, Object: o}
}

func NewArrayValue(a []interface{}) Value {
	return Value{DataType: DataTypeArray, Array: a}
}

// ParseValue decodes a raw JSON value into the declared data type.
// Numbers arriving as JSON strings are accepted for DECIMAL to avoid
// float truncation on the wire.
func ParseValue(dataType DataType, raw json.RawMessage) (Value, error) {
	switch dataType {
	case DataTypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("value is not a string: %w", err)
		}
		return NewStringValue(s), nil
	case DataTypeNumber:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return Value{}, fmt.Errorf("value is not a number: %w", err)
		}
		i, err := n.Int64()
		if err != nil {
			return Value{}, fmt.Errorf("value is not an integer: %w", err)
		}
		return NewNumberValue(i), nil
	case DataTypeDecimal:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			var n json.Number
			if err := json.Unmarshal(raw, &n); err != nil {
				return Value{}, fmt.Errorf("value is not a decimal: %w", err)
			}
			s = n.String()
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Value{}, fmt.Errorf("value is not a decimal: %w", err)
		}
		return NewDecimalValue(d), nil
	case DataTypeBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, fmt.Errorf("value is not a boolean: %w", err)
		}
		return NewBoolValue(b), nil
	case DataTypeObject:
		var o map[string]interface{}
		if err := json.Unmarshal(raw, &o); err != nil {
			return Value{}, fmt.Errorf("value is not an object: %w", err)
		}
		return NewObjectValue(o), nil
	case DataTypeArray:
		var a []interface{}
		if err := json.Unmarshal(raw, &a); err != nil {
			return Value{}, fmt.Errorf("value is not an array: %w", err)
		}
		return NewArrayValue(a), nil
	default:
		return Value{}, fmt.Errorf("unknown data type %q", dataType)
	}
}

// =====================================================
// COERCION HELPERS
// =====================================================

// AsString renders any value as a string.
func (v Value) AsString() string {
	switch v.DataType {
	case DataTypeString:
		return v.Str
	case DataTypeNumber:
		return cast.ToString(v.Num)
	case DataTypeDecimal:
		return v.Dec.String()
	case DataTypeBoolean:
		return cast.ToString(v.Bool)
	default:
		encoded, _ := json.Marshal(v.export())
		return string(encoded)
	}
}

// AsInt64 coerces NUMBER, integral DECIMAL and numeric STRING values.
func (v Value) AsInt64() (int64, error) {
	switch v.DataType {
	case DataTypeNumber:
		return v.Num, nil
	case DataTypeDecimal:
		if !v.Dec.IsInteger() {
			return 0, fmt.Errorf("decimal %s is not integral", v.Dec)
		}
		return v.Dec.IntPart(), nil
	case DataTypeString:
		return cast.ToInt64E(v.Str)
	default:
		return 0, fmt.Errorf("cannot coerce %s to integer", v.DataType)
	}
}

// AsDecimal coerces NUMBER, DECIMAL and numeric STRING values.
func (v Value) AsDecimal() (decimal.Decimal, error) {
	switch v.DataType {
	case DataTypeDecimal:
		return v.Dec, nil
	case DataTypeNumber:
		return decimal.NewFromInt(v.Num), nil
	case DataTypeString:
		return decimal.NewFromString(v.Str)
	default:
		return decimal.Zero, fmt.Errorf("cannot coerce %s to decimal", v.DataType)
	}
}

// AsBool coerces BOOLEAN and boolean-ish STRING values.
func (v Value) AsBool() (bool, error) {
	switch v.DataType {
	case DataTypeBoolean:
		return v.Bool, nil
	case DataTypeString:
		return cast.ToBoolE(v.Str)
	default:
		return false, fmt.Errorf("cannot coerce %s to boolean", v.DataType)
	}
}

// AsStringSlice coerces ARRAY values whose members are strings.
func (v Value) AsStringSlice() ([]string, error) {
	if v.DataType != DataTypeArray {
		return nil, fmt.Errorf("cannot coerce %s to string slice", v.DataType)
	}
	return cast.ToStringSliceE(v.Array)
}

// export returns the bare value for JSON rendering.
func (v Value) export() interface{} {
	switch v.DataType {
	case DataTypeString:
		return v.Str
	case DataTypeNumber:
		return v.Num
	case DataTypeDecimal:
		return v.Dec.String()
	case DataTypeBoolean:
		return v.Bool
	case DataTypeObject:
		return v.Object
	case DataTypeArray:
		return v.Array
	default:
		return nil
	}
}

// MarshalJSON renders {"data_type": ..., "value": ...} so the decoded
// form round-trips with the declared type intact.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DataType DataType    `json:"data_type"`
		Value    interface{} `json:"value"`
	}{v.DataType, v.export()})
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var envelope struct {
		DataType DataType        `json:"data_type"`
		Value    json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	parsed, err := ParseValue(envelope.DataType, envelope.Value)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
