package model

import (
	"errors"
	"fmt"
)

// =====================================================
// ERROR CODE CONSTANTS
// =====================================================
const (
	ErrCodeParameterUnknown  = "PRM001"
	ErrCodeParameterInvalid  = "PRM002"
	ErrCodeParameterConflict = "PRM003"
	ErrCodeParameterExpired  = "PRM004"
)

var (
	ErrParameterNotFound = errors.New("parameter not found")
)

// UnknownParameterError is returned when no definition exists for a
// name, which makes resolution impossible.
type UnknownParameterError struct {
	Name string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("PARAMETER_UNKNOWN: no definition for parameter %q", e.Name)
}

func NewUnknownParameterError(name string) *UnknownParameterError {
	return &UnknownParameterError{Name: name}
}

// ConflictError is returned when a write collides with an existing
// record at the same (name, entityType, entityId, effectiveDate).
type ConflictError struct {
	Name       string
	EntityType string
	EntityID   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("parameter %q already exists for %s/%s at that effective date",
		e.Name, e.EntityType, e.EntityID)
}
