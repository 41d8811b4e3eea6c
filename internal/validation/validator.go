// Package validation provides input validation utilities for pipeline operations.
// Parameter and column checks run before any computation so that a rejected
// request never produces partial output.
package validation

import (
	"fmt"

	"github.com/paveg/ocpanel/internal/errors"
)

// Validator interface for input validation
type Validator interface {
	Validate() error
}

// ColumnProvider interface for types that provide column information
type ColumnProvider interface {
	HasColumn(name string) bool
	Columns() []string
	Len() int
	Width() int
}

// ColumnValidator validates column existence
type ColumnValidator struct {
	ds      ColumnProvider
	columns []string
	op      string
}

// NewColumnValidator creates a validator for column operations
func NewColumnValidator(ds ColumnProvider, op string, columns ...string) *ColumnValidator {
	return &ColumnValidator{
		ds:      ds,
		columns: columns,
		op:      op,
	}
}

// Validate checks if all columns exist in the Dataset
func (v *ColumnValidator) Validate() error {
	for _, column := range v.columns {
		if column == "" || !v.ds.HasColumn(column) {
			return errors.NewMissingColumnError(v.op, column)
		}
	}
	return nil
}

// PositiveValidator validates that a count parameter is at least one
type PositiveValidator struct {
	value int
	name  string
	op    string
}

// NewPositiveValidator creates a validator for count parameters such as top-N
func NewPositiveValidator(value int, name, op string) *PositiveValidator {
	return &PositiveValidator{
		value: value,
		name:  name,
		op:    op,
	}
}

// Validate checks that the value is positive
func (v *PositiveValidator) Validate() error {
	if v.value <= 0 {
		return errors.NewInvalidParameterError(v.op, fmt.Sprintf("%s must be positive, got %d", v.name, v.value))
	}
	return nil
}

// RangeValidator validates that a count lies within [min, max]
type RangeValidator struct {
	value    int
	min, max int
	name     string
	op       string
}

// NewRangeValidator creates a validator for bounded counts such as the number of group keys
func NewRangeValidator(value, minValue, maxValue int, name, op string) *RangeValidator {
	return &RangeValidator{
		value: value,
		min:   minValue,
		max:   maxValue,
		name:  name,
		op:    op,
	}
}

// Validate checks that the value is within bounds
func (v *RangeValidator) Validate() error {
	if v.value < v.min || v.value > v.max {
		return errors.NewInvalidParameterError(v.op,
			fmt.Sprintf("%s must be between %d and %d, got %d", v.name, v.min, v.max, v.value))
	}
	return nil
}

// CompoundValidator combines multiple validators
type CompoundValidator struct {
	validators []Validator
}

// NewCompoundValidator creates a validator that checks multiple conditions
func NewCompoundValidator(validators ...Validator) *CompoundValidator {
	return &CompoundValidator{
		validators: validators,
	}
}

// Validate runs all validators and returns the first error encountered
func (v *CompoundValidator) Validate() error {
	for _, validator := range v.validators {
		if err := validator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Convenience validation functions

// ValidateColumns is a convenience function for column validation
func ValidateColumns(ds ColumnProvider, op string, columns ...string) error {
	return NewColumnValidator(ds, op, columns...).Validate()
}

// ValidatePositive is a convenience function for positive count validation
func ValidatePositive(value int, name, op string) error {
	return NewPositiveValidator(value, name, op).Validate()
}

// ValidateRange is a convenience function for bounded count validation
func ValidateRange(value, minValue, maxValue int, name, op string) error {
	return NewRangeValidator(value, minValue, maxValue, name, op).Validate()
}
