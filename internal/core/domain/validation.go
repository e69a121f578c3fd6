package domain

import (
	"reflect"
	"strings"

	"github.com/shopspring/decimal"
)

// RequireText fails when value is empty or only whitespace.
func RequireText(value, field string, entity EntityType) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Entity: entity, Field: field, Message: field + " cannot be blank"}
	}
	return nil
}

func RequireNonNegativeDecimal(value decimal.Decimal, field string, entity EntityType) error {
	if value.IsNegative() {
		return &ValidationError{Entity: entity, Field: field, Message: field + " cannot be negative"}
	}
	return nil
}

// MoneyPlaces is the number of decimal places a price may carry.
const MoneyPlaces = 2

// RequireMoney fails for negative amounts and amounts finer than a cent.
func RequireMoney(value decimal.Decimal, field string, entity EntityType) error {
	if err := RequireNonNegativeDecimal(value, field, entity); err != nil {
		return err
	}
	if !value.Equal(value.Round(MoneyPlaces)) {
		return &ValidationError{Entity: entity, Field: field, Message: field + " cannot have more than 2 decimal places"}
	}
	return nil
}

func RequirePositiveInt(value int, field string, entity EntityType) error {
	if value <= 0 {
		return &ValidationError{Entity: entity, Field: field, Message: field + " must be positive"}
	}
	return nil
}

func RequireNonNegativeInt(value int, field string, entity EntityType) error {
	if value < 0 {
		return &ValidationError{Entity: entity, Field: field, Message: field + " cannot be negative"}
	}
	return nil
}

// RequireNotNull fails for nil interfaces and nil pointers, maps, slices,
// channels and funcs.
func RequireNotNull(value any, field string, entity EntityType) error {
	if isNil(value) {
		return &ValidationError{Entity: entity, Field: field, Message: field + " cannot be null"}
	}
	return nil
}

func RequireNonEmpty[T any](values []T, field string, entity EntityType) error {
	if len(values) == 0 {
		return &ValidationError{Entity: entity, Field: field, Message: field + " cannot be empty"}
	}
	return nil
}

// RequireTrue fails with message when cond is false.
func RequireTrue(cond bool, message string, entity EntityType) error {
	if !cond {
		return &ValidationError{Entity: entity, Message: message}
	}
	return nil
}

// firstError returns the first non-nil error, so constructors can list
// their checks in field order.
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
