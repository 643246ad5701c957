package params

import (
	"errors"
	"fmt"
)

// UnknownFieldError reports an override naming a field the template does not have.
type UnknownFieldError struct{ Field string }

func (e *UnknownFieldError) Error() string { return "unknown override field: " + e.Field }

// IsUnknownField reports whether err is (or wraps) an UnknownFieldError.
func IsUnknownField(err error) bool {
	var e *UnknownFieldError
	return errors.As(err, &e)
}

// FieldTypeError reports an override whose value does not fit the field's type.
type FieldTypeError struct {
	Field string
	Err   error
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("invalid value for field %s: %v", e.Field, e.Err)
}

func (e *FieldTypeError) Unwrap() error { return e.Err }

// IsFieldType reports whether err is (or wraps) a FieldTypeError.
func IsFieldType(err error) bool {
	var e *FieldTypeError
	return errors.As(err, &e)
}
