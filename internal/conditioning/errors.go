package conditioning

import (
	"errors"
	"fmt"
)

// CountError signals a conditioning list whose length is outside [MinInputs, MaxInputs].
type CountError struct{ Count int }

func (e *CountError) Error() string {
	return fmt.Sprintf("invalid conditioning count: got %d, want %d to %d", e.Count, MinInputs, MaxInputs)
}

// IsInvalidCount reports whether err is (or wraps) a CountError.
func IsInvalidCount(err error) bool {
	var e *CountError
	return errors.As(err, &e)
}

// FieldError signals an invalid field on the conditioning input at Index.
type FieldError struct {
	Index  int
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid conditioning field control_inputs[%d].%s: %s", e.Index, e.Field, e.Reason)
}

// IsInvalidField reports whether err is (or wraps) a FieldError.
func IsInvalidField(err error) bool {
	var e *FieldError
	return errors.As(err, &e)
}
