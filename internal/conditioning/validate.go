package conditioning

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"imaged/pkg/types"
)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report wire names (cn_stop) rather than Go names (Stop).
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// Validate turns raw API inputs into a Set. Omitted stop, weight and type
// take their defaults; out-of-range values are rejected, never clamped.
// The first offending input is reported with its index.
func Validate(raw []types.ControlInput) (Set, error) {
	if n := len(raw); n < MinInputs || n > MaxInputs {
		return Set{}, &CountError{Count: n}
	}
	items := make([]Input, len(raw))
	for i, r := range raw {
		in, err := normalize(i, r)
		if err != nil {
			return Set{}, err
		}
		items[i] = in
	}
	return NewSet(items)
}

func normalize(i int, r types.ControlInput) (Input, error) {
	typ, ok := ParseType(r.CnType)
	if !ok {
		return Input{}, &FieldError{Index: i, Field: "cn_type", Reason: fmt.Sprintf("unknown type %q", r.CnType)}
	}
	in := Input{
		Image:  strings.TrimSpace(r.CnImg),
		Stop:   valueOr(r.CnStop, DefaultStop),
		Weight: valueOr(r.CnWeight, DefaultWeight),
		Type:   typ,
	}
	if err := checkInput(i, in); err != nil {
		return Input{}, err
	}
	return in, nil
}

func checkInput(i int, in Input) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &FieldError{Index: i, Field: fe.Field(), Reason: reason(fe)}
	}
	return err
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("unknown type %q", fe.Value())
	case "gte", "lte":
		switch fe.Field() {
		case "cn_stop":
			return fmt.Sprintf("must be between %g and %g, got %v", MinStop, MaxStop, fe.Value())
		case "cn_weight":
			return fmt.Sprintf("must be between %g and %g, got %v", MinWeight, MaxWeight, fe.Value())
		}
	}
	return fmt.Sprintf("failed %s check", fe.Tag())
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
