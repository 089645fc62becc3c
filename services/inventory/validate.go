package inventory

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// hostnamePattern allows ASCII letters, digits, '-' and '_' with an
// alphanumeric first and last character.
var hostnamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9_-]*[A-Za-z0-9])?$`)

// Validator checks decoded check-ins against the field rules.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a Validator with the inventory rules registered.
func NewValidator() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("hostname_label", func(fl validator.FieldLevel) bool {
		return hostnamePattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, err
	}
	if err := v.RegisterValidation("rfc3339", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.RFC3339, fl.Field().String())
		return err == nil
	}); err != nil {
		return nil, err
	}

	return &Validator{v: v}, nil
}

// Validate returns nil when in satisfies every rule. Otherwise it returns a
// KindInvalid *Error listing every violation found.
func (val *Validator) Validate(in *CheckIn) error {
	if in == nil {
		return NewError(KindInvalid, errors.New("nil check-in"))
	}

	err := val.v.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewError(KindInvalid, err)
	}

	violations := make([]Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, Violation{
			Field: fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return &Error{
		Kind:       KindInvalid,
		Err:        errors.New("validation failed"),
		Violations: violations,
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
