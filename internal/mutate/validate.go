package mutate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Direction moves a node or event one slot among its siblings.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Where places a new sibling relative to its target.
type Where string

const (
	Before Where = "before"
	After  Where = "after"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// check validates a request struct and reports the first failing field as an
// InvalidArgumentError.
func check(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return InvalidArgumentError{Field: lowerFirst(fe.Field()), Reason: describe(fe)}
	}
	return InvalidArgumentError{Reason: err.Error()}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q", fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
