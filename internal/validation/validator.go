// Package validation validates request structs with validator/v10 and reports
// failures as invalid-data domain errors keyed by JSON field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
)

var (
	digitsPattern   = regexp.MustCompile(`^[0-9]+$`)
	passwordPattern = regexp.MustCompile(`^[a-z0-9A-Z](\.?[a-z0-9A-Z])*$`)
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the catalog and account tags registered:
//
//	isbn            13 digits
//	sid             12 digits
//	password_chars  letters or digits, optionally separated by single dots
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Registration only fails on empty tag names.
	_ = v.RegisterValidation("isbn", digitsOfLength(13))
	_ = v.RegisterValidation("sid", digitsOfLength(12))
	_ = v.RegisterValidation("password_chars", func(fl validator.FieldLevel) bool {
		return passwordPattern.MatchString(fl.Field().String())
	})

	return &Validator{v: v}
}

func digitsOfLength(n int) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) == n && digitsPattern.MatchString(s)
	}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return domainerrors.Wrap(err, domainerrors.CodeInvalidRequest, "invalid request")
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	onlyISBN := true
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = v.friendlyMessage(e)
		onlyISBN = onlyISBN && e.Tag() == "isbn"
	}

	// Malformed ISBNs have their own code.
	if onlyISBN {
		return domainerrors.ErrInvalidISBN.WithDetails(fieldErrors)
	}
	return domainerrors.InvalidDataWithDetails("validation failed", fieldErrors)
}

//nolint:gocyclo // Switch statement covering validation tags is intentionally exhaustive.
func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", e.Param())
		}
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", e.Param())
		}
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", e.Param())
	case "isbn":
		return "must be 13 digits"
	case "sid":
		return "must be 12 digits"
	case "password_chars":
		return "must be letters or digits, optionally separated by single dots"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lt":
		return "must be less than " + e.Param()
	default:
		return "is invalid"
	}
}
