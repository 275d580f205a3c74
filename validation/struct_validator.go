package validation

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/notify/errors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report json names so messages match the request body.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return toSnakeCase(fld.Name)
			}
			return name
		})
		_ = validate.RegisterValidation("notblank", notBlank)
		_ = validate.RegisterValidation("nocontrol", noControl)
	})
	return validate
}

// notblank fails strings that are empty after trimming whitespace.
func notBlank(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(fl.Field().String()) != ""
}

// nocontrol fails strings holding CR, LF or any other control character.
func noControl(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return true
	}
	return strings.IndexFunc(fl.Field().String(), unicode.IsControl) < 0
}

// Validate validates a struct using its `validate` tags.
func Validate(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Validation("validation failed").WithCause(err)
	}
	if appErr := New().addFieldErrors(validationErrors).Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// Struct runs the `validate` tags of s and records each failing field, so
// tag checks and hand-written checks report as one error.
func (v *Validator) Struct(s any) *Validator {
	err := getValidator().Struct(s)
	if err == nil {
		return v
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return v.AddError("", err.Error())
	}
	return v.addFieldErrors(validationErrors)
}

func (v *Validator) addFieldErrors(errs validator.ValidationErrors) *Validator {
	for _, e := range errs {
		v.AddError(e.Field(), formatValidationError(e))
	}
	return v
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return "is required"
	case "nocontrol":
		return "must not contain control characters"
	case "min":
		if e.Kind() == reflect.String {
			return "must be at least " + e.Param() + " characters"
		}
		return "must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "must be at most " + e.Param() + " characters"
		}
		return "must be at most " + e.Param()
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + e.Param()
	case "cidr":
		return "must be a CIDR range"
	default:
		return "is invalid"
	}
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
