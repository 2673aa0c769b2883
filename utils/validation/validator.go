package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator that reports fields by their json names
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// ValidateStruct validates a struct using struct tags
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.validate.Struct(s)
}

// FormatValidationErrors converts validation errors to a user-friendly format
func FormatValidationErrors(err error) map[string]string {
	errors := make(map[string]string)

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		if err != nil {
			errors["request"] = err.Error()
		}
		return errors
	}

	for _, e := range validationErrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			errors[field] = fmt.Sprintf("%s is required", field)
		case "email":
			errors[field] = "Invalid email format"
		case "min":
			errors[field] = fmt.Sprintf("%s must be at least %s characters", field, e.Param())
		case "max":
			errors[field] = fmt.Sprintf("%s must be at most %s characters", field, e.Param())
		case "gt":
			errors[field] = fmt.Sprintf("%s must be greater than %s", field, e.Param())
		case "gte":
			errors[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, e.Param())
		case "lte":
			errors[field] = fmt.Sprintf("%s must be less than or equal to %s", field, e.Param())
		case "oneof":
			errors[field] = fmt.Sprintf("%s must be one of: %s", field, e.Param())
		case "gtfield":
			errors[field] = fmt.Sprintf("%s must be after %s", field, e.Param())
		default:
			errors[field] = fmt.Sprintf("%s is invalid", field)
		}
	}

	return errors
}
