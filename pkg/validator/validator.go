package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]

		if name == "-" {
			return ""
		}

		return name
	})

	return &Validator{validate: v}
}

func message(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "min", "gte":
		if err.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", err.Field(), err.Param())
		}
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max", "lte":
		if err.Kind() == reflect.String {
			return fmt.Sprintf("%s must not exceed %s characters", err.Field(), err.Param())
		}
		return fmt.Sprintf("%s must not exceed %s", err.Field(), err.Param())
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid url", err.Field())
	default:
		return fmt.Sprintf("%s is invalid", err.Field())
	}
}

// Validate reports every failed constraint of i. ok is false when at least
// one constraint failed.
func (v *Validator) Validate(i any) ([]ValidationError, bool) {
	err := v.validate.Struct(i)
	if err == nil {
		return nil, true
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []ValidationError{{Code: "INVALID", Message: err.Error()}}, false
	}

	errs := make([]ValidationError, 0, len(validationErrors))
	for _, err := range validationErrors {
		errs = append(errs, ValidationError{
			Field:   err.Field(),
			Code:    strings.ToUpper(err.Tag()),
			Message: message(err),
		})
	}

	return errs, false
}
