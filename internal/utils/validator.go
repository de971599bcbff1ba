package utils

import (
	"reflect"
	"strings"

	apperrors "github.com/SAP-F-2025/learning-progress-service/internal/errors"
	"github.com/go-playground/validator/v10"
)

// Validator wraps a shared go-playground instance with the service's custom
// rules registered. Services validate request DTOs through it.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	RegisterCustomValidators(v)
	return &Validator{validate: v}
}

// Validate checks struct tags and converts failures into field-level
// ValidationErrors for the HTTP layer.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if fieldErrors := apperrors.ToValidationErrors(err); len(fieldErrors) > 0 {
			return fieldErrors
		}
		return err
	}
	return nil
}

// Custom validation functions

// ValidateTimeframe accepts the analytics lookback identifiers. Metric reads
// never reject a timeframe (unknown values fall back to 7d); this rule guards
// surfaces that persist the value, like report export requests.
func ValidateTimeframe(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "7d", "30d", "90d":
		return true
	}
	return false
}

// RegisterCustomValidators registers all custom validators
func RegisterCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("timeframe", ValidateTimeframe)

	// Register custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
