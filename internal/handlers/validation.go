package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/BradenHooton/prospector/internal/models"
	"github.com/go-playground/validator/v10"
)

// FieldError is one rejected request field, named by its JSON key
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRequest checks req against its validate tags. The returned error
// wraps models.ErrBadRequest and lists every failing field.
func ValidateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}

	parts := make([]string, 0, len(ve))
	for _, fe := range fieldErrors(ve) {
		parts = append(parts, fe.Field+" "+fe.Message)
	}
	return fmt.Errorf("%w: %s", models.ErrBadRequest, strings.Join(parts, "; "))
}

func fieldErrors(ve validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, FieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when " + conditionText(param)
	case "excluded_unless":
		return "is only allowed when " + conditionText(param)
	case "email":
		return "must be an email address"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	case "gte":
		return "must be at least " + param
	case "lte":
		return "must be at most " + param
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + param + " characters"
		}
		return "must be at most " + param
	}
	return "is invalid (" + fe.Tag() + ")"
}

// "Mode domain" -> "mode is domain"
func conditionText(param string) string {
	field, value, ok := strings.Cut(param, " ")
	if !ok {
		return param
	}
	return strings.ToLower(field) + " is " + value
}
