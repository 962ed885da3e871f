package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/turtacn/authz/pkg/errors"
)

var defaultValidator *validator.Validate

// scope-token per RFC 6749 section 3.3: %x21 / %x23-5B / %x5D-7E
var scopeTokenPattern = regexp.MustCompile(`^[\x21\x23-\x5B\x5D-\x7E]+$`)

func init() {
	defaultValidator = validator.New()
	_ = defaultValidator.RegisterValidation("uuid", validateUUID)
	_ = defaultValidator.RegisterValidation("scope", validateScope)
}

// Validator exposes the shared validator so gin's binding engine can register the same rules.
func Validator() *validator.Validate {
	return defaultValidator
}

// ValidateStruct validates a struct using the default validator.
// It returns an invalid_request error naming every failing field.
func ValidateStruct(s interface{}) error {
	if err := defaultValidator.Struct(s); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return errors.ErrInvalidRequest(err.Error())
		}
		details := make([]string, 0, len(validationErrors))
		fields := make(map[string]string, len(validationErrors))
		for _, fe := range validationErrors {
			field := toSnakeCase(fe.Field())
			msg := formatValidationError(fe)
			details = append(details, field+" "+msg)
			fields[field] = msg
		}
		return errors.ErrInvalidRequest(strings.Join(details, "; ")).WithMetadata("fields", fields)
	}
	return nil
}

func validateUUID(fl validator.FieldLevel) bool {
	_, err := uuid.Parse(fl.Field().String())
	return err == nil
}

// validateScope accepts an empty value or space-delimited scope tokens.
func validateScope(fl validator.FieldLevel) bool {
	for _, token := range strings.Fields(fl.Field().String()) {
		if !scopeTokenPattern.MatchString(token) {
			return false
		}
	}
	return true
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "scope":
		return "must be space-delimited scope tokens"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "url":
		return "must be an absolute URL"
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

// toSnakeCase converts a string from CamelCase to snake_case.
func toSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}
