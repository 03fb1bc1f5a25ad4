package ledger

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"paperlock/internal/paperlock"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// locatorPattern matches a blob locator: lowercase hex SHA-256, no prefix.
	locatorPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("locator", func(fl validator.FieldLevel) bool {
		return locatorPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("registering locator validation: %v", err))
	}
}

// validateRegistration checks struct tags and the rules tags cannot express.
func validateRegistration(reg *paperlock.Registration) error {
	if err := validate.Struct(reg); err != nil {
		return formatValidationError(err)
	}
	if reg.PlaintextHash.IsZero() {
		return &paperlock.ValidationError{Field: "plaintext_hash", Reason: "must be set"}
	}
	if strings.ContainsRune(reg.DocumentID, 0) {
		return &paperlock.ValidationError{Field: "document_id", Reason: "must not contain NUL"}
	}
	return nil
}

// formatValidationError converts the first validator failure into a ValidationError.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return &paperlock.ValidationError{Reason: err.Error()}
	}

	e := validationErrs[0]
	field := toSnake(e.Field())
	switch e.Tag() {
	case "required":
		return &paperlock.ValidationError{Field: field, Reason: "is required"}
	case "len":
		return &paperlock.ValidationError{Field: field, Reason: "must have length " + e.Param()}
	case "max":
		return &paperlock.ValidationError{Field: field, Reason: "must not exceed " + e.Param()}
	case "gte":
		return &paperlock.ValidationError{Field: field, Reason: "must be at least " + e.Param()}
	case "locator":
		return &paperlock.ValidationError{Field: field, Reason: "must be a lowercase hex SHA-256 locator"}
	case "startswith":
		return &paperlock.ValidationError{Field: field, Reason: fmt.Sprintf("must start with %q", e.Param())}
	default:
		return &paperlock.ValidationError{Field: field, Reason: "failed " + e.Tag()}
	}
}

// toSnake turns a Go field name such as BlobLocator into blob_locator.
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
