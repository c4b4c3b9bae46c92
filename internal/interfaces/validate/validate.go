// Package validate turns go-playground validation failures into
// VALIDATION_ERROR domain errors shared by the HTTP and RPC adapters.
package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pharmaerp/receiving/internal/domain/shared"
)

// TagName is the struct tag holding rules, shared with gin's binding
const TagName = "binding"

// FieldViolation is one failed rule, reported under the JSON field path
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New returns a validator reading the binding tag
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName(TagName)
	Configure(v)
	return v
}

// Configure reports field names by their json (or form) tag
func Configure(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
}

// Struct validates s and returns a validation DomainError listing every failed field
func Struct(v *validator.Validate, s any) error {
	return ToDomainError(v.Struct(s))
}

// ToDomainError converts validator errors. Other errors pass through unchanged.
func ToDomainError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := Violations(verrs)
	return shared.NewDomainError(shared.CodeValidation, "request validation failed").
		WithDetail("fields", fields)
}

// Violations lists one entry per failed field
func Violations(verrs validator.ValidationErrors) []FieldViolation {
	fields := make([]FieldViolation, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, FieldViolation{Field: fieldPath(e), Message: Message(e)})
	}
	return fields
}

// fieldPath drops the top-level struct name: "items[0].batch_number"
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

// Message returns a human-readable message for one failed rule
func Message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		switch e.Kind() {
		case reflect.String:
			return "Must be at least " + e.Param() + " characters"
		case reflect.Slice:
			return "Must contain at least " + e.Param() + " item(s)"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	default:
		return "Invalid value"
	}
}
