package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/eventeye/server/internal/sanitize"
	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = validate.RegisterValidation("nomarkup", func(fl validator.FieldLevel) bool {
			return !sanitize.HasMarkup(fl.Field().String())
		})
		// Report JSON field names so messages match the request body.
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates v against its `validate` tags and returns Errors.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(Errors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, Error{Field: fieldPath(fe), Message: message(fe)})
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "nomarkup":
		return "must not contain HTML markup"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " items"
		}
		return "must be at least " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
