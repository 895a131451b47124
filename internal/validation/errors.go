// Package validation holds the user-correctable error type shared by every
// domain service and the request validator that produces it.
package validation

import (
	"errors"
	"strings"
)

// ErrValidation matches every Error and Errors value.
var ErrValidation = errors.New("validation failed")

// Error reports a missing or malformed field.
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e Error) Is(target error) bool { return target == ErrValidation }

// Errors aggregates field errors found in one value.
type Errors []Error

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Error())
	}
	return strings.Join(parts, "; ")
}

func (e Errors) Is(target error) bool { return target == ErrValidation }

// Required returns an Error for an empty required field.
func Required(field string) Error {
	return Error{Field: field, Message: "is required"}
}

// Fields flattens err into field errors. Non-validation errors yield nil.
func Fields(err error) []Error {
	var many Errors
	if errors.As(err, &many) {
		return many
	}
	var one Error
	if errors.As(err, &one) {
		return []Error{one}
	}
	return nil
}
