// Package validate wraps go-playground/validator with a shared instance.
//
// Types declare their constraints as struct tags, e.g.
//
//	type TimingRequest struct {
//		Width int `validate:"gt=0"`
//	}
package validate

import (
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

// get returns the process-wide validator.
func get() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInst = validator.New(validator.WithRequiredStructEnabled())
	})
	return validatorInst
}

// Struct validates a struct using the shared validator instance.
func Struct(v any) error {
	return get().Struct(v)
}

// Var validates a single variable against the provided tag constraints.
func Var(field any, tag string) error {
	return get().Var(field, tag)
}

// FieldFailure describes the first failing field of a validation error.
type FieldFailure struct {
	Field string
	Tag   string
	Param string
	Value any
}

// FirstFailure extracts the first field failure from err.
// Returns false when err is not a validator error.
func FirstFailure(err error) (FieldFailure, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return FieldFailure{}, false
	}
	fe := verrs[0]
	return FieldFailure{
		Field: fe.Field(),
		Tag:   fe.Tag(),
		Param: fe.Param(),
		Value: fe.Value(),
	}, true
}
