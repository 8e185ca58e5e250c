package core

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return "validation failed"
	}
	return err.Err.Error()
}

// Field returns the error message registered for `name`, if any.
func (err ValidationError) Field(name string) (string, bool) {
	for _, fe := range err.Fields {
		if fe.Field == name {
			return fe.Error, true
		}
	}
	return "", false
}

// IsValidationError reports whether the cause of err is a *ValidationError.
func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// translateValidationErrors converts validator.ValidationErrors into a *ValidationError.
func translateValidationErrors(err error, translator ut.Translator) error {
	vErrs, ok := errors.Cause(err).(validator.ValidationErrors)
	if !ok {
		return err
	}
	flds := make([]FieldError, 0, len(vErrs))
	for _, vErr := range vErrs {
		// drop the top level struct name: "NewBlueprint.sub_questions[0].label" -> "sub_questions[0].label"
		fld := vErr.Namespace()
		if i := strings.Index(fld, "."); i >= 0 {
			fld = fld[i+1:]
		}
		flds = append(flds, FieldError{Field: fld, Error: vErr.Translate(translator)})
	}
	return NewValidationError(errors.New("invalid input"), flds...)
}
