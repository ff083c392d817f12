package form

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownField      = errors.New("unknown field")
	ErrReporterIndex     = errors.New("reporter index out of range")
	ErrUnknownProperty   = errors.New("unknown authorizable property")
	ErrSubmitInProgress  = errors.New("submission already in progress")
	ErrAlreadySubmitted  = errors.New("form already submitted")
	ErrSubmit            = errors.New("submission failed")
	ErrInvariantViolated = errors.New("reporter list invariant violated")
)

// FieldError is a validation failure on one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every field that blocks a strict submission.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return "invalid form: " + strings.Join(parts, "; ")
}
