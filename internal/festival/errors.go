package festival

import (
	"errors"
	"fmt"
)

// Code classifies pipeline failures for machine consumption.
type Code string

// Failure codes surfaced by the pipeline entry points.
const (
	CodeSecurity        Code = "SECURITY"
	CodeValidation      Code = "VALIDATION"
	CodeExternalService Code = "EXTERNAL_SERVICE"
	CodeConflict        Code = "CONFLICT"
	CodeDatabase        Code = "DATABASE"
	CodeTimeout         Code = "TIMEOUT"
	CodeInternal        Code = "INTERNAL"
)

// Error carries a failure code alongside a human-readable message. The
// pipeline entry points never propagate errors to their caller; they convert
// them into success:false results, so Error exists mainly for classification
// between internal stages.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an Error.
func E(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the failure code from err, defaulting to INTERNAL.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeInternal
}

// MessageOf extracts the human-readable message from err.
func MessageOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}
