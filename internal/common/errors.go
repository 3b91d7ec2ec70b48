package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel that belongs to the error's code, so callers can
// test with errors.Is(err, ErrStorageFault) without the cause carrying it.
func (e *AppError) Is(target error) bool {
	s, ok := sentinels[e.Code]
	return ok && s == target
}

// Error codes
const (
	CodeUnresolvableSchema = "UNRESOLVABLE_SCHEMA"
	CodeStorageFault       = "STORAGE_FAULT"
	CodeParseFault         = "PARSE_FAULT"
	CodeConfig             = "CONFIG_ERROR"
)

// Common application errors
var (
	ErrUnresolvableSchema = errors.New("unresolvable schema")
	ErrStorageFault       = errors.New("storage fault")
	ErrParseFault         = errors.New("parse fault")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("resource not found")
)

var sentinels = map[string]error{
	CodeUnresolvableSchema: ErrUnresolvableSchema,
	CodeStorageFault:       ErrStorageFault,
	CodeParseFault:         ErrParseFault,
	CodeConfig:             ErrInvalidInput,
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func StorageFault(message string, cause error) *AppError {
	return NewAppError(CodeStorageFault, message, cause)
}

func ParseFault(message string, cause error) *AppError {
	return NewAppError(CodeParseFault, message, cause)
}

func UnresolvableSchema(message string) *AppError {
	return NewAppError(CodeUnresolvableSchema, message, nil)
}

// CodeOf returns the code of the first AppError in err's chain, or "" when
// there is none.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
