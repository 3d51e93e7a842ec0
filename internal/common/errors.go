package common

import (
	"errors"
	"fmt"
)

// Error codes for the per-document failure taxonomy. Every code is fatal for
// the document it occurred on; none aborts the batch.
const (
	CodeConfiguration     = "CONFIGURATION"      // missing mapping/profile/credential
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT" // file kind not recognized
	CodeNetwork           = "NETWORK"            // timeout or transport failure to the AI provider
	CodeProvider          = "PROVIDER"           // non-2xx or malformed schema response
	CodeParse             = "PARSE"              // spreadsheet/table structurally unreadable
)

// AppError represents application-specific errors.
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

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func ConfigurationError(message string, cause error) *AppError {
	return NewAppError(CodeConfiguration, message, cause)
}

func ConfigurationErrorf(format string, args ...interface{}) *AppError {
	return NewAppError(CodeConfiguration, fmt.Sprintf(format, args...), nil)
}

func UnsupportedFormatErrorf(format string, args ...interface{}) *AppError {
	return NewAppError(CodeUnsupportedFormat, fmt.Sprintf(format, args...), nil)
}

func NetworkError(message string, cause error) *AppError {
	return NewAppError(CodeNetwork, message, cause)
}

func ProviderError(message string, cause error) *AppError {
	return NewAppError(CodeProvider, message, cause)
}

func ParseError(message string, cause error) *AppError {
	return NewAppError(CodeParse, message, cause)
}

// CodeOf returns the taxonomy code of err, or "" for plain errors.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
