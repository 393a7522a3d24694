package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context, keeping the code of a wrapped AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// GetCode returns the code of the outermost AppError in the chain, otherwise "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether err carries the given code
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}

// Predefined error codes
const (
	CodeConfigInvalid           = "CONFIG_INVALID"
	CodeInvalidInput            = "INVALID_INPUT"
	CodeInputNotFound           = "INPUT_NOT_FOUND"
	CodeInputInvalid            = "INPUT_INVALID"
	CodeMissingColumn           = "MISSING_COLUMN"
	CodeFitFailed               = "FIT_FAILED"
	CodeRenderFailed            = "RENDER_FAILED"
	CodeEmptyResult             = "EMPTY_RESULT"
	CodeNoSignificantPredictors = "NO_SIGNIFICANT_PREDICTORS"
	CodeOutputFailed            = "OUTPUT_FAILED"
	CodeInternalError           = "INTERNAL_ERROR"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func InputNotFound(path string) *AppError {
	return Newf(CodeInputNotFound, "input file not found: %s", path)
}

func InputInvalid(path string, cause error) *AppError {
	return &AppError{
		Code:    CodeInputInvalid,
		Message: fmt.Sprintf("failed to read input %s", path),
		Cause:   cause,
	}
}

func MissingColumn(role, column string) *AppError {
	return Newf(CodeMissingColumn, "%s column '%s' not found in the dataset", role, column)
}

func FitFailed(segment string, cause error) *AppError {
	return &AppError{
		Code:    CodeFitFailed,
		Message: fmt.Sprintf("model fit failed for segment %s", segment),
		Cause:   cause,
	}
}

func RenderFailed(segment string, cause error) *AppError {
	return &AppError{
		Code:    CodeRenderFailed,
		Message: fmt.Sprintf("diagram rendering failed for segment %s", segment),
		Cause:   cause,
	}
}

func EmptyResult(message string) *AppError {
	return New(CodeEmptyResult, message)
}

func NoSignificantPredictors() *AppError {
	return New(CodeNoSignificantPredictors, "no significant predictors found in any segment")
}

func OutputFailed(path string, cause error) *AppError {
	return &AppError{
		Code:    CodeOutputFailed,
		Message: fmt.Sprintf("failed to write %s", path),
		Cause:   cause,
	}
}
