package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown       ErrorCode = "UNKNOWN"
	ErrInternal      ErrorCode = "INTERNAL"
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"

	// State file errors
	ErrManifestParse ErrorCode = "MANIFEST_PARSE"
	ErrLockfileParse ErrorCode = "LOCKFILE_PARSE"

	// Planning errors. These are raised before anything touches the disk.
	ErrResolutionConflict ErrorCode = "RESOLUTION_CONFLICT"
	ErrInvalidSelector    ErrorCode = "INVALID_SELECTOR"

	// Execution errors
	ErrFilesystem      ErrorCode = "FILESYSTEM"
	ErrPipelineAborted ErrorCode = "PIPELINE_ABORTED"
	ErrLifecycle       ErrorCode = "LIFECYCLE"
)

// ArborError represents a structured error with code and details
type ArborError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *ArborError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *ArborError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *ArborError) Is(target error) bool {
	var targetErr *ArborError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new ArborError with the given code and message
func New(code ErrorCode, message string) *ArborError {
	return &ArborError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new ArborError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *ArborError {
	return &ArborError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with an ArborError
func Wrap(err error, code ErrorCode, message string) *ArborError {
	if err == nil {
		return nil
	}
	return &ArborError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *ArborError {
	if err == nil {
		return nil
	}
	return &ArborError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *ArborError) WithDetail(key string, value interface{}) *ArborError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *ArborError) WithDetails(details map[string]interface{}) *ArborError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// IsErrorCode reports whether any error in err's chain carries the given code.
// A PIPELINE_ABORTED error wrapping a FILESYSTEM error matches both codes.
func IsErrorCode(err error, code ErrorCode) bool {
	for err != nil {
		var arborErr *ArborError
		if !errors.As(err, &arborErr) {
			return false
		}
		if arborErr.Code == code {
			return true
		}
		err = arborErr.Wrapped
	}
	return false
}

// GetErrorCode returns the outermost error code, or ErrUnknown if not an ArborError
func GetErrorCode(err error) ErrorCode {
	var arborErr *ArborError
	if errors.As(err, &arborErr) {
		return arborErr.Code
	}
	return ErrUnknown
}

// RootCode returns the innermost error code in the chain. For an aborted
// pipeline this is the kind of the action that failed.
func RootCode(err error) ErrorCode {
	code := ErrUnknown
	for err != nil {
		var arborErr *ArborError
		if !errors.As(err, &arborErr) {
			break
		}
		code = arborErr.Code
		err = arborErr.Wrapped
	}
	return code
}

// GetErrorDetails returns the details from an error, or nil if not an ArborError
func GetErrorDetails(err error) map[string]interface{} {
	var arborErr *ArborError
	if errors.As(err, &arborErr) {
		return arborErr.Details
	}
	return nil
}
