// Package errors provides coded errors for the discovery job.
// Codes let the entry point and tests tell fatal stages apart without string matching.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes for programmatic handling
type Code string

const (
	// Configuration errors (1xx)
	CodeMissingConfig Code = "E101"
	CodeInvalidConfig Code = "E102"

	// Warehouse errors (2xx)
	CodeQueryFailed Code = "E201"

	// Discovery errors (3xx)
	CodeDiscoveryFailed  Code = "E301"
	CodeConversionFailed Code = "E302"

	// Rendering errors (4xx)
	CodeRenderFailed Code = "E401"

	// Output errors (5xx)
	CodeUploadFailed     Code = "E501"
	CodeLocalWriteFailed Code = "E502"

	// System errors (6xx)
	CodeCanceled Code = "E601"

	// Unknown
	CodeUnknown Code = "E999"
)

// Error is the base error type for all job errors.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new Error.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a code and message.
// A nil err yields nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) error {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// --- Convenience constructors ---

// MissingConfig reports a required parameter that was not provided.
func MissingConfig(name, hint string) *Error {
	e := New(CodeMissingConfig, name+" env var is required").WithContext("param", name)
	if hint != "" {
		e.WithContext("example", hint)
	}
	return e
}

// InvalidConfig reports a parameter that could not be parsed.
func InvalidConfig(name, value string, cause error) *Error {
	return &Error{
		Code:    CodeInvalidConfig,
		Message: "invalid value for " + name,
		Cause:   cause,
		Context: map[string]interface{}{"param": name, "value": value},
	}
}

// UploadFailed reports a failed write of a remote object.
func UploadFailed(err error, key string) *Error {
	return &Error{
		Code:    CodeUploadFailed,
		Message: "upload failed",
		Cause:   err,
		Context: map[string]interface{}{"key": key},
	}
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var jobErr *Error
	if errors.As(err, &jobErr) {
		return jobErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var jobErr *Error
	if errors.As(err, &jobErr) {
		return jobErr.Code
	}
	return CodeUnknown
}

// ExitCode maps an error to a process exit status.
// Configuration problems exit with 2 so schedulers can tell them apart from runtime failures.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetCode(err) {
	case CodeMissingConfig, CodeInvalidConfig:
		return 2
	case CodeCanceled:
		return 130
	default:
		return 1
	}
}
