// Package errors provides structured error types for clawprobe
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Error represents a clawprobe error with structured information.
// Error() renders only the human-readable message (and cause); the code
// is kept for programmatic checks.
type Error struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Platform   string                 `json:"platform,omitempty"`
	StatusCode int                    `json:"status_code,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Retryable  bool                   `json:"retryable"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// IsRetryable returns whether the error is retryable
func (e *Error) IsRetryable() bool {
	return e.Retryable || IsRetryable(e.Code)
}

// WithPlatform sets the platform
func (e *Error) WithPlatform(platform string) *Error {
	e.Platform = platform
	return e
}

// WithStatusCode records the HTTP status that produced the error
func (e *Error) WithStatusCode(status int) *Error {
	e.StatusCode = status
	return e
}

// WithMetadata adds metadata
func (e *Error) WithMetadata(key string, value interface{}) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithRetryable overrides the default retryability for the code
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// New creates a new error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a new error with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error
func Wrap(err error, code ErrorCode, message string) *Error {
	e := New(code, message)
	e.Cause = err
	return e
}

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryableError reports whether err (or its chain) is retryable
func IsRetryableError(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.IsRetryable()
	}
	return false
}

// HasCode reports whether err's chain contains an *Error with code
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &Error{Code: code})
}
