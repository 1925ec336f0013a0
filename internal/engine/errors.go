// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	ErrCodeElementNotFound   ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeElementTimeout    ErrorCode = "ELEMENT_TIMEOUT"
	ErrCodeNavigationTimeout ErrorCode = "NAVIGATION_TIMEOUT"
	ErrCodeDecode            ErrorCode = "DECODE_ERROR"
	ErrCodeMalformedSecret   ErrorCode = "MALFORMED_SECRET"
	ErrCodeNoDataCaptured    ErrorCode = "NO_DATA_CAPTURED"
	ErrCodeSchemaMismatch    ErrorCode = "SCHEMA_MISMATCH"
	ErrCodeSessionMissing    ErrorCode = "SESSION_MISSING"
	ErrCodeBrowser           ErrorCode = "BROWSER_ERROR"
	ErrCodeParse             ErrorCode = "PARSE_ERROR"
	ErrCodeBootstrapState    ErrorCode = "BOOTSTRAP_STATE"
)

// Template errors for errors.Is checks. Matching compares codes only.
var (
	ErrElementNotFound   = &EngineError{Code: ErrCodeElementNotFound, Message: "element not found"}
	ErrElementTimeout    = &EngineError{Code: ErrCodeElementTimeout, Message: "element did not appear in time"}
	ErrNavigationTimeout = &EngineError{Code: ErrCodeNavigationTimeout, Message: "page did not settle in time"}
	ErrDecode            = &EngineError{Code: ErrCodeDecode, Message: "QR decode failed"}
	ErrMalformedSecret   = &EngineError{Code: ErrCodeMalformedSecret, Message: "malformed OTP secret"}
	ErrNoDataCaptured    = &EngineError{Code: ErrCodeNoDataCaptured, Message: "no data captured"}
	ErrSchemaMismatch    = &EngineError{Code: ErrCodeSchemaMismatch, Message: "schema mismatch"}
	ErrSessionMissing    = &EngineError{Code: ErrCodeSessionMissing, Message: "session state missing"}
	ErrBrowser           = &EngineError{Code: ErrCodeBrowser, Message: "browser error"}
	ErrParse             = &EngineError{Code: ErrCodeParse, Message: "parse error"}
	ErrBootstrapState    = &EngineError{Code: ErrCodeBootstrapState, Message: "invalid bootstrap step"}
)

// EngineError wraps errors with additional context
type EngineError struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is checks if the error matches the target
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewEngineError creates a new EngineError
func NewEngineError(code ErrorCode, message string, err error) *EngineError {
	return &EngineError{
		Code:       code,
		Message:    message,
		Underlying: err,
		Details:    make(map[string]interface{}),
	}
}

// WithDetail adds a detail to the error
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// CodeOf returns the code carried by err, or "" when err is not an EngineError.
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}
