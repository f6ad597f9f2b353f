package models

import "fmt"

// Machine error codes surfaced in API responses and carried internally.
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeAuth         = "AUTH_ERROR"
	ErrCodeQuota        = "QUOTA_EXHAUSTED"
	ErrCodeFeatureGated = "FEATURE_GATED"
	ErrCodeNetwork      = "NETWORK_ERROR"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeBlocked      = "BLOCKED"
	ErrCodeHTTP         = "HTTP_ERROR"
	ErrCodeParse        = "PARSE_ERROR"
	ErrCodeDocument     = "DOCUMENT_ERROR"
	ErrCodeAbort        = "ABORTED"
	ErrCodeActionFailed = "ACTION_FAILED"
	ErrCodeRobots       = "ROBOTS_BLOCKED"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"

	// LLM extraction codes.
	ErrCodeLLMFailure     = "LLM_FAILURE"
	ErrCodeLLMAuthFailure = "LLM_AUTH_FAILURE"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code      string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// PeelError is the internal error type carrying a machine code.
// It implements the error interface and supports wrapping via Unwrap.
type PeelError struct {
	Code    string
	Message string

	// Status is the upstream HTTP status for ErrCodeHTTP errors.
	Status int

	// Retryable marks blocked/network errors worth retrying on another
	// rung or proxy.
	Retryable bool

	Err error
}

func (e *PeelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PeelError) Unwrap() error {
	return e.Err
}

// NewPeelError creates a PeelError.
func NewPeelError(code, message string, err error) *PeelError {
	return &PeelError{Code: code, Message: message, Err: err}
}

// NewHTTPError creates a PeelError for an upstream HTTP status.
func NewHTTPError(status int, message string) *PeelError {
	return &PeelError{
		Code:      ErrCodeHTTP,
		Message:   message,
		Status:    status,
		Retryable: status >= 500 || status == 429,
	}
}

// NewBlockedError creates a BLOCKED error; retryable blocks are worth
// another proxy or rung.
func NewBlockedError(message string, retryable bool) *PeelError {
	return &PeelError{Code: ErrCodeBlocked, Message: message, Retryable: retryable}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *PeelError) ToDetail(requestID string) *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message, RequestID: requestID}
}
