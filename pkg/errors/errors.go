// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Advisor.
// Guardrail rejections are ordinary values, not errors; this package covers
// configuration and infrastructure failures.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Advisor errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates a guardrail or service was misconfigured.
	// Raised at construction time, never during request handling.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// CodeContentBlocked indicates a blocked keyword refused the request.
	CodeContentBlocked ErrorCode = "CONTENT_BLOCKED"

	// CodeBudgetExceeded indicates the token ceiling refused the request.
	CodeBudgetExceeded ErrorCode = "BUDGET_EXCEEDED"

	// CodeRateLimited indicates the sliding-window quota was exhausted.
	CodeRateLimited ErrorCode = "RATE_LIMITED"

	// CodeToolBlocked indicates a tool call was refused by argument policy.
	CodeToolBlocked ErrorCode = "TOOL_BLOCKED"

	// CodeToolFailure indicates a tool execution failed.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeLLMError indicates an LLM provider error.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// AdvisorError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type AdvisorError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
	StatusCode  int // For HTTP responses
}

// Error implements the error interface.
func (e *AdvisorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *AdvisorError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *AdvisorError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Message     string                 `json:"message"`
		Code        string                 `json:"code"`
		Err         string                 `json:"error,omitempty"`
		Recoverable bool                   `json:"recoverable"`
		Context     map[string]interface{} `json:"context,omitempty"`
	}{
		Message:     e.Message,
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Context:     e.Context,
	})
}

// New creates a new AdvisorError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *AdvisorError {
	return &AdvisorError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		StatusCode: codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *AdvisorError) WithContext(key string, value interface{}) *AdvisorError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *AdvisorError) WithRecoverable(recoverable bool) *AdvisorError {
	e.Recoverable = recoverable
	return e
}

// AsAdvisorError attempts to convert an error to an AdvisorError.
// Returns the error as AdvisorError if it is one, or wraps it otherwise.
func AsAdvisorError(err error) *AdvisorError {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*AdvisorError); ok {
		return ae
	}
	return New(CodeInternal, "wrapped error", err)
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return 404
	case CodeInvalidInput, CodeInvalidConfig:
		return 400
	case CodeRateLimited:
		return 429
	case CodeContentBlocked, CodeBudgetExceeded, CodeToolBlocked:
		return 403
	default:
		return 500
	}
}
