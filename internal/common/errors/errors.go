// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Input and configuration
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeConfigMissing ErrorCode = "CONFIG_MISSING"
	ErrCodeUnknownAgent  ErrorCode = "UNKNOWN_AGENT"
	ErrCodeOutOfScope    ErrorCode = "OUT_OF_SCOPE"

	// Pipeline stages
	ErrCodeRouteFailed      ErrorCode = "ROUTE_FAILED"
	ErrCodeSpecialistFailed ErrorCode = "SPECIALIST_FAILED"
	ErrCodeAuditFailed      ErrorCode = "AUDIT_FAILED"
	ErrCodeSearchFailed     ErrorCode = "SEARCH_FAILED"

	// Completion backend
	ErrCodeLLMTimeout         ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMRateLimited     ErrorCode = "LLM_RATE_LIMITED"
	ErrCodeLLMAuthFailed      ErrorCode = "LLM_AUTH_FAILED"
	ErrCodeLLMMalformedOutput ErrorCode = "LLM_MALFORMED_OUTPUT"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError is raised for job variables that cannot be used.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false)
}

// NewConfigMissingError is raised when a required credential or resource
// is not configured. Never retried.
func NewConfigMissingError(what string) *StandardError {
	return newError(ErrCodeConfigMissing, "Required configuration is missing", what, false)
}

func NewUnknownAgentError(agent string) *StandardError {
	return newError(ErrCodeUnknownAgent, "Unknown specialist agent", agent, false)
}

func NewOutOfScopeError(reason string) *StandardError {
	return newError(ErrCodeOutOfScope, "Question is outside the supported domains", reason, false)
}

func NewRouteFailedError(err error) *StandardError {
	return newError(ErrCodeRouteFailed, "Routing failed", err.Error(), true)
}

func NewSpecialistFailedError(agent string, err error) *StandardError {
	e := newError(ErrCodeSpecialistFailed, "Specialist failed", err.Error(), true)
	e.Metadata = map[string]interface{}{"agent": agent}
	return e
}

func NewAuditFailedError(err error) *StandardError {
	return newError(ErrCodeAuditFailed, "Audit failed", err.Error(), true)
}

func NewSearchFailedError(err error) *StandardError {
	return newError(ErrCodeSearchFailed, "Web search failed", err.Error(), true)
}

func NewLLMTimeoutError() *StandardError {
	return newError(ErrCodeLLMTimeout, "Completion backend timed out", "", true)
}

func NewLLMRateLimitedError(details string) *StandardError {
	return newError(ErrCodeLLMRateLimited, "Completion backend rate limit exceeded", details, true)
}

func NewLLMAuthFailedError(details string) *StandardError {
	return newError(ErrCodeLLMAuthFailed, "Completion backend rejected the API key", details, false)
}

func NewLLMMalformedOutputError(details string) *StandardError {
	return newError(ErrCodeLLMMalformedOutput, "Completion backend returned malformed output", details, true)
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:       "INVALID_INPUT",
	ErrCodeConfigMissing:      "CONFIG_MISSING",
	ErrCodeUnknownAgent:       "UNKNOWN_AGENT",
	ErrCodeOutOfScope:         "OUT_OF_SCOPE",
	ErrCodeRouteFailed:        "ROUTE_FAILED",
	ErrCodeSpecialistFailed:   "SPECIALIST_FAILED",
	ErrCodeAuditFailed:        "AUDIT_FAILED",
	ErrCodeSearchFailed:       "SEARCH_FAILED",
	ErrCodeLLMTimeout:         "LLM_TIMEOUT",
	ErrCodeLLMRateLimited:     "LLM_RATE_LIMITED",
	ErrCodeLLMAuthFailed:      "LLM_AUTH_FAILED",
	ErrCodeLLMMalformedOutput: "LLM_MALFORMED_OUTPUT",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeRouteFailed,
		ErrCodeSpecialistFailed,
		ErrCodeAuditFailed,
		ErrCodeLLMRateLimited:
		return 3

	case ErrCodeSearchFailed,
		ErrCodeLLMMalformedOutput:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0 // Business and configuration errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "LLM"):
		return "COMPLETION"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "ROUTE") || strings.Contains(codeStr, "AGENT") || codeStr == string(ErrCodeOutOfScope):
		return "ROUTING"
	case strings.Contains(codeStr, "SPECIALIST") || strings.Contains(codeStr, "AUDIT"):
		return "PIPELINE"
	case strings.Contains(codeStr, "CONFIG") || strings.Contains(codeStr, "INPUT"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
