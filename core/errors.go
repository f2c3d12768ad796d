package core

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of machine-readable failure codes used by
// synchronous errors and by failed InvokeResults. Codes are grouped by area:
// state_*, artifact_*, content_*, agent_*, dispatch_*, plan_*, persist_*.
type ErrorCode string

const (
	CodeStateInvalidKey   ErrorCode = "state_invalid_key"
	CodeStateInvalidValue ErrorCode = "state_invalid_value"

	CodeArtifactNotFound    ErrorCode = "artifact_not_found"
	CodeArtifactTooLarge    ErrorCode = "artifact_too_large"
	CodeArtifactInvalidName ErrorCode = "artifact_invalid_name"

	CodeContentInvalidPayload   ErrorCode = "content_invalid_payload"
	CodeContentInvalidTimestamp ErrorCode = "content_invalid_timestamp"

	CodeAgentCapabilityNotFound ErrorCode = "agent_capability_not_found"
	CodeAgentInvalidParams      ErrorCode = "agent_invalid_params"
	CodeAgentInvocationFailed   ErrorCode = "agent_invocation_failed"
	// CodeAgentTimeout is reserved for handlers; the dispatcher never raises it.
	CodeAgentTimeout ErrorCode = "agent_timeout"

	CodeDispatchNoAgentForCapability ErrorCode = "dispatch_no_agent_for_capability"

	CodePlanGenerationFailed ErrorCode = "plan_generation_failed"
	CodePlanInvalidFormat    ErrorCode = "plan_invalid_format"
	CodePlanLLMError         ErrorCode = "plan_llm_error"

	CodePersistFileNotFound   ErrorCode = "persist_file_not_found"
	CodePersistSchemaMismatch ErrorCode = "persist_schema_mismatch"
	CodePersistSaveFailed     ErrorCode = "persist_save_failed"
	CodePersistLoadFailed     ErrorCode = "persist_load_failed"

	CodeValidation ErrorCode = "validation_error"
)

var knownCodes = map[ErrorCode]struct{}{
	CodeStateInvalidKey: {}, CodeStateInvalidValue: {},
	CodeArtifactNotFound: {}, CodeArtifactTooLarge: {}, CodeArtifactInvalidName: {},
	CodeContentInvalidPayload: {}, CodeContentInvalidTimestamp: {},
	CodeAgentCapabilityNotFound: {}, CodeAgentInvalidParams: {},
	CodeAgentInvocationFailed: {}, CodeAgentTimeout: {},
	CodeDispatchNoAgentForCapability: {},
	CodePlanGenerationFailed: {}, CodePlanInvalidFormat: {}, CodePlanLLMError: {},
	CodePersistFileNotFound: {}, CodePersistSchemaMismatch: {},
	CodePersistSaveFailed: {}, CodePersistLoadFailed: {},
	CodeValidation: {},
}

// Valid reports whether c belongs to the closed code set.
func (c ErrorCode) Valid() bool {
	_, ok := knownCodes[c]
	return ok
}

// Error is the typed error returned by every synchronous operation of the
// core. Two Errors match under errors.Is when their codes are equal, so the
// sentinels below can be used for classification:
//
//	if errors.Is(err, core.ErrArtifactNotFound) { ... }
type Error struct {
	Code    ErrorCode      `json:"error_code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

// NewError creates an Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error that wraps a lower level cause.
func WrapError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithDetails attaches structured details and returns the receiver.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("kaizen [%s]: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("kaizen [%s]: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the ErrorCode from err, or "" when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Sentinels for errors.Is classification.
var (
	ErrInvalidKey          = &Error{Code: CodeStateInvalidKey}
	ErrInvalidValue        = &Error{Code: CodeStateInvalidValue}
	ErrArtifactNotFound    = &Error{Code: CodeArtifactNotFound}
	ErrArtifactTooLarge    = &Error{Code: CodeArtifactTooLarge}
	ErrInvalidArtifactName = &Error{Code: CodeArtifactInvalidName}
	ErrInvalidPayload      = &Error{Code: CodeContentInvalidPayload}
	ErrInvalidTimestamp    = &Error{Code: CodeContentInvalidTimestamp}
	ErrFileNotFound        = &Error{Code: CodePersistFileNotFound}
	ErrSchemaMismatch      = &Error{Code: CodePersistSchemaMismatch}
	ErrSaveFailed          = &Error{Code: CodePersistSaveFailed}
	ErrLoadFailed          = &Error{Code: CodePersistLoadFailed}
	ErrValidation          = &Error{Code: CodeValidation}
)
