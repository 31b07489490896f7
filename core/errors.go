package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures across every component.
type ErrorKind string

const (
	KindValidation          ErrorKind = "VALIDATION_ERROR"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindTimeout             ErrorKind = "TIMEOUT"
	KindRateLimited         ErrorKind = "RATE_LIMITED"
	KindExecution           ErrorKind = "EXECUTION_ERROR"
	KindDegradedParse       ErrorKind = "DEGRADED_PARSE"
	KindConfiguration       ErrorKind = "CONFIGURATION_ERROR"
	KindAgentNotInitialized ErrorKind = "AGENT_NOT_INITIALIZED"
	KindAgentShutDown       ErrorKind = "AGENT_SHUT_DOWN"
	KindConflict            ErrorKind = "CONFLICT"
)

// Error is the single error type used by the engine. Op names the failing
// operation, Details carries per-item violations (e.g. every invalid tool
// argument) and Err the wrapped cause.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " ")))
	}
	if len(e.Details) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Details, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors of the same kind, so errors.Is(err, ErrTimeout)
// holds for every timeout regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrRateLimited         = &Error{Kind: KindRateLimited}
	ErrExecution           = &Error{Kind: KindExecution}
	ErrDegradedParse       = &Error{Kind: KindDegradedParse}
	ErrConfiguration       = &Error{Kind: KindConfiguration}
	ErrAgentNotInitialized = &Error{Kind: KindAgentNotInitialized, Message: "agent not initialized"}
	ErrAgentShutDown       = &Error{Kind: KindAgentShutDown, Message: "agent already shut down"}
	ErrConflict            = &Error{Kind: KindConflict}
)

// NewValidationError builds a validation error listing every violation.
func NewValidationError(op, msg string, details ...string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg, Details: details}
}

// NewNotFoundError reports an unknown entity (task, tool, model, memory).
func NewNotFoundError(op, what, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %q not found", what, id)}
}

// NewTimeoutError reports an attempt that exceeded its deadline.
func NewTimeoutError(op string, err error) *Error {
	return &Error{Kind: KindTimeout, Op: op, Message: "deadline exceeded", Err: err}
}

// NewRateLimitError reports a rejected request due to a full rate window.
func NewRateLimitError(op, key string) *Error {
	return &Error{Kind: KindRateLimited, Op: op, Message: fmt.Sprintf("rate limit exceeded for %s", key)}
}

// NewExecutionError wraps a tool, shell or model backend failure.
func NewExecutionError(op string, err error) *Error {
	return &Error{Kind: KindExecution, Op: op, Err: err}
}

// NewDegradedParseError reports structured output that failed to parse.
func NewDegradedParseError(op string, err error) *Error {
	return &Error{Kind: KindDegradedParse, Op: op, Message: "structured output did not parse", Err: err}
}

// NewConfigurationError reports invalid static configuration.
func NewConfigurationError(op, msg string) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: msg}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindExecution for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExecution
}

// IsRetryable reports whether an orchestrator retry can change the outcome.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindConfiguration, KindAgentNotInitialized, KindAgentShutDown, KindConflict:
		return false
	}
	return true
}
