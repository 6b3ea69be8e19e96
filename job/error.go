package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Code is the failure category of an Error. Codes form a closed set shared
// by every layer, so callers can branch on them without parsing messages.
type Code string

const (
	// CodeInvalid means a value was present but not acceptable.
	CodeInvalid Code = "INVALID"
	// CodeMissing means a required value was absent.
	CodeMissing Code = "MISSING"
	// CodeWrongType means a value had the wrong shape.
	CodeWrongType Code = "WRONG_TYPE"
	// CodeActionNotFound means the requested action is not registered.
	CodeActionNotFound Code = "ACTION_NOT_FOUND"
	// CodeServerError means the server failed while handling the request.
	CodeServerError Code = "SERVER_ERROR"
	// CodeUnknown is used when a fault carried no errors of its own, or an
	// error carried a code outside the set.
	CodeUnknown Code = "UNKNOWN"
)

// Valid reports whether c is one of the defined codes.
func (c Code) Valid() bool {
	switch c {
	case CodeInvalid, CodeMissing, CodeWrongType, CodeActionNotFound, CodeServerError, CodeUnknown:
		return true
	default:
		return false
	}
}

// Error is an immutable description of one failure.
type Error struct {
	Code    Code   `json:"code" msgpack:"code" mapstructure:"code"`
	Message string `json:"message" msgpack:"message" mapstructure:"message"`
	Field   string `json:"field" msgpack:"field" mapstructure:"field"`
}

// NewError builds an Error.
func NewError(code Code, message, field string) Error {
	return Error{Code: code, Message: message, Field: field}
}

// String renders the error as "field: message (code)".
func (e Error) String() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Code)
}

// ToMap returns the error as a plain mapping for serializers.
func (e Error) ToMap() map[string]any {
	return map[string]any{
		"code":    string(e.Code),
		"message": e.Message,
		"field":   e.Field,
	}
}

// normalize guarantees a fault has at least one error, that every error
// names a field (falling back to the given path) and that every code is
// in the defined set.
func normalize(errs []Error, fallbackField string) []Error {
	if len(errs) == 0 {
		return []Error{{Code: CodeUnknown, Message: "an unknown error occurred", Field: fallbackField}}
	}
	out := make([]Error, len(errs))
	for i, e := range errs {
		if e.Field == "" {
			e.Field = fallbackField
		}
		if !e.Code.Valid() {
			e.Code = CodeUnknown
		}
		out[i] = e
	}
	return out
}

func joinErrors(prefix string, errs []Error) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.String()
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// ──────────────────────────────────────────────────
// Faults
// ──────────────────────────────────────────────────

// JobError rejects a whole job. No response is produced when it is returned.
type JobError struct {
	Errors []Error
}

// NewJobError builds a JobError. Errors without a field are attributed to
// "control".
func NewJobError(errs ...Error) *JobError {
	return &JobError{Errors: normalize(errs, "control")}
}

func (e *JobError) Error() string { return joinErrors("job error", e.Errors) }

// Normalized returns the error list with the same guarantees NewJobError
// gives, for JobErrors built as struct literals.
func (e *JobError) Normalized() []Error { return normalize(e.Errors, "control") }

// ToMap returns the error list as plain mappings.
func (e *JobError) ToMap() map[string]any {
	return map[string]any{"errors": errorsToMaps(e.Errors)}
}

// ActionError fails a single action. The executor converts it into the
// action's response errors; it never leaves the invoker.
type ActionError struct {
	Errors []Error
}

// NewActionError builds an ActionError. Errors without a field are
// attributed to "body".
func NewActionError(errs ...Error) *ActionError {
	return &ActionError{Errors: normalize(errs, "body")}
}

func (e *ActionError) Error() string { return joinErrors("action error", e.Errors) }

// Normalized returns the error list with the same guarantees NewActionError
// gives, for ActionErrors built as struct literals.
func (e *ActionError) Normalized() []Error { return normalize(e.Errors, "body") }

// HandlerFault reports that an action handler crashed: it returned an error
// that is not an ActionError, or it panicked. It is neither recoverable at
// the action level nor a request-level rejection.
type HandlerFault struct {
	Action string
	Cause  error
	// Panic holds the recovered value when the handler panicked.
	Panic any
	// Stack is the goroutine stack captured at recovery time.
	Stack string
}

// NewHandlerFault wraps a handler error.
func NewHandlerFault(action string, cause error) *HandlerFault {
	return &HandlerFault{Action: action, Cause: cause}
}

func (e *HandlerFault) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("panic in action %s: %v", e.Action, e.Panic)
	}
	return fmt.Sprintf("action %s failed: %v", e.Action, e.Cause)
}

func (e *HandlerFault) Unwrap() error { return e.Cause }

// ──────────────────────────────────────────────────
// Classification
// ──────────────────────────────────────────────────

// IsJobError reports whether err is or wraps a *JobError.
func IsJobError(err error) bool {
	var je *JobError
	return errors.As(err, &je)
}

// IsActionError reports whether err is or wraps an *ActionError.
func IsActionError(err error) bool {
	var ae *ActionError
	return errors.As(err, &ae)
}

// IsHandlerFault reports whether err is or wraps a *HandlerFault.
func IsHandlerFault(err error) bool {
	var hf *HandlerFault
	return errors.As(err, &hf)
}

// Kind maps an error to a stable label for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsJobError(err):
		return "job_error"
	case IsActionError(err):
		return "action_error"
	case IsHandlerFault(err):
		return "handler_fault"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

func errorsToMaps(errs []Error) []any {
	out := make([]any, len(errs))
	for i, e := range errs {
		out[i] = e.ToMap()
	}
	return out
}
