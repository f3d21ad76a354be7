package sandbox

import (
	"errors"
	"fmt"
)

// Script execution errors.
var (
	// ErrScriptLoad is returned when bundle or script evaluation leaves an
	// exception behind. Match the message with *ScriptLoadError.
	ErrScriptLoad = errors.New("script load failed")

	// ErrRuntimeException is recorded when a deferred guest callback throws.
	ErrRuntimeException = errors.New("script runtime exception")

	// ErrInvalidReturnShape is returned when a resolved value does not
	// coerce into the shape the caller expects.
	ErrInvalidReturnShape = errors.New("invalid return shape")
)

// Bridge errors.
var (
	// ErrContextUnavailable is returned when no Ready environment exists,
	// or the environment was discarded before the call settled.
	ErrContextUnavailable = errors.New("execution context unavailable")

	// ErrFunctionNotFound is returned when the named global is not a function.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrInvocationFailed is returned when the call throws synchronously
	// or returns no value.
	ErrInvocationFailed = errors.New("invocation failed")

	// ErrRejectedByScript is returned when the returned promise rejects.
	// Match the message with *RejectedError.
	ErrRejectedByScript = errors.New("rejected by script")
)

// ScriptLoadError carries the captured exception message of a failed load
type ScriptLoadError struct {
	Message string
}

func (e *ScriptLoadError) Error() string {
	return fmt.Sprintf("script load failed: %s", e.Message)
}

// Is lets errors.Is(err, ErrScriptLoad) match.
func (e *ScriptLoadError) Is(target error) bool {
	return target == ErrScriptLoad
}

// RejectedError carries the string form of a promise rejection value
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected by script: %s", e.Message)
}

// Is lets errors.Is(err, ErrRejectedByScript) match.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejectedByScript
}
