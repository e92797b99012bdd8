package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a script runs past its limit.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrNotFunction is returned when calling a global that is not a function.
	ErrNotFunction = errors.New("not a function")

	// ErrCommandRejected is returned when on_command returns false.
	ErrCommandRejected = errors.New("command rejected by hook")

	// ErrBadHookResult is returned when a hook returns an unusable value.
	ErrBadHookResult = errors.New("hook returned a non-string value")
)
