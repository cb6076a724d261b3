package common

import (
	"errors"
	"fmt"
)

var (
	// ErrPreconditionFailed marks collections that cannot run in the current process state.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrInvalidRequest marks malformed request parameters.
	ErrInvalidRequest = errors.New("invalid request")

	ErrUnknownProfile = errors.New("unknown profile")

	ErrHeapTracerMissing = fmt.Errorf("%w: a heap tracer must be installed to enable heap profiling", ErrPreconditionFailed)
	ErrHeapNotEnabled    = fmt.Errorf("%w: heap profiling is not enabled", ErrPreconditionFailed)
)

// InvalidParam builds an ErrInvalidRequest for a bad query parameter.
func InvalidParam(name, value, reason string) error {
	return fmt.Errorf("%w: %s=%q: %s", ErrInvalidRequest, name, value, reason)
}
