package workflow

import "errors"

var (
	// ErrNotFound is returned when the request does not exist
	ErrNotFound = errors.New("request not found")

	// ErrUnauthenticated is returned when no caller identity can be resolved
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized is returned when the caller's roles or ownership do not satisfy a guard
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrValidation is returned when a payload is missing required fields
	ErrValidation = errors.New("validation failed")

	// ErrConcurrentModification is returned when another transition won the race
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrInvalidState is returned when a state is not declared for the machine
	ErrInvalidState = errors.New("invalid state")
)

// Error kinds reported to callers and metrics
const (
	KindNotFound               = "not_found"
	KindUnauthenticated        = "unauthenticated"
	KindUnauthorized           = "unauthorized"
	KindInvalidTransition      = "invalid_transition"
	KindValidation             = "validation"
	KindConcurrentModification = "concurrent_modification"
	KindInvalidState           = "invalid_state"
	KindInternal               = "internal"
)

// Kind classifies an error by the sentinel it wraps
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConcurrentModification):
		return KindConcurrentModification
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	default:
		return KindInternal
	}
}

// IsRetryable reports whether the caller may retry the read-then-transition
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
