package idmsdk

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthenticationFailed is matched by every negotiation failure,
	// whatever step produced it.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNotAuthenticated is returned by calls that need a bearer token
	// when no negotiation has succeeded yet.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// ============================================================================
// TransportError
// ============================================================================

// TransportError reports a failed round trip: a non-200 status, a
// connection failure, or a body that could not be decoded.
// StatusCode is zero when no HTTP status was received or the failure
// happened after a 200.
type TransportError struct {
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("transport error: HTTP %d: %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("transport error: HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return "transport error: " + e.Err.Error()
	default:
		return "transport error"
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ============================================================================
// AuthError
// ============================================================================

// AuthErrorKind narrows down why a negotiation failed.
type AuthErrorKind int

const (
	// UnexpectedState means the server answered a step with a state that
	// does not follow from it.
	UnexpectedState AuthErrorKind = iota
	// MechanismUnavailable means the desired mechanism was not offered.
	MechanismUnavailable
	// Denied means the server explicitly denied the negotiation.
	Denied
)

func (k AuthErrorKind) String() string {
	switch k {
	case UnexpectedState:
		return "unexpected state"
	case MechanismUnavailable:
		return "mechanism unavailable"
	case Denied:
		return "denied"
	default:
		return fmt.Sprintf("AuthErrorKind(%d)", int(k))
	}
}

// AuthError is a negotiation failure. It matches ErrAuthenticationFailed
// with errors.Is; Kind and Reason are diagnostics only.
type AuthError struct {
	Kind AuthErrorKind

	// Step is the step after which the failure was detected
	// ("init", "begin" or "cred").
	Step string

	// Reason is the server's denial text, or a description of what was
	// received instead of the expected state.
	Reason string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("authentication failed at %s: %s", e.Step, e.Kind)
	}
	return fmt.Sprintf("authentication failed at %s: %s: %s", e.Step, e.Kind, e.Reason)
}

// Is reports whether target is ErrAuthenticationFailed.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}

// unexpected builds the error for a state that does not follow from step.
func unexpected(step string, state AuthState) error {
	if denied, ok := state.(StateDenied); ok {
		return &AuthError{Kind: Denied, Step: step, Reason: denied.Reason}
	}
	return &AuthError{Kind: UnexpectedState, Step: step, Reason: fmt.Sprintf("got %s", stateName(state))}
}

func stateName(state AuthState) string {
	switch state.(type) {
	case StateChoose:
		return "choose"
	case StateContinue:
		return "continue"
	case StateDenied:
		return "denied"
	case StateSuccess:
		return "success"
	default:
		return fmt.Sprintf("%T", state)
	}
}
