package negotiate

import (
	"errors"
	"fmt"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrRoleViolation = errors.New("operation not permitted for this role")
)

// NegotiationError wraps a failure with the operation that produced it.
type NegotiationError struct {
	Op      string
	Err     error
	Details string
}

func (e *NegotiationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *NegotiationError {
	return &NegotiationError{Op: op, Err: err}
}

func wrapError(op string, err error, details string) *NegotiationError {
	return &NegotiationError{Op: op, Err: err, Details: details}
}
