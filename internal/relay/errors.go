package relay

import (
	"errors"
	"fmt"
)

// ErrorKind tags a failure for logging. All kinds surface to the user as
// the same failure status.
type ErrorKind string

const (
	KindUnknown      ErrorKind = "unknown"
	KindTransport    ErrorKind = "transport"
	KindRejected     ErrorKind = "rejected"
	KindPrecondition ErrorKind = "precondition"
)

// TransportError covers everything between issuing a request and having a
// well-formed response: connection failures, timeouts, cancellation,
// unexpected HTTP status and malformed JSON.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError is returned when the relay answered with a parsed body
// whose success flag is false.
type RejectedError struct {
	Op      string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: rejected by server", e.Op)
	}
	return fmt.Sprintf("%s: rejected by server: %s", e.Op, e.Message)
}

// PreconditionError marks a request that was never issued because local
// input was missing.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

// IsTransportError reports whether err (or any error in its chain) is a
// TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRejected reports whether err (or any error in its chain) is a
// RejectedError.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// Classify returns the kind of err.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var (
		te *TransportError
		re *RejectedError
		pe *PreconditionError
	)
	switch {
	case errors.As(err, &re):
		return KindRejected
	case errors.As(err, &pe):
		return KindPrecondition
	case errors.As(err, &te):
		return KindTransport
	default:
		return KindUnknown
	}
}
