package orchestrator

import (
	"errors"
	"fmt"

	"apidash/internal/input"
	"apidash/internal/model"
)

// FetchFailedMessage is the only text shown for transport failures.
const FetchFailedMessage = "Failed to fetch data. Please try again."

var (
	// ErrInFlight is returned in strict mode while another send is running.
	ErrInFlight = errors.New("a request is already in flight")

	// ErrPrecondition matches any *PreconditionError.
	ErrPrecondition = errors.New("precondition failed")

	// ErrTransport matches any *TransportError.
	ErrTransport = errors.New("transport failed")
)

// PreconditionError reports a dependent call attempted before its
// prerequisite succeeded. No request was made.
type PreconditionError struct {
	Key     model.DependencyKey
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

// TransportError wraps a network failure, a non-2xx status, or a payload that
// could not be decoded.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// UserMessage returns the text shown to the user for err. Transport detail
// is never exposed.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var pre *PreconditionError
	if errors.As(err, &pre) {
		return pre.Message
	}

	var ve *input.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}

	if errors.Is(err, ErrInFlight) {
		return "A request is already in progress."
	}
	return FetchFailedMessage
}
