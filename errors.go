package messaging

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is matched by every MissingFieldError.
	ErrMissingField = errors.New("messaging: missing required field")
	// ErrInvalidField is matched by every InvalidFieldError.
	ErrInvalidField = errors.New("messaging: invalid field")

	// ErrClosed is returned when a publisher or consumer is used after Close.
	ErrClosed = errors.New("messaging: endpoint is closed")
	// ErrNotConfirmed is returned when the broker negatively acknowledges a published batch.
	ErrNotConfirmed = errors.New("messaging: publish not confirmed")
	// ErrConfirmTimeout is returned when batch confirmations do not arrive in time.
	ErrConfirmTimeout = errors.New("messaging: publish confirmation timeout")
	// ErrEmptyDelivery is returned when acknowledging the empty Delivery.
	ErrEmptyDelivery = errors.New("messaging: empty delivery tag")
	// ErrNilHandler is returned when consuming without a handler.
	ErrNilHandler = errors.New("messaging: nil handler")
)

// MissingFieldError reports a mandatory configuration field that was not supplied.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, e.Field)
}

// Is allows errors.Is(err, ErrMissingField).
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// InvalidFieldError reports a configuration field holding an unusable value.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidField, e.Field, e.Reason)
}

// Is allows errors.Is(err, ErrInvalidField).
func (e *InvalidFieldError) Is(target error) bool {
	return target == ErrInvalidField
}

// HandlerError wraps an error returned (or a panic raised) by a Handler.
// The delivery it refers to has been returned to the queue.
type HandlerError struct {
	Tag uint64
	Err error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("messaging: handler failed for delivery %d: %v", e.Tag, e.Err)
}

// Unwrap returns the handler error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}
