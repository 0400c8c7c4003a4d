// internal/errors/errors.go
package appErrors

import "fmt"

// ValidationError rejects malformed input (e.g. scheduling in the past).
// Never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func NewValidation(reason string) error {
	return &ValidationError{Reason: reason}
}

// InvalidStateError rejects an operation requested in the wrong campaign or
// task status.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return "invalid state: " + e.Reason
}

func NewInvalidState(reason string) error {
	return &InvalidStateError{Reason: reason}
}

// AuthorizationError rejects cross-tenant access.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "not authorized: " + e.Reason
}

func NewAuthorization(reason string) error {
	return &AuthorizationError{Reason: reason}
}

// NotFoundError is a sentinel error for a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// TransientDeliveryError marks a send failure that should be retried with
// backoff up to the attempt ceiling, then dead-lettered.
type TransientDeliveryError struct {
	Err error
}

func (e *TransientDeliveryError) Error() string {
	return "transient delivery failure: " + e.Err.Error()
}

func (e *TransientDeliveryError) Unwrap() error { return e.Err }

func NewTransientDelivery(err error) error {
	return &TransientDeliveryError{Err: err}
}

// PermanentDeliveryError marks an unprocessable message (malformed payload).
// Rejected immediately, no retry.
type PermanentDeliveryError struct {
	Reason string
}

func (e *PermanentDeliveryError) Error() string {
	return "permanent delivery failure: " + e.Reason
}

func NewPermanentDelivery(reason string) error {
	return &PermanentDeliveryError{Reason: reason}
}
