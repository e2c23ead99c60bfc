package service

import (
	"errors"
	"fmt"

	"warehouse-service/internal/store"
)

// ErrNotFound re-exports the store sentinel so handlers depend on one
// package for error classification.
var ErrNotFound = store.ErrNotFound

// ValidationError rejects bad caller input. Handlers map it to 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ExternalServiceError wraps a failure from an upstream dependency such as
// the shipping provider. Handlers map it to 502.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

func Externalf(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}

func IsExternal(err error) bool {
	var ee *ExternalServiceError
	return errors.As(err, &ee)
}

// IsConflict reports store-level state conflicts (insufficient stock,
// illegal transitions). Handlers answer these as bad requests, same as
// validation failures.
func IsConflict(err error) bool {
	return errors.Is(err, store.ErrInsufficientStock) || errors.Is(err, store.ErrInvalidState)
}
