package apperror

import (
	"errors"
	"fmt"
	"time"
)

// Billing error taxonomy. Controllers map these onto HTTP statuses; services
// return them instead of raw gorm/gateway errors.

// ValidationError is bad caller input. Not retryable.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func Validation(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError is raised when an active subscription blocks a new order or
// mandate outside the renewal window. Carries the first eligible renewal date.
type ConflictError struct {
	Message        string
	NextEligibleAt time.Time
}

func (e *ConflictError) Error() string { return e.Message }

func Conflict(nextEligibleAt time.Time, format string, args ...interface{}) error {
	return &ConflictError{
		Message:        fmt.Sprintf(format, args...),
		NextEligibleAt: nextEligibleAt,
	}
}

// InvalidSignatureError is a security rejection: payment or webhook signature
// mismatch. Logged at warning level, never retried.
type InvalidSignatureError struct {
	Message string
}

func (e *InvalidSignatureError) Error() string { return e.Message }

func InvalidSignature(format string, args ...interface{}) error {
	return &InvalidSignatureError{Message: fmt.Sprintf(format, args...)}
}

// DuplicatePaymentError marks a redelivered payment confirmation. It is
// success-shaped: the payment was already settled, nothing is wrong.
type DuplicatePaymentError struct {
	GatewayPaymentId string
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("payment %s already settled", e.GatewayPaymentId)
}

// GatewayUnavailableError wraps a timeout or 5xx from the payment gateway.
// The caller should retry.
type GatewayUnavailableError struct {
	Op  string
	Err error
}

func (e *GatewayUnavailableError) Error() string {
	return fmt.Sprintf("payment gateway unavailable during %s: %v", e.Op, e.Err)
}

func (e *GatewayUnavailableError) Unwrap() error { return e.Err }

func GatewayUnavailable(op string, err error) error {
	return &GatewayUnavailableError{Op: op, Err: err}
}

// PersistenceError wraps a database failure inside a settlement transaction.
// The whole transaction rolled back; the client may retry safely.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func Persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// Predicates for callers that only care about the class.

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsInvalidSignature(err error) bool {
	var target *InvalidSignatureError
	return errors.As(err, &target)
}

func IsDuplicatePayment(err error) bool {
	var target *DuplicatePaymentError
	return errors.As(err, &target)
}

func IsGatewayUnavailable(err error) bool {
	var target *GatewayUnavailableError
	return errors.As(err, &target)
}
