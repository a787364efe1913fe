// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRecipients is returned when a broadcast finds no active subscribers.
	ErrNoRecipients = errors.New("no active subscribers to send to")
	// ErrAlreadySubscribed is returned when an active subscriber already owns the email.
	ErrAlreadySubscribed = errors.New("email is already subscribed")
	// ErrBroadcastInProgress is returned when another broadcast holds the dispatch lock.
	ErrBroadcastInProgress = errors.New("another broadcast is already in progress")
)

// ValidationError reports malformed input. It never has side effects.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError is returned by lookups that must find a row.
type NotFoundError struct {
	Resource string
	Key      any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.Key)
}

func NewNotFound(resource string, key any) error {
	return &NotFoundError{Resource: resource, Key: key}
}

// LedgerError wraps a failure to create or update the message ledger.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("message ledger %s: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

func NewLedger(op string, err error) error {
	return &LedgerError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsLedger(err error) bool {
	var le *LedgerError
	return errors.As(err, &le)
}
