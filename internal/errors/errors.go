// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrConcurrencyConflict is returned when a scheduler worker loses a claim
// race. Workers swallow it and move on; it is never surfaced to a user.
var ErrConcurrencyConflict = errors.New("enrollment claimed by another worker")

// ErrDuplicateEnrollment is returned when the (campaign, contact) pair is
// already enrolled and the caller did not set allow_re_enrollment.
var ErrDuplicateEnrollment = errors.New("contact already enrolled in campaign")

// ValidationError rejects a malformed definition before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AuthorizationError rejects a mutation on a resource the actor does not own.
type AuthorizationError struct {
	Actor    string
	Resource string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s is not allowed to modify %s", e.Actor, e.Resource)
}

// InsufficientBalanceError means a credit reservation could not be taken. The
// touch stays pending and the reservation is retried on a later pass.
type InsufficientBalanceError struct {
	NeededCents    int64
	AvailableCents int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient credit balance: need %d, have %d", e.NeededCents, e.AvailableCents)
}

// InvalidTransitionError rejects an illegal enrollment state change.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("illegal enrollment transition %s -> %s", e.From, e.To)
}

// SendFailure wraps a channel sender error. Permanent failures (hard bounce,
// invalid recipient) are not retried; transient ones are, with backoff.
type SendFailure struct {
	Permanent bool
	Channel   string
	Err       error
}

func (e *SendFailure) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("%s send failure on %s: %v", kind, e.Channel, e.Err)
}

func (e *SendFailure) Unwrap() error { return e.Err }

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrEnrollmentNotFound struct {
	EnrollmentID int
}

func (e *ErrEnrollmentNotFound) Error() string {
	return fmt.Sprintf("enrollment with ID %d not found", e.EnrollmentID)
}

func NewEnrollmentNotFound(id int) error {
	return &ErrEnrollmentNotFound{EnrollmentID: id}
}

type ErrContactNotFound struct {
	ContactID int
}

func (e *ErrContactNotFound) Error() string {
	return fmt.Sprintf("contact with ID %d not found", e.ContactID)
}

func NewContactNotFound(id int) error {
	return &ErrContactNotFound{ContactID: id}
}

// NotFound reports whether err is any of the typed not-found errors.
func NotFound(err error) bool {
	var c *ErrCampaignNotFound
	var e *ErrEnrollmentNotFound
	var ct *ErrContactNotFound
	return errors.As(err, &c) || errors.As(err, &e) || errors.As(err, &ct)
}
