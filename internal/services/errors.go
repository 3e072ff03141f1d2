// Package services implements the verification-code lifecycle and the
// payment-reminder business logic. This file centralizes service-level error
// values so they can be consistently returned by service methods and mapped
// to HTTP status codes at the handler layer.
package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCodeNotFound indicates that no active code exists for the subject.
	ErrCodeNotFound = errors.New("verification code not found")

	// ErrCodeExpired is returned when the code exists but its validity
	// window has passed.
	ErrCodeExpired = errors.New("verification code expired")

	// ErrInvalidCode is returned when the submitted code does not match
	// the active one for the subject.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrMaxAttemptsExceeded is returned once the attempt budget for a
	// code is spent. Further verify calls keep returning it without
	// touching the row; a fresh issue is required.
	ErrMaxAttemptsExceeded = errors.New("maximum verification attempts exceeded")

	// ErrCodeAlreadyUsed is returned when verifying a code that was
	// already consumed.
	ErrCodeAlreadyUsed = errors.New("verification code already used")

	// ErrAllChannelsFailed is returned when an issue request produced a
	// code but no channel managed to deliver it.
	ErrAllChannelsFailed = errors.New("all delivery channels failed")

	// ErrExhaustedRetries propagates a day-unique code generation loop
	// that ran out of candidates.
	ErrExhaustedRetries = errors.New("could not generate a unique code")

	// ErrMissingContact is returned when an issue request carries neither
	// a usable phone number nor an email address.
	ErrMissingContact = errors.New("no contact information provided")

	// ErrOrderNotFound indicates the referenced customer order does not
	// exist.
	ErrOrderNotFound = errors.New("order not found")
)

// InvalidCodeError reports a mismatched code along with how many attempts
// the subject has left before lockout. It matches ErrInvalidCode under
// errors.Is so callers that only care about the category keep working.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid verification code, %d attempts remaining", e.Remaining)
}

func (e *InvalidCodeError) Is(target error) bool { return target == ErrInvalidCode }

// IsInvalidCode extracts an InvalidCodeError from err, if present.
func IsInvalidCode(err error) (*InvalidCodeError, bool) {
	var ic *InvalidCodeError
	if errors.As(err, &ic) {
		return ic, true
	}
	return nil, false
}

// RateLimitedError reports that a subject asked for a new code before the
// reissue window elapsed. RetryAfter tells the caller how long to wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("code recently issued, retry in %s", e.RetryAfter.Round(time.Second))
}

// IsRateLimited extracts a RateLimitedError from err, if present.
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
