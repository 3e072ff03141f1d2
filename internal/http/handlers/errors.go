// Package handlers defines HTTP-layer error codes used across all API
// endpoints. These constants give clients a stable, machine-readable error
// taxonomy alongside the human-readable messages. Codes are lowercase
// snake_case; generic ones mirror HTTP status semantics, the rest name
// verification-flow outcomes a client must branch on.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Verification flow:
	ErrCodeInvalidCode       = "invalid_code"
	ErrCodeCodeExpired       = "code_expired"
	ErrCodeCodeUsed          = "code_already_used"
	ErrCodeMaxAttempts       = "max_attempts_exceeded"
	ErrCodeDeliveryFailed    = "all_channels_failed"
	ErrCodeMissingContact    = "missing_contact"
	ErrCodeCodePoolExhausted = "code_pool_exhausted"
)
