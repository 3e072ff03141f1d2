// Package codegen produces numeric verification codes from a cryptographic
// random source, with an optional day-scoped uniqueness retry loop for codes
// that must be unambiguous among everything issued the same day.
package codegen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
)

// ErrExhaustedRetries is returned by GenerateUnique when every candidate in
// the retry budget collided with a code already issued today.
var ErrExhaustedRetries = errors.New("codegen: exhausted uniqueness retries")

// UniquenessProbe reports whether a candidate code already exists within the
// caller's uniqueness scope (typically the current day).
type UniquenessProbe func(ctx context.Context, code string) (bool, error)

// Generate returns a zero-padded numeric code of the given length, drawn
// from crypto/rand. Length must be between 4 and 9 digits.
func Generate(length int) (string, error) {
	if length < 4 || length > 9 {
		return "", fmt.Errorf("codegen: unsupported code length %d", length)
	}
	max := big.NewInt(int64(math.Pow10(length)))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("codegen: read random: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

// GenerateUnique draws codes until one passes the probe, up to maxAttempts
// candidates. Probe errors abort immediately; they indicate a storage
// problem, not a collision.
func GenerateUnique(ctx context.Context, length, maxAttempts int, probe UniquenessProbe) (string, error) {
	if maxAttempts < 1 {
		return "", fmt.Errorf("codegen: maxAttempts must be positive, got %d", maxAttempts)
	}
	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := Generate(length)
		if err != nil {
			return "", err
		}
		exists, err := probe(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrExhaustedRetries
}
