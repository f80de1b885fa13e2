// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested record or challenge does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates malformed input (empty query, bad id, oversized import).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnauthenticated indicates missing or invalid requester identity or credentials.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrConflict indicates a unique constraint violation (phone already registered).
	ErrConflict = errors.New("conflict")

	// ErrRateLimited indicates a temporary lock due to too many failed attempts.
	ErrRateLimited = errors.New("rate limited")

	// ErrOTPMismatch indicates the submitted one-time code does not match the active challenge.
	ErrOTPMismatch = errors.New("incorrect code")

	// ErrOTPRequired indicates a password reset without a verified one-time code.
	ErrOTPRequired = errors.New("otp verification required")

	// ErrSamePassword indicates a reset to the password already in use.
	ErrSamePassword = errors.New("new password must differ from the current one")
)
