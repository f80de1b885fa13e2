// Package limiter throttles repeated failed attempts (login, one-time code checks)
// per subject and client address.
package limiter

import (
	"context"
	"time"
)

// Limiter controls attempts and temporary lockouts for a (subject, ip) pair.
// A subject is a namespaced identifier such as "login:phone:5550001111".
type Limiter interface {
	// Allow reports whether an attempt is currently allowed and optional retry-after.
	Allow(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful attempt.
	Success(ctx context.Context, subject string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error)
}

// Subject builds a limiter key from an action and the identifier it targets.
func Subject(action, target string) string { return action + ":" + target }
