// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/authentic-caller/internal/model"
)

// ContactRepository is the shared directory of registered accounts and uploaded contacts.
// Lookups that find nothing return errs.ErrNotFound.
type ContactRepository interface {
	// FindByPhone returns a registered record for phone, or with registeredOnly=false
	// falls back to the lowest-id unregistered entry.
	FindByPhone(ctx context.Context, phone int64, registeredOnly bool) (*model.Contact, error)
	// FindByNameSubstring returns records whose name contains fragment (case-insensitive),
	// excluding excludeID, ordered by id.
	FindByNameSubstring(ctx context.Context, fragment string, excludeID int64) ([]model.Contact, error)
	// FindByID loads a record by id.
	FindByID(ctx context.Context, id int64) (*model.Contact, error)
	// FindOwnedMatchingPhone returns ownerID's address book entry for phone.
	FindOwnedMatchingPhone(ctx context.Context, ownerID, phone int64) (*model.Contact, error)
	// IncrementSpamCount atomically adds one and returns the new count.
	IncrementSpamCount(ctx context.Context, id int64) (int64, error)
	// InsertMany stores unregistered entries and returns them with assigned ids, in input order.
	InsertMany(ctx context.Context, records []model.Contact) ([]model.Contact, error)

	// CreateRegistered inserts a self-registered account and sets its id.
	// Returns errs.ErrConflict when the phone (or email) is already registered.
	CreateRegistered(ctx context.Context, c *model.Contact) error
	// FindRegisteredByEmail loads the registered account owning email.
	FindRegisteredByEmail(ctx context.Context, email string) (*model.Contact, error)
	// UpdatePasswordHash replaces the hash of a registered account.
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// ChallengeStore keeps at most one OTP challenge per target; Put replaces any previous one.
type ChallengeStore interface {
	// Put stores ch as the only challenge for ch.Target.
	Put(ctx context.Context, ch model.OTPChallenge) error
	// Get returns the current challenge for target.
	Get(ctx context.Context, target string) (*model.OTPChallenge, error)
	// MarkVerified flags the challenge with the given id as verified.
	// Returns errs.ErrNotFound if it was superseded or removed.
	MarkVerified(ctx context.Context, ch model.OTPChallenge) error
	// RecordFailure counts a mismatched code against the challenge with the given id
	// and returns the new count. Returns errs.ErrNotFound if it was superseded or removed.
	RecordFailure(ctx context.Context, ch model.OTPChallenge) (int, error)
	// Consume deletes the challenge with the given id; a superseded challenge is left alone.
	Consume(ctx context.Context, ch model.OTPChallenge) error
}
