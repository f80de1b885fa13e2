// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// Contact is a directory entry: either a self-registered account or an entry
// from somebody's uploaded address book about a phone number.
type Contact struct {
	ID           int64
	Name         string
	Phone        int64
	Email        string // empty when absent
	PasswordHash string // set only when IsRegistered
	SpamCount    int64
	IsRegistered bool
	OwnerID      *int64 // nil for self-registered accounts
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasEmail reports whether the record carries an email address.
func (c Contact) HasEmail() bool { return c.Email != "" }

// PublicView is the redacted, outward-facing projection of a Contact.
type PublicView struct {
	ID        int64
	Name      string
	Phone     int64
	SpamCount int64
	Email     string // empty means omitted
}

// ImportRow is one raw line of an uploaded address book.
type ImportRow struct {
	Name  string
	Phone string
	Email string
}

// OTPChallenge is the single active one-time code for a target (email or phone).
type OTPChallenge struct {
	ID         uuid.UUID
	Target     string // "email:<addr>" or "phone:<digits>"
	CodeHash   []byte
	CreatedAt  time.Time
	ExpiresAt  time.Time
	VerifiedAt *time.Time
	Failures   int // mismatched codes entered against this challenge
}

// Expired reports whether the challenge can no longer be used at now.
func (c OTPChallenge) Expired(now time.Time) bool { return !now.Before(c.ExpiresAt) }

// Verified reports whether the code has been confirmed.
func (c OTPChallenge) Verified() bool { return c.VerifiedAt != nil }
