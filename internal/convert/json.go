// Package convert maps domain models to the JSON shapes served over HTTP.
package convert

import (
	"time"

	"github.com/and161185/authentic-caller/internal/model"
)

// --- helpers ---

func ts(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// --- Contact ---

// Contact is the wire form of a stored record. It never carries the password hash.
type Contact struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Phone        int64      `json:"phone"`
	Email        string     `json:"email,omitempty"`
	SpamCount    int64      `json:"spamCount"`
	IsRegistered bool       `json:"isRegistered"`
	OwnerID      *int64     `json:"ownerId,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// ToContact converts a domain record for output.
func ToContact(c model.Contact) Contact {
	return Contact{
		ID:           c.ID,
		Name:         c.Name,
		Phone:        c.Phone,
		Email:        c.Email,
		SpamCount:    c.SpamCount,
		IsRegistered: c.IsRegistered,
		OwnerID:      c.OwnerID,
		CreatedAt:    ts(c.CreatedAt),
		UpdatedAt:    ts(c.UpdatedAt),
	}
}

// ToContacts converts a batch, preserving order; nil becomes an empty slice.
func ToContacts(cs []model.Contact) []Contact {
	out := make([]Contact, 0, len(cs))
	for _, c := range cs {
		out = append(out, ToContact(c))
	}
	return out
}

// --- PublicView ---

// PublicView is the redacted wire form; email is absent, not null, when withheld.
type PublicView struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Phone     int64  `json:"phone"`
	SpamCount int64  `json:"spamCount"`
	Email     string `json:"email,omitempty"`
}

// ToPublicView converts a redacted view for output.
func ToPublicView(v model.PublicView) PublicView {
	return PublicView(v)
}

// ToPublicViews converts ranked views, preserving order; nil becomes an empty slice.
func ToPublicViews(vs []model.PublicView) []PublicView {
	out := make([]PublicView, 0, len(vs))
	for _, v := range vs {
		out = append(out, ToPublicView(v))
	}
	return out
}

// --- Tokens ---

// Token is the wire form of an issued access token.
type Token struct {
	AccessToken string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ToToken converts issued tokens for output.
func ToToken(t model.Tokens) Token {
	return Token{AccessToken: t.AccessToken, ExpiresAt: t.ExpiresAt.UTC()}
}
