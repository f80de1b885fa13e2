package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/and161185/authentic-caller/internal/errs"
	"github.com/and161185/authentic-caller/internal/model"
	"github.com/and161185/authentic-caller/internal/repository"
)

// Resolver answers directory searches and single-record lookups.
type Resolver struct {
	store repository.ContactRepository
	lang  language.Tag
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLanguage sets the collation language used to order name matches.
func WithLanguage(tag language.Tag) ResolverOption {
	return func(r *Resolver) { r.lang = tag }
}

// NewResolver constructs a Resolver over store. Names are collated with language.Und unless overridden.
func NewResolver(store repository.ContactRepository, opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store, lang: language.Und}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// PhoneQuery reports whether query is a pure digit string that fits a phone number, and returns it.
func PhoneQuery(query string) (int64, bool) {
	if query == "" {
		return 0, false
	}
	for _, r := range query {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(query, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Search resolves query for requesterID. A digit query returns the registered
// record for that phone, else any record with it; otherwise, and when no phone
// matches, it returns ranked name matches excluding the requester's own record.
func (r *Resolver) Search(ctx context.Context, query string, requesterID int64) ([]model.PublicView, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("empty search query: %w", errs.ErrInvalidArgument)
	}

	if phone, ok := PhoneQuery(q); ok {
		for _, registeredOnly := range []bool{true, false} {
			c, err := r.store.FindByPhone(ctx, phone, registeredOnly)
			if errors.Is(err, errs.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			v, err := r.view(ctx, *c, requesterID)
			if err != nil {
				return nil, err
			}
			return []model.PublicView{v}, nil
		}
	}

	candidates, err := r.store.FindByNameSubstring(ctx, q, requesterID)
	if err != nil {
		return nil, err
	}
	Rank(candidates, q, r.lang)

	out := make([]model.PublicView, 0, len(candidates))
	for _, c := range candidates {
		v, err := r.view(ctx, c, requesterID)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Lookup returns the redacted view of record id as seen by requesterID.
func (r *Resolver) Lookup(ctx context.Context, id, requesterID int64) (model.PublicView, error) {
	c, err := r.store.FindByID(ctx, id)
	if err != nil {
		return model.PublicView{}, err
	}
	return r.view(ctx, *c, requesterID)
}

// view redacts c, consulting the requester's address book only when it can matter.
func (r *Resolver) view(ctx context.Context, c model.Contact, requesterID int64) (model.PublicView, error) {
	if !c.IsRegistered || !c.HasEmail() || requesterID <= 0 {
		return Redact(c, false), nil
	}
	_, err := r.store.FindOwnedMatchingPhone(ctx, requesterID, c.Phone)
	switch {
	case err == nil:
		return Redact(c, true), nil
	case errors.Is(err, errs.ErrNotFound):
		return Redact(c, false), nil
	default:
		return model.PublicView{}, err
	}
}
