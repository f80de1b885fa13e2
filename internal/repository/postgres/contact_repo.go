package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/authentic-caller/internal/errs"
	"github.com/and161185/authentic-caller/internal/model"
)

const contactColumns = `id, name, phone, email, password_hash, spam_count, is_registered, owner_id, created_at, updated_at`

// ContactRepo implements ContactRepository using PostgreSQL.
type ContactRepo struct{ db *DB }

// NewContactRepo constructs a contact repository.
func NewContactRepo(db *DB) *ContactRepo { return &ContactRepo{db: db} }

func scanContact(row rowScanner) (*model.Contact, error) {
	var (
		c     model.Contact
		email *string
		hash  *string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &email, &hash, &c.SpamCount, &c.IsRegistered, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if isNoRows(err) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if email != nil {
		c.Email = *email
	}
	if hash != nil {
		c.PasswordHash = *hash
	}
	return &c, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FindByPhone selects a record by phone, registered accounts first.
func (r *ContactRepo) FindByPhone(ctx context.Context, phone int64, registeredOnly bool) (*model.Contact, error) {
	q := `SELECT ` + contactColumns + ` FROM contacts WHERE phone=$1`
	if registeredOnly {
		q += ` AND is_registered`
	}
	q += ` ORDER BY is_registered DESC, id LIMIT 1`
	return scanContact(r.db.Pool.QueryRow(ctx, q, phone))
}

// escapeLike quotes LIKE metacharacters so the fragment matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// FindByNameSubstring selects records whose name contains fragment, ignoring case.
func (r *ContactRepo) FindByNameSubstring(ctx context.Context, fragment string, excludeID int64) ([]model.Contact, error) {
	const q = `SELECT ` + contactColumns + ` FROM contacts
WHERE name ILIKE '%' || $1 || '%' ESCAPE '\' AND id <> $2
ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, q, escapeLike(fragment), excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// FindByID selects a record by id.
func (r *ContactRepo) FindByID(ctx context.Context, id int64) (*model.Contact, error) {
	const q = `SELECT ` + contactColumns + ` FROM contacts WHERE id=$1`
	return scanContact(r.db.Pool.QueryRow(ctx, q, id))
}

// FindOwnedMatchingPhone selects the owner's address book entry for phone.
func (r *ContactRepo) FindOwnedMatchingPhone(ctx context.Context, ownerID, phone int64) (*model.Contact, error) {
	const q = `SELECT ` + contactColumns + ` FROM contacts WHERE owner_id=$1 AND phone=$2 ORDER BY id LIMIT 1`
	return scanContact(r.db.Pool.QueryRow(ctx, q, ownerID, phone))
}

// IncrementSpamCount bumps spam_count in a single statement so concurrent reports all land.
func (r *ContactRepo) IncrementSpamCount(ctx context.Context, id int64) (int64, error) {
	const q = `UPDATE contacts SET spam_count = spam_count + 1, updated_at = now() WHERE id=$1 RETURNING spam_count`
	var n int64
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&n); err != nil {
		if isNoRows(err) {
			return 0, errs.ErrNotFound
		}
		return 0, err
	}
	return n, nil
}

// InsertMany stores unregistered address book entries in a single statement.
// Ids come from one sequence scan of the unnested arrays, so ascending ids
// follow input order.
func (r *ContactRepo) InsertMany(ctx context.Context, records []model.Contact) ([]model.Contact, error) {
	if len(records) == 0 {
		return []model.Contact{}, nil
	}
	const ins = `
INSERT INTO contacts (name, phone, email, owner_id)
SELECT name, phone, email, owner_id
FROM unnest($1::text[], $2::bigint[], $3::text[], $4::bigint[]) AS t(name, phone, email, owner_id)
RETURNING id, created_at, updated_at`

	var (
		names  = make([]string, len(records))
		phones = make([]int64, len(records))
		emails = make([]*string, len(records))
		owners = make([]int64, len(records))
	)
	for i, rec := range records {
		if rec.IsRegistered || rec.OwnerID == nil {
			return nil, fmt.Errorf("record[%d]: %w: address book entry needs an owner", i, errs.ErrInvalidArgument)
		}
		names[i], phones[i], emails[i], owners[i] = rec.Name, rec.Phone, nullable(rec.Email), *rec.OwnerID
	}

	rows, err := r.db.Pool.Query(ctx, ins, names, phones, emails, owners)
	if err != nil {
		return nil, err
	}
	type inserted struct {
		id                   int64
		createdAt, updatedAt time.Time
	}
	got, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (inserted, error) {
		var v inserted
		err := row.Scan(&v.id, &v.createdAt, &v.updatedAt)
		return v, err
	})
	if err != nil {
		return nil, err
	}
	if len(got) != len(records) {
		return nil, fmt.Errorf("inserted %d of %d contacts", len(got), len(records))
	}
	sort.Slice(got, func(i, j int) bool { return got[i].id < got[j].id })

	out := make([]model.Contact, len(records))
	for i, rec := range records {
		rec.ID, rec.CreatedAt, rec.UpdatedAt = got[i].id, got[i].createdAt, got[i].updatedAt
		rec.SpamCount = 0
		out[i] = rec
	}
	return out, nil
}

// CreateRegistered inserts a self-registered account.
func (r *ContactRepo) CreateRegistered(ctx context.Context, c *model.Contact) error {
	const q = `
INSERT INTO contacts (name, phone, email, password_hash, is_registered)
VALUES ($1, $2, $3, $4, true)
RETURNING id, created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q, c.Name, c.Phone, nullable(c.Email), c.PasswordHash).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	if err != nil {
		return err
	}
	c.IsRegistered = true
	c.OwnerID = nil
	return nil
}

// FindRegisteredByEmail selects the registered account for email, ignoring case.
func (r *ContactRepo) FindRegisteredByEmail(ctx context.Context, email string) (*model.Contact, error) {
	const q = `SELECT ` + contactColumns + ` FROM contacts WHERE lower(email)=lower($1) AND is_registered`
	return scanContact(r.db.Pool.QueryRow(ctx, q, email))
}

// UpdatePasswordHash replaces the password hash of a registered account.
func (r *ContactRepo) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	const q = `UPDATE contacts SET password_hash=$2, updated_at=now() WHERE id=$1 AND is_registered`
	tag, err := r.db.Pool.Exec(ctx, q, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
