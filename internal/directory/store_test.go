package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/and161185/authentic-caller/internal/errs"
	"github.com/and161185/authentic-caller/internal/model"
	"github.com/and161185/authentic-caller/internal/repository"
)

// memStore is an in-memory ContactRepository for tests.
type memStore struct {
	mu     sync.Mutex
	rows   []model.Contact
	nextID int64

	ownedCalls int
	failWith   error
}

var _ repository.ContactRepository = (*memStore)(nil)

func newMemStore(rows ...model.Contact) *memStore {
	s := &memStore{}
	for _, r := range rows {
		if r.ID > s.nextID {
			s.nextID = r.ID
		}
		s.rows = append(s.rows, r)
	}
	sort.Slice(s.rows, func(i, j int) bool { return s.rows[i].ID < s.rows[j].ID })
	return s
}

func owned(id int64) *int64 { return &id }

func (s *memStore) FindByPhone(_ context.Context, phone int64, registeredOnly bool) (*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	var fallback *model.Contact
	for i := range s.rows {
		r := s.rows[i]
		if r.Phone != phone {
			continue
		}
		if r.IsRegistered {
			return &r, nil
		}
		if !registeredOnly && fallback == nil {
			fallback = &r
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, errs.ErrNotFound
}

func (s *memStore) FindByNameSubstring(_ context.Context, fragment string, excludeID int64) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := []model.Contact{}
	for _, r := range s.rows {
		if r.ID != excludeID && strings.Contains(strings.ToLower(r.Name), strings.ToLower(fragment)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) FindByID(_ context.Context, id int64) (*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == id {
			r := s.rows[i]
			return &r, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (s *memStore) FindOwnedMatchingPhone(_ context.Context, ownerID, phone int64) (*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownedCalls++
	for i := range s.rows {
		r := s.rows[i]
		if r.OwnerID != nil && *r.OwnerID == ownerID && r.Phone == phone {
			return &r, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (s *memStore) IncrementSpamCount(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == id {
			s.rows[i].SpamCount++
			return s.rows[i].SpamCount, nil
		}
	}
	return 0, errs.ErrNotFound
}

func (s *memStore) InsertMany(_ context.Context, records []model.Contact) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := make([]model.Contact, 0, len(records))
	for _, r := range records {
		s.nextID++
		r.ID = s.nextID
		r.CreatedAt = time.Now()
		r.UpdatedAt = r.CreatedAt
		s.rows = append(s.rows, r)
		out = append(out, r)
	}
	return out, nil
}

func (s *memStore) CreateRegistered(_ context.Context, c *model.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.IsRegistered && r.Phone == c.Phone {
			return errs.ErrConflict
		}
	}
	s.nextID++
	c.ID = s.nextID
	c.IsRegistered = true
	s.rows = append(s.rows, *c)
	return nil
}

func (s *memStore) FindRegisteredByEmail(_ context.Context, email string) (*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		r := s.rows[i]
		if r.IsRegistered && strings.EqualFold(r.Email, email) {
			return &r, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (s *memStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == id && s.rows[i].IsRegistered {
			s.rows[i].PasswordHash = hash
			return nil
		}
	}
	return errs.ErrNotFound
}
