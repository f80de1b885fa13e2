package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/and161185/authentic-caller/internal/errs"
	"github.com/and161185/authentic-caller/internal/limiter"
	"github.com/and161185/authentic-caller/internal/model"
	"github.com/and161185/authentic-caller/internal/notify"
	"github.com/and161185/authentic-caller/internal/repository"
)

type fakeContacts struct {
	mu     sync.Mutex
	rows   []model.Contact
	nextID int64

	findErr   error
	createErr error
}

var _ repository.ContactRepository = (*fakeContacts)(nil)

func (f *fakeContacts) add(c model.Contact) model.Contact {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	f.rows = append(f.rows, c)
	return c
}

func (f *fakeContacts) FindByPhone(_ context.Context, phone int64, registeredOnly bool) (*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var fallback *model.Contact
	for i := range f.rows {
		c := f.rows[i]
		if c.Phone != phone {
			continue
		}
		if c.IsRegistered {
			return &c, nil
		}
		if !registeredOnly && fallback == nil {
			fallback = &c
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, errs.ErrNotFound
}

func (f *fakeContacts) FindByNameSubstring(_ context.Context, fragment string, excludeID int64) ([]model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Contact{}
	for _, c := range f.rows {
		if c.ID != excludeID && strings.Contains(strings.ToLower(c.Name), strings.ToLower(fragment)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeContacts) FindByID(_ context.Context, id int64) (*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			c := f.rows[i]
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeContacts) FindOwnedMatchingPhone(_ context.Context, ownerID, phone int64) (*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		c := f.rows[i]
		if c.OwnerID != nil && *c.OwnerID == ownerID && c.Phone == phone {
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeContacts) IncrementSpamCount(_ context.Context, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].SpamCount++
			return f.rows[i].SpamCount, nil
		}
	}
	return 0, errs.ErrNotFound
}

func (f *fakeContacts) InsertMany(_ context.Context, records []model.Contact) ([]model.Contact, error) {
	out := make([]model.Contact, 0, len(records))
	for _, r := range records {
		out = append(out, f.add(r))
	}
	return out, nil
}

func (f *fakeContacts) CreateRegistered(_ context.Context, c *model.Contact) error {
	if f.createErr != nil {
		return f.createErr
	}
	stored := f.add(*c)
	c.ID = stored.ID
	return nil
}

func (f *fakeContacts) FindRegisteredByEmail(_ context.Context, email string) (*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for i := range f.rows {
		c := f.rows[i]
		if c.IsRegistered && strings.EqualFold(c.Email, email) {
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeContacts) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].IsRegistered {
			f.rows[i].PasswordHash = hash
			return nil
		}
	}
	return errs.ErrNotFound
}

type fakeChallenges struct {
	mu     sync.Mutex
	byTgt  map[string]model.OTPChallenge
	putErr error
}

var _ repository.ChallengeStore = (*fakeChallenges)(nil)

func newFakeChallenges() *fakeChallenges {
	return &fakeChallenges{byTgt: map[string]model.OTPChallenge{}}
}

func (f *fakeChallenges) Put(_ context.Context, ch model.OTPChallenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	ch.VerifiedAt = nil
	f.byTgt[ch.Target] = ch
	return nil
}

func (f *fakeChallenges) Get(_ context.Context, target string) (*model.OTPChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.byTgt[target]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &ch, nil
}

func (f *fakeChallenges) MarkVerified(_ context.Context, ch model.OTPChallenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byTgt[ch.Target]
	if !ok || cur.ID != ch.ID {
		return errs.ErrNotFound
	}
	now := time.Now()
	cur.VerifiedAt = &now
	f.byTgt[ch.Target] = cur
	return nil
}

func (f *fakeChallenges) RecordFailure(_ context.Context, ch model.OTPChallenge) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byTgt[ch.Target]
	if !ok || cur.ID != ch.ID {
		return 0, errs.ErrNotFound
	}
	cur.Failures++
	f.byTgt[ch.Target] = cur
	return cur.Failures, nil
}

func (f *fakeChallenges) Consume(_ context.Context, ch model.OTPChallenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.byTgt[ch.Target]; ok && cur.ID == ch.ID {
		delete(f.byTgt, ch.Target)
	}
	return nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	subjects     []string
	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(_ context.Context, subject string, _ []byte) (bool, time.Duration, error) {
	l.allowCalls++
	l.subjects = append(l.subjects, subject)
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

type fakeSender struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

var _ notify.Sender = (*fakeSender)(nil)

func (s *fakeSender) Send(_ context.Context, m notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, m)
	return nil
}

// lastCode extracts the digits of the most recent one-time code message.
func (s *fakeSender) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return ""
	}
	body := s.sent[len(s.sent)-1].Body
	i := strings.Index(body, "is ")
	if i < 0 {
		return ""
	}
	return body[i+3 : i+3+4]
}
