// Package redis contains a Redis implementation of the one-time code challenge store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"

	"github.com/and161185/authentic-caller/internal/errs"
	"github.com/and161185/authentic-caller/internal/model"
)

const (
	challengeKeyPrefix = "otp:"
	// watchAttempts bounds optimistic retries when another writer touches the key.
	watchAttempts = 2
)

type challengeRecord struct {
	ID         uuid.UUID  `json:"id"`
	Target     string     `json:"target"`
	CodeHash   []byte     `json:"code_hash"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	Failures   int        `json:"failures,omitempty"`
}

// ChallengeStore keeps one challenge per target under "otp:<target>", expiring with the challenge.
type ChallengeStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewChallengeStore constructs a Redis-backed challenge store.
func NewChallengeStore(client *redis.Client) *ChallengeStore {
	return &ChallengeStore{client: client, now: time.Now}
}

// Open parses a redis:// URL, pings the server and returns the client.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func key(target string) string { return challengeKeyPrefix + target }

func (s *ChallengeStore) ttl(ch model.OTPChallenge) time.Duration {
	return ch.ExpiresAt.Sub(s.now())
}

func encode(ch model.OTPChallenge) ([]byte, error) {
	return json.Marshal(challengeRecord(ch))
}

func decode(raw []byte) (*model.OTPChallenge, error) {
	var rec challengeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	ch := model.OTPChallenge(rec)
	return &ch, nil
}

// Put replaces the challenge for ch.Target.
func (s *ChallengeStore) Put(ctx context.Context, ch model.OTPChallenge) error {
	ttl := s.ttl(ch)
	if ttl <= 0 {
		return fmt.Errorf("challenge already expired: %w", errs.ErrInvalidArgument)
	}
	raw, err := encode(ch)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(ch.Target), raw, ttl).Err()
}

// Get loads the current challenge for target.
func (s *ChallengeStore) Get(ctx context.Context, target string) (*model.OTPChallenge, error) {
	raw, err := s.client.Get(ctx, key(target)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// MarkVerified stamps the challenge as verified if it is still the current one.
func (s *ChallengeStore) MarkVerified(ctx context.Context, ch model.OTPChallenge) error {
	_, err := s.modify(ctx, ch, func(cur *model.OTPChallenge) {
		now := s.now()
		cur.VerifiedAt = &now
	})
	return err
}

// RecordFailure bumps the mismatch counter if the challenge is still the current one.
func (s *ChallengeStore) RecordFailure(ctx context.Context, ch model.OTPChallenge) (int, error) {
	cur, err := s.modify(ctx, ch, func(cur *model.OTPChallenge) { cur.Failures++ })
	if err != nil {
		return 0, err
	}
	return cur.Failures, nil
}

// Consume deletes the challenge if it is still the current one.
func (s *ChallengeStore) Consume(ctx context.Context, ch model.OTPChallenge) error {
	k := key(ch.Target)
	err := s.update(ctx, k, func(tx *redis.Tx) error {
		if _, err := s.current(ctx, tx, k, ch.ID); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, k)
			return nil
		})
		return err
	})
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	return err
}

// modify applies fn to the current challenge carrying ch.ID and writes it back
// with the remaining TTL.
func (s *ChallengeStore) modify(ctx context.Context, ch model.OTPChallenge, fn func(*model.OTPChallenge)) (*model.OTPChallenge, error) {
	k := key(ch.Target)
	var out *model.OTPChallenge
	err := s.update(ctx, k, func(tx *redis.Tx) error {
		cur, err := s.current(ctx, tx, k, ch.ID)
		if err != nil {
			return err
		}
		fn(cur)
		ttl := s.ttl(*cur)
		if ttl <= 0 {
			return errs.ErrNotFound
		}
		raw, err := encode(*cur)
		if err != nil {
			return err
		}
		if _, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, raw, ttl)
			return nil
		}); err != nil {
			return err
		}
		out = cur
		return nil
	})
	return out, err
}

// update runs fn under WATCH on k. A key still contended after watchAttempts
// is reported as a superseded challenge.
func (s *ChallengeStore) update(ctx context.Context, k string, fn func(*redis.Tx) error) error {
	for i := 0; i < watchAttempts; i++ {
		err := s.client.Watch(ctx, fn, k)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return errs.ErrNotFound
}

// current loads the challenge under k and checks it still carries id.
func (s *ChallengeStore) current(ctx context.Context, tx *redis.Tx, k string, id uuid.UUID) (*model.OTPChallenge, error) {
	raw, err := tx.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cur, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if cur.ID != id {
		return nil, errs.ErrNotFound
	}
	return cur, nil
}
