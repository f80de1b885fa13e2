package postgres

import (
	"context"

	"github.com/and161185/authentic-caller/internal/errs"
	"github.com/and161185/authentic-caller/internal/model"
)

// ChallengeRepo implements ChallengeStore on the otp_challenges table.
type ChallengeRepo struct{ db *DB }

// NewChallengeRepo constructs a challenge repository.
func NewChallengeRepo(db *DB) *ChallengeRepo { return &ChallengeRepo{db: db} }

// Put replaces the challenge for ch.Target.
func (r *ChallengeRepo) Put(ctx context.Context, ch model.OTPChallenge) error {
	const q = `
INSERT INTO otp_challenges (target, id, code_hash, created_at, expires_at, verified_at)
VALUES ($1, $2, $3, $4, $5, NULL)
ON CONFLICT (target) DO UPDATE
SET id = EXCLUDED.id, code_hash = EXCLUDED.code_hash, created_at = EXCLUDED.created_at,
    expires_at = EXCLUDED.expires_at, verified_at = NULL, failures = 0`
	_, err := r.db.Pool.Exec(ctx, q, ch.Target, ch.ID, ch.CodeHash, ch.CreatedAt, ch.ExpiresAt)
	return err
}

// Get loads the current challenge for target.
func (r *ChallengeRepo) Get(ctx context.Context, target string) (*model.OTPChallenge, error) {
	const q = `SELECT id, target, code_hash, created_at, expires_at, verified_at, failures FROM otp_challenges WHERE target=$1`
	var ch model.OTPChallenge
	if err := r.db.Pool.QueryRow(ctx, q, target).
		Scan(&ch.ID, &ch.Target, &ch.CodeHash, &ch.CreatedAt, &ch.ExpiresAt, &ch.VerifiedAt, &ch.Failures); err != nil {
		if isNoRows(err) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &ch, nil
}

// MarkVerified stamps verified_at on the challenge if it is still current.
func (r *ChallengeRepo) MarkVerified(ctx context.Context, ch model.OTPChallenge) error {
	const q = `UPDATE otp_challenges SET verified_at = now() WHERE target=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, ch.Target, ch.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// RecordFailure bumps the mismatch counter of the challenge if it is still current.
func (r *ChallengeRepo) RecordFailure(ctx context.Context, ch model.OTPChallenge) (int, error) {
	const q = `UPDATE otp_challenges SET failures = failures + 1 WHERE target=$1 AND id=$2 RETURNING failures`
	var n int
	if err := r.db.Pool.QueryRow(ctx, q, ch.Target, ch.ID).Scan(&n); err != nil {
		if isNoRows(err) {
			return 0, errs.ErrNotFound
		}
		return 0, err
	}
	return n, nil
}

// Consume deletes the challenge if it is still current.
func (r *ChallengeRepo) Consume(ctx context.Context, ch model.OTPChallenge) error {
	const q = `DELETE FROM otp_challenges WHERE target=$1 AND id=$2`
	_, err := r.db.Pool.Exec(ctx, q, ch.Target, ch.ID)
	return err
}

// DeleteExpired removes challenges past their expiry and reports how many went.
func (r *ChallengeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM otp_challenges WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
