package otp

import (
	"context"
	"time"
)

// Record is the persisted state of one issuance for a (phone, purpose) pair.
type Record struct {
	PhoneNumber       string
	Purpose           Purpose
	Code              string
	VerificationToken string
	ExpiresAt         time.Time
	Attempts          int
	Verified          bool
	VerifiedAt        *time.Time
	CreatedAt         time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Store persists OTP records. Every mutation must be a single atomic operation
// against the backing store; callers never read-modify-write.
type Store interface {
	// Upsert replaces whatever record exists for (PhoneNumber, Purpose).
	Upsert(ctx context.Context, rec *Record) error
	// Find returns the record for (phone, purpose) issued under token, or ErrNotFound.
	Find(ctx context.Context, phone string, purpose Purpose, token string) (*Record, error)
	// IncrementAttempts adds one failed attempt while attempts < max and returns the
	// new count. It returns ErrNotFound when the issuance is gone and ErrAttemptLimit
	// when the maximum was already reached.
	IncrementAttempts(ctx context.Context, phone string, purpose Purpose, token string, max int) (int, error)
	// MarkVerified sets verified and verifiedAt if the record is unverified, below
	// max attempts and not expired at at, otherwise it returns ErrConflict.
	MarkVerified(ctx context.Context, phone string, purpose Purpose, token string, max int, at time.Time) error
	// Delete removes the record for (phone, purpose) regardless of token.
	Delete(ctx context.Context, phone string, purpose Purpose) error
	// DeleteIssuance removes the record only if it still carries token.
	DeleteIssuance(ctx context.Context, phone string, purpose Purpose, token string) error
	// DeleteStale removes records created before the cutoff.
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}
