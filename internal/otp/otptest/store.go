// Package otptest holds behaviour tests shared by every otp.Store implementation.
package otptest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/clinic/internal/otp"
)

const maxAttempts = 5

var issuedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func record(token string) *otp.Record {
	return &otp.Record{
		PhoneNumber:       "+8801711000000",
		Purpose:           otp.PurposeLogin,
		Code:              "482913",
		VerificationToken: token,
		ExpiresAt:         issuedAt.Add(5 * time.Minute),
		CreatedAt:         issuedAt,
	}
}

// RunStoreTests checks the conditional mutations every store must provide.
// newStore is called once per subtest and must return an empty store.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) otp.Store) {
	t.Helper()

	seeded := func(t *testing.T) (otp.Store, *otp.Record) {
		t.Helper()
		s := newStore(t)
		rec := record("tok")
		if err := s.Upsert(context.Background(), rec); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		return s, rec
	}

	t.Run("find by token", func(t *testing.T) {
		s, rec := seeded(t)
		ctx := context.Background()

		got, err := s.Find(ctx, rec.PhoneNumber, rec.Purpose, "tok")
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if got.Code != rec.Code || got.Attempts != 0 || got.Verified || !got.ExpiresAt.Equal(rec.ExpiresAt) {
			t.Errorf("record = %+v", got)
		}
		if _, err := s.Find(ctx, rec.PhoneNumber, rec.Purpose, "other"); !errors.Is(err, otp.ErrNotFound) {
			t.Errorf("wrong token: got %v, want ErrNotFound", err)
		}
		if _, err := s.Find(ctx, rec.PhoneNumber, otp.PurposeRegistration, "tok"); !errors.Is(err, otp.ErrNotFound) {
			t.Errorf("other purpose: got %v, want ErrNotFound", err)
		}
	})

	t.Run("upsert replaces the issuance", func(t *testing.T) {
		s, rec := seeded(t)
		ctx := context.Background()

		if _, err := s.IncrementAttempts(ctx, rec.PhoneNumber, rec.Purpose, "tok", maxAttempts); err != nil {
			t.Fatal(err)
		}
		if err := s.Upsert(ctx, record("newer")); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Find(ctx, rec.PhoneNumber, rec.Purpose, "tok"); !errors.Is(err, otp.ErrNotFound) {
			t.Errorf("old token: got %v, want ErrNotFound", err)
		}
		got, err := s.Find(ctx, rec.PhoneNumber, rec.Purpose, "newer")
		if err != nil {
			t.Fatal(err)
		}
		if got.Attempts != 0 {
			t.Errorf("attempts = %d, want 0 after reissue", got.Attempts)
		}
	})

	t.Run("increment stops at max", func(t *testing.T) {
		s, rec := seeded(t)
		ctx := context.Background()

		for want := 1; want <= maxAttempts; want++ {
			got, err := s.IncrementAttempts(ctx, rec.PhoneNumber, rec.Purpose, "tok", maxAttempts)
			if err != nil || got != want {
				t.Fatalf("increment %d: got (%d, %v)", want, got, err)
			}
		}
		if _, err := s.IncrementAttempts(ctx, rec.PhoneNumber, rec.Purpose, "tok", maxAttempts); !errors.Is(err, otp.ErrAttemptLimit) {
			t.Errorf("past max: got %v, want ErrAttemptLimit", err)
		}
		if _, err := s.IncrementAttempts(ctx, rec.PhoneNumber, rec.Purpose, "other", maxAttempts); !errors.Is(err, otp.ErrNotFound) {
			t.Errorf("wrong token: got %v, want ErrNotFound", err)
		}

		got, err := s.Find(ctx, rec.PhoneNumber, rec.Purpose, "tok")
		if err != nil {
			t.Fatal(err)
		}
		if got.Attempts != maxAttempts {
			t.Errorf("attempts = %d, want %d", got.Attempts, maxAttempts)
		}
	})

	t.Run("mark verified once", func(t *testing.T) {
		s, rec := seeded(t)
		ctx := context.Background()
		at := issuedAt.Add(time.Minute)

		if err := s.MarkVerified(ctx, rec.PhoneNumber, rec.Purpose, "tok", maxAttempts, at); err != nil {
			t.Fatalf("first MarkVerified: %v", err)
		}
		if err := s.MarkVerified(ctx, rec.PhoneNumber, rec.Purpose, "tok", maxAttempts, at); !errors.Is(err, otp.ErrConflict) {
			t.Errorf("second MarkVerified: got %v, want ErrConflict", err)
		}

		got, err := s.Find(ctx, rec.PhoneNumber, rec.Purpose, "tok")
		if err != nil {
			t.Fatal(err)
		}
		if !got.Verified || got.VerifiedAt == nil || !got.VerifiedAt.Equal(at) {
			t.Errorf("record = %+v", got)
		}
	})

	t.Run("mark verified blocked at max attempts", func(t *testing.T) {
		s, rec := seeded(t)
		ctx := context.Background()

		for i := 0; i < maxAttempts; i++ {
			if _, err := s.IncrementAttempts(ctx, rec.PhoneNumber, rec.Purpose, "tok", maxAttempts); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.MarkVerified(ctx, rec.PhoneNumber, rec.Purpose, "tok", maxAttempts, issuedAt); !errors.Is(err, otp.ErrConflict) {
			t.Errorf("got %v, want ErrConflict", err)
		}
	})

	t.Run("mark verified respects expiry", func(t *testing.T) {
		s, rec := seeded(t)
		ctx := context.Background()

		late := rec.ExpiresAt.Add(time.Millisecond)
		if err := s.MarkVerified(ctx, rec.PhoneNumber, rec.Purpose, "tok", maxAttempts, late); !errors.Is(err, otp.ErrConflict) {
			t.Fatalf("after expiry: got %v, want ErrConflict", err)
		}
		if err := s.MarkVerified(ctx, rec.PhoneNumber, rec.Purpose, "tok", maxAttempts, rec.ExpiresAt); err != nil {
			t.Errorf("at expiry instant: got %v, want success", err)
		}
	})

	t.Run("mark verified needs the current token", func(t *testing.T) {
		s, rec := seeded(t)
		if err := s.MarkVerified(context.Background(), rec.PhoneNumber, rec.Purpose, "other", maxAttempts, issuedAt); !errors.Is(err, otp.ErrConflict) {
			t.Errorf("got %v, want ErrConflict", err)
		}
	})

	t.Run("delete issuance matches token", func(t *testing.T) {
		s, rec := seeded(t)
		ctx := context.Background()

		if err := s.DeleteIssuance(ctx, rec.PhoneNumber, rec.Purpose, "other"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Find(ctx, rec.PhoneNumber, rec.Purpose, "tok"); err != nil {
			t.Fatalf("foreign token removed the record: %v", err)
		}
		if err := s.DeleteIssuance(ctx, rec.PhoneNumber, rec.Purpose, "tok"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Find(ctx, rec.PhoneNumber, rec.Purpose, "tok"); !errors.Is(err, otp.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("delete ignores token", func(t *testing.T) {
		s, rec := seeded(t)
		ctx := context.Background()

		if err := s.Delete(ctx, rec.PhoneNumber, rec.Purpose); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Find(ctx, rec.PhoneNumber, rec.Purpose, "tok"); !errors.Is(err, otp.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, rec.PhoneNumber, rec.Purpose); err != nil {
			t.Errorf("deleting a missing record: %v", err)
		}
	})
}
