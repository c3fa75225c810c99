package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/example/clinic/internal/otp"
	"github.com/example/clinic/internal/otp/otptest"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisOTPStore(t *testing.T) {
	otptest.RunStoreTests(t, func(t *testing.T) otp.Store {
		_, rdb := newTestRedis(t)
		return NewRedisOTPStore(rdb, 24*time.Hour)
	})
}

func TestRedisOTPStore_Retention(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRedisOTPStore(rdb, 24*time.Hour)
	ctx := context.Background()

	rec := &otp.Record{
		PhoneNumber:       "+8801711000000",
		Purpose:           otp.PurposeLogin,
		Code:              "482913",
		VerificationToken: "tok",
		ExpiresAt:         time.Now().Add(5 * time.Minute),
		CreatedAt:         time.Now(),
	}
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL(otpKey(rec.PhoneNumber, rec.Purpose)); ttl != 24*time.Hour {
		t.Errorf("ttl = %v, want 24h", ttl)
	}
	if _, err := store.Find(ctx, rec.PhoneNumber, rec.Purpose, "tok"); err != nil {
		t.Fatalf("Find after upsert: %v", err)
	}

	mr.FastForward(25 * time.Hour)
	if _, err := store.Find(ctx, rec.PhoneNumber, rec.Purpose, "tok"); !errors.Is(err, otp.ErrNotFound) {
		t.Errorf("after retention: got %v, want ErrNotFound", err)
	}
}

func TestOTPKey(t *testing.T) {
	if got := otpKey("+8801711000000", otp.PurposePasswordReset); got != "otp:password-reset:+8801711000000" {
		t.Errorf("otpKey = %q", got)
	}
}

func TestRecordFields_RoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC)
	rec := &otp.Record{
		PhoneNumber:       "+8801711000000",
		Purpose:           otp.PurposeLogin,
		Code:              "048213",
		VerificationToken: "tok",
		ExpiresAt:         created.Add(5 * time.Minute),
		CreatedAt:         created,
	}

	raw := recordFields(rec)
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		fields[k] = fmt.Sprint(v)
	}

	got, err := recordFromFields(rec.PhoneNumber, rec.Purpose, fields)
	if err != nil {
		t.Fatalf("recordFromFields: %v", err)
	}
	if got.Code != "048213" || got.VerificationToken != "tok" || got.Attempts != 0 || got.Verified {
		t.Errorf("record = %+v", got)
	}
	if !got.ExpiresAt.Equal(rec.ExpiresAt) || !got.CreatedAt.Equal(created) {
		t.Errorf("times = %v / %v", got.ExpiresAt, got.CreatedAt)
	}
}

func TestRecordFromFields_Verified(t *testing.T) {
	fields := map[string]string{
		"code":        "111111",
		"token":       "tok",
		"expires_at":  "2026-03-01T10:05:00Z",
		"created_at":  "2026-03-01T10:00:00Z",
		"attempts":    "2",
		"verified":    "1",
		"verified_at": "2026-03-01T10:01:00Z",
	}
	got, err := recordFromFields("p", otp.PurposeLogin, fields)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Verified || got.VerifiedAt == nil || got.Attempts != 2 {
		t.Errorf("record = %+v", got)
	}

	delete(fields, "verified_at")
	if _, err := recordFromFields("p", otp.PurposeLogin, fields); err == nil {
		t.Error("expected error for verified record without verified_at")
	}
}
