package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/clinic/internal/otp"
)

// ConnectRedis returns a client after a successful PING.
func ConnectRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisOTPStore keeps each record as a hash at otp:<purpose>:<phone>. The key
// expires after the retention period, so DeleteStale has nothing to do.
// expires_us mirrors expires_at in unix microseconds for the Lua scripts.
type RedisOTPStore struct {
	rdb       *redis.Client
	retention time.Duration
}

func NewRedisOTPStore(rdb *redis.Client, retention time.Duration) *RedisOTPStore {
	return &RedisOTPStore{rdb: rdb, retention: retention}
}

var incrementAttempts = redis.NewScript(`
if redis.call("HGET", KEYS[1], "token") ~= ARGV[1] then
	return -1
end
local attempts = tonumber(redis.call("HGET", KEYS[1], "attempts") or "0")
if attempts >= tonumber(ARGV[2]) then
	return -2
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

var markVerified = redis.NewScript(`
if redis.call("HGET", KEYS[1], "token") ~= ARGV[1] then
	return 0
end
if redis.call("HGET", KEYS[1], "verified") == "1" then
	return 0
end
local attempts = tonumber(redis.call("HGET", KEYS[1], "attempts") or "0")
if attempts >= tonumber(ARGV[2]) then
	return 0
end
if tonumber(redis.call("HGET", KEYS[1], "expires_us") or "0") < tonumber(ARGV[4]) then
	return 0
end
redis.call("HSET", KEYS[1], "verified", "1", "verified_at", ARGV[3])
return 1
`)

var deleteIssuance = redis.NewScript(`
if redis.call("HGET", KEYS[1], "token") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *RedisOTPStore) Upsert(ctx context.Context, rec *otp.Record) error {
	key := otpKey(rec.PhoneNumber, rec.Purpose)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, recordFields(rec))
		pipe.Expire(ctx, key, s.retention)
		return nil
	})
	return err
}

func (s *RedisOTPStore) Find(ctx context.Context, phone string, purpose otp.Purpose, token string) (*otp.Record, error) {
	fields, err := s.rdb.HGetAll(ctx, otpKey(phone, purpose)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields["token"] != token {
		return nil, otp.ErrNotFound
	}
	return recordFromFields(phone, purpose, fields)
}

func (s *RedisOTPStore) IncrementAttempts(ctx context.Context, phone string, purpose otp.Purpose, token string, max int) (int, error) {
	n, err := incrementAttempts.Run(ctx, s.rdb, []string{otpKey(phone, purpose)}, token, max).Int()
	if err != nil {
		return 0, err
	}
	switch n {
	case -1:
		return 0, otp.ErrNotFound
	case -2:
		return max, otp.ErrAttemptLimit
	}
	return n, nil
}

func (s *RedisOTPStore) MarkVerified(ctx context.Context, phone string, purpose otp.Purpose, token string, max int, at time.Time) error {
	n, err := markVerified.Run(ctx, s.rdb, []string{otpKey(phone, purpose)}, token, max, at.Format(time.RFC3339Nano), at.UnixMicro()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return otp.ErrConflict
	}
	return nil
}

func (s *RedisOTPStore) Delete(ctx context.Context, phone string, purpose otp.Purpose) error {
	return s.rdb.Del(ctx, otpKey(phone, purpose)).Err()
}

func (s *RedisOTPStore) DeleteIssuance(ctx context.Context, phone string, purpose otp.Purpose, token string) error {
	return deleteIssuance.Run(ctx, s.rdb, []string{otpKey(phone, purpose)}, token).Err()
}

func (s *RedisOTPStore) DeleteStale(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func otpKey(phone string, purpose otp.Purpose) string {
	return fmt.Sprint("otp:", purpose.String(), ":", phone)
}

func recordFields(rec *otp.Record) map[string]interface{} {
	return map[string]interface{}{
		"code":       rec.Code,
		"token":      rec.VerificationToken,
		"expires_at": rec.ExpiresAt.Format(time.RFC3339Nano),
		"expires_us": rec.ExpiresAt.UnixMicro(),
		"attempts":   0,
		"verified":   "0",
		"created_at": rec.CreatedAt.Format(time.RFC3339Nano),
	}
}

func recordFromFields(phone string, purpose otp.Purpose, fields map[string]string) (*otp.Record, error) {
	rec := &otp.Record{
		PhoneNumber:       phone,
		Purpose:           purpose,
		Code:              fields["code"],
		VerificationToken: fields["token"],
		Verified:          fields["verified"] == "1",
	}

	var err error
	if rec.ExpiresAt, err = time.Parse(time.RFC3339Nano, fields["expires_at"]); err != nil {
		return nil, fmt.Errorf("expires_at: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if rec.Attempts, err = strconv.Atoi(fields["attempts"]); err != nil {
		return nil, fmt.Errorf("attempts: %w", err)
	}
	if raw, ok := fields["verified_at"]; ok && raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("verified_at: %w", err)
		}
		rec.VerifiedAt = &at
	}
	if rec.Verified && rec.VerifiedAt == nil {
		return nil, errors.New("verified record without verified_at")
	}
	return rec, nil
}
