// Package ratelimit throttles OTP issuance per phone number and purpose.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is the storage a Limiter needs.
type Counter interface {
	// Incr bumps the counter at key and returns the new value. The key expires
	// window after its first increment.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	// Claim sets key for ttl if it is not set. When it is already set it returns
	// false and the remaining ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error)
}

// Decision is the result of Limiter.Allow.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string
}

// Limiter allows at most Max issuances per Window and no two within Cooldown.
type Limiter struct {
	counter  Counter
	window   time.Duration
	max      int
	cooldown time.Duration
}

func New(counter Counter, window time.Duration, max int, cooldown time.Duration) *Limiter {
	return &Limiter{counter: counter, window: window, max: max, cooldown: cooldown}
}

// Allow records an issuance attempt for (phone, purpose).
func (l *Limiter) Allow(ctx context.Context, phone, purpose string) (Decision, error) {
	base := fmt.Sprintf("otp:rl:%s:%s", purpose, phone)

	if l.cooldown > 0 {
		ok, ttl, err := l.counter.Claim(ctx, base+":cooldown", l.cooldown)
		if err != nil {
			return Decision{Allowed: true}, err
		}
		if !ok {
			return Decision{RetryAfter: ttl, Reason: "Please wait before requesting another code."}, nil
		}
	}

	if l.max > 0 {
		count, ttl, err := l.counter.Incr(ctx, base+":window", l.window)
		if err != nil {
			return Decision{Allowed: true}, err
		}
		if count > int64(l.max) {
			return Decision{RetryAfter: ttl, Reason: "Too many OTP requests. Try again later."}, nil
		}
	}

	return Decision{Allowed: true}, nil
}

// RedisCounter implements Counter on Redis.
type RedisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return count, 0, err
		}
		return count, window, nil
	}
	ttl, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return count, 0, err
	}
	return count, ttl, nil
}

func (c *RedisCounter) Claim(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	ok, err := c.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil || ok {
		return ok, 0, err
	}
	remaining, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	return false, remaining, nil
}
