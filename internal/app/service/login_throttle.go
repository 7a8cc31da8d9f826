package service

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginThrottle counts failed login attempts per username in Redis and
// blocks further attempts once the limit is reached inside the window.
// It fails open: Redis trouble is logged and never blocks a login.
type LoginThrottle struct {
	rdb      *redis.Client
	attempts int
	window   time.Duration
}

func NewLoginThrottle(rdb *redis.Client, attempts int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{rdb: rdb, attempts: attempts, window: window}
}

const loginAttemptsKeyPrefix = "login_attempts:"

// Allow reports whether another login attempt for username may proceed.
func (t *LoginThrottle) Allow(ctx context.Context, username string) bool {
	if t == nil || t.rdb == nil {
		return true
	}
	count, err := t.rdb.Get(ctx, loginAttemptsKeyPrefix+username).Int()
	if err != nil && err != redis.Nil {
		log.Printf("ERROR: login throttle read: %v", err)
		return true
	}
	return count < t.attempts
}

// RecordFailure bumps the failure counter, starting the window on the first
// failure.
func (t *LoginThrottle) RecordFailure(ctx context.Context, username string) {
	if t == nil || t.rdb == nil {
		return
	}
	key := loginAttemptsKeyPrefix + username
	count, err := t.rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("ERROR: login throttle incr: %v", err)
		return
	}
	if count == 1 {
		if err := t.rdb.Expire(ctx, key, t.window).Err(); err != nil {
			log.Printf("ERROR: login throttle expire: %v", err)
		}
	}
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, username string) {
	if t == nil || t.rdb == nil {
		return
	}
	if err := t.rdb.Del(ctx, loginAttemptsKeyPrefix+username).Err(); err != nil {
		log.Printf("ERROR: login throttle reset: %v", err)
	}
}
