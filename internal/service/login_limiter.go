package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const loginAttemptKeyPrefix = "login_attempts:"

// LoginLimiter throttles repeated failed logins per username using a
// Redis counter with a sliding expiry window. Redis outages never block
// logins; the limiter fails open and logs.
type LoginLimiter struct {
	client      *redis.Client
	logger      *zap.Logger
	maxAttempts int
	window      time.Duration
}

// NewLoginLimiter builds a limiter. A nil client disables throttling.
func NewLoginLimiter(client *redis.Client, logger *zap.Logger, maxAttempts int, window time.Duration) *LoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &LoginLimiter{client: client, logger: logger, maxAttempts: maxAttempts, window: window}
}

// Blocked reports whether the username has exhausted its attempts.
func (l *LoginLimiter) Blocked(ctx context.Context, username string) bool {
	if l == nil || l.client == nil {
		return false
	}
	count, err := l.client.Get(ctx, loginAttemptKeyPrefix+username).Int()
	if err != nil {
		if err != redis.Nil {
			l.logger.Warn("login limiter unavailable", zap.Error(err))
		}
		return false
	}
	return count >= l.maxAttempts
}

// RecordFailure increments the failure counter, starting the expiry
// window on the first failure.
func (l *LoginLimiter) RecordFailure(ctx context.Context, username string) {
	if l == nil || l.client == nil {
		return
	}
	key := loginAttemptKeyPrefix + username
	pipe := l.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("login limiter record failed", zap.Error(err))
	}
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, username string) {
	if l == nil || l.client == nil {
		return
	}
	if err := l.client.Del(ctx, loginAttemptKeyPrefix+username).Err(); err != nil {
		l.logger.Warn("login limiter reset failed", zap.Error(err))
	}
}
