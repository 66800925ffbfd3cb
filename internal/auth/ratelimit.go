package auth

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// LoginLimiter tracks failed login attempts per client address in redis, so
// the counter survives restarts and is shared across instances.
type LoginLimiter struct {
	Client *redis.Client
	Max    int
	Window time.Duration
}

func NewLoginLimiter(client *redis.Client, max int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{Client: client, Max: max, Window: window}
}

func (l *LoginLimiter) key(addr string) string {
	return "login_attempts:" + addr
}

// Allow reports whether the address is still under the attempt limit.
func (l *LoginLimiter) Allow(addr string) (bool, error) {
	count, err := l.Client.Get(context.Background(), l.key(addr)).Int()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return count < l.Max, nil
}

// RecordFailure increments the counter, starting the window on the first
// failure.
func (l *LoginLimiter) RecordFailure(addr string) error {
	ctx := context.Background()
	count, err := l.Client.Incr(ctx, l.key(addr)).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		return l.Client.Expire(ctx, l.key(addr), l.Window).Err()
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(addr string) error {
	return l.Client.Del(context.Background(), l.key(addr)).Err()
}
