package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/utils/cache"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
)

// LoginThrottle locks an IP out of the login endpoint after repeated failures
type LoginThrottle struct {
	cache  *cache.RedisCache
	logger *slog.Logger
}

func NewLoginThrottle(c *cache.RedisCache, logger *slog.Logger) *LoginThrottle {
	return &LoginThrottle{cache: c, logger: logger}
}

func attemptKey(ip string) string { return fmt.Sprintf("login:attempts:%s", ip) }
func lockKey(ip string) string    { return fmt.Sprintf("login:lock:%s", ip) }

// Check rejects locked-out IPs. Redis failures let the request through.
func (t *LoginThrottle) Check() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		locked, err := t.cache.Exists(c.UserContext(), lockKey(ip))
		if err != nil {
			t.logger.WarnContext(c.UserContext(), "login throttle unavailable", slog.Any("error", err))
			return c.Next()
		}
		if !locked {
			return c.Next()
		}

		retryAfter := 60
		if ttl, err := t.cache.TTL(c.UserContext(), lockKey(ip)); err == nil && ttl > 0 {
			retryAfter = int(ttl.Seconds())
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
		return response.Error(c, fiber.StatusTooManyRequests,
			fmt.Sprintf("Too many failed attempts. Try again in %d seconds", retryAfter), "TOO_MANY_REQUESTS")
	}
}

// lockoutFor applies progressive lockouts over a 15 minute window
func lockoutFor(attempts int64) time.Duration {
	switch {
	case attempts >= 25:
		return 24 * time.Hour
	case attempts >= 10:
		return time.Hour
	case attempts >= 5:
		return 2 * time.Minute
	}
	return 0
}

// RecordFailure counts a failed login for ip
func (t *LoginThrottle) RecordFailure(ctx context.Context, ip string) {
	attempts, err := t.cache.Increment(ctx, attemptKey(ip), 15*time.Minute)
	if err != nil {
		return
	}
	if d := lockoutFor(attempts); d > 0 {
		t.logger.WarnContext(ctx, "login locked out", slog.String("ip", ip), slog.Int64("attempts", attempts))
		_ = t.cache.Set(ctx, lockKey(ip), "locked", d)
	}
}

// RecordSuccess clears the counters for ip
func (t *LoginThrottle) RecordSuccess(ctx context.Context, ip string) {
	_ = t.cache.Delete(ctx, attemptKey(ip), lockKey(ip))
}
