package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window limiter backed by redis so the quota holds
// across instances.
type RateLimiter struct {
	Redis  *redis.Client
	Prefix string
	Limit  int
	Window time.Duration
}

func NewRateLimiter(r *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{Redis: r, Prefix: prefix, Limit: limit, Window: window}
}

func (r *RateLimiter) MiddlewareByKey(keyFunc func(c *fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		redisKey := fmt.Sprintf("%s:%s", r.Prefix, keyFunc(c))
		count, err := r.Redis.Incr(c.Context(), redisKey).Result()
		if err != nil {
			// fail open: a limiter outage must not take chat down
			return c.Next()
		}
		if count == 1 {
			r.Redis.Expire(c.Context(), redisKey, r.Window)
		}
		if count > int64(r.Limit) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
