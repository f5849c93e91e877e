package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"loan-engine/internal/config"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "loan-engine:ratelimit:"

// RedisRateLimiter counts requests per client IP in fixed one-second windows
// kept in Redis, so every instance behind a load balancer shares the budget.
// When Redis is unreachable requests are let through.
type RedisRateLimiter struct {
	client *redis.Client
	cfg    config.RateLimitConfig
	logger *slog.Logger
	window time.Duration
}

func NewRedisRateLimiter(cfg config.RateLimitConfig, client *redis.Client, logger *slog.Logger) *RedisRateLimiter {
	if cfg.Enabled && client == nil {
		logger.Warn("Rate limiting enabled but no Redis client provided; disabling.")
		cfg.Enabled = false
	}
	return &RedisRateLimiter{
		client: client,
		cfg:    cfg,
		logger: logger,
		window: time.Second,
	}
}

// limit is the number of requests allowed per window.
func (rl *RedisRateLimiter) limit() int64 {
	n := int64(math.Ceil(rl.cfg.RPS))
	if n < 1 {
		return 1
	}
	return n
}

func (rl *RedisRateLimiter) Middleware(next http.Handler) http.Handler {
	if !rl.cfg.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := extractIP(r)
		key := redisKeyPrefix + ip

		pipe := rl.client.Pipeline()
		incrCmd := pipe.Incr(ctx, key)
		// The first request of a window starts its expiry; later ones leave it alone.
		pipe.ExpireNX(ctx, key, rl.window)
		if _, err := pipe.Exec(ctx); err != nil {
			rl.logger.Error("Redis pipeline failed during rate limiting check", "error", err, "ip", ip)
			next.ServeHTTP(w, r)
			return
		}

		if count := incrCmd.Val(); count > rl.limit() {
			rl.logger.Warn("Rate limit exceeded", "ip", ip, "count", count, "limit", rl.limit())
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rl.window.Seconds()))
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{
					"code":    "RATE_LIMITED",
					"message": "Rate limit exceeded",
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
