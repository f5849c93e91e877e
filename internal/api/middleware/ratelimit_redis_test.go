package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"loan-engine/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingHook answers pipelines in place of a Redis server: INCR returns the
// running count per key and every command is recorded.
type countingHook struct {
	mu        sync.Mutex
	counts    map[string]int64
	pipelines [][]redis.Cmder
}

func (h *countingHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *countingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return next
}

func (h *countingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.pipelines = append(h.pipelines, cmds)
		for _, cmd := range cmds {
			switch c := cmd.(type) {
			case *redis.IntCmd:
				key := c.Args()[1].(string)
				h.counts[key]++
				c.SetVal(h.counts[key])
			case *redis.BoolCmd:
				c.SetVal(true)
			}
		}
		return nil
	}
}

func TestRedisRateLimiter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("disables itself without a client", func(t *testing.T) {
		rl := NewRedisRateLimiter(config.RateLimitConfig{Enabled: true, RPS: 1}, nil, logger)

		rec := httptest.NewRecorder()
		rl.Middleware(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("lets requests through when Redis is unreachable", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 50 * time.Millisecond,
			MaxRetries:  -1,
		})
		t.Cleanup(func() { client.Close() })
		rl := NewRedisRateLimiter(config.RateLimitConfig{Enabled: true, RPS: 1}, client, logger)

		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			rl.Middleware(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("rounds the per-second limit up", func(t *testing.T) {
		assert.Equal(t, int64(1), NewRedisRateLimiter(config.RateLimitConfig{RPS: 0.2}, nil, logger).limit())
		assert.Equal(t, int64(3), NewRedisRateLimiter(config.RateLimitConfig{RPS: 2.5}, nil, logger).limit())
	})

	t.Run("sets the window expiry in the same pipeline as the counter", func(t *testing.T) {
		hook := &countingHook{counts: map[string]int64{}}
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
		client.AddHook(hook)
		t.Cleanup(func() { client.Close() })
		rl := NewRedisRateLimiter(config.RateLimitConfig{Enabled: true, RPS: 1}, client, logger)
		handler := rl.Middleware(okHandler)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.1.1:4000"

		first := httptest.NewRecorder()
		handler.ServeHTTP(first, req)
		second := httptest.NewRecorder()
		handler.ServeHTTP(second, req)

		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Equal(t, "1", second.Header().Get("Retry-After"))

		require.Len(t, hook.pipelines, 2)
		cmds := hook.pipelines[0]
		require.Len(t, cmds, 2)
		assert.Equal(t, []interface{}{"incr", "loan-engine:ratelimit:10.1.1.1"}, cmds[0].Args())
		expire := cmds[1].Args()
		require.Len(t, expire, 4)
		assert.Equal(t, "expire", cmds[1].Name())
		assert.Equal(t, "loan-engine:ratelimit:10.1.1.1", expire[1])
		assert.Equal(t, int64(1), expire[2])
		assert.True(t, strings.EqualFold("nx", expire[3].(string)))
	})
}
