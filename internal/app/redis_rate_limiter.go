package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SubmitRateLimiter counts wizard submissions per subject in a fixed window.
type SubmitRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// The first hit of a window sets its expiry; every hit returns {count, pttl}.
var submitRateLimitScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {hits, ttl}
`)

const minRateWindow = time.Second

// RedisSubmitRateLimiter shares submit windows across service instances.
type RedisSubmitRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSubmitRateLimiter stores windows under "<prefix>:rate_limit:<scope>:<subject>".
func NewRedisSubmitRateLimiter(client redis.UniversalClient, prefix string) *RedisSubmitRateLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "fund"
	}
	return &RedisSubmitRateLimiter{client: client, prefix: prefix + ":rate_limit"}
}

func (r *RedisSubmitRateLimiter) key(scope, subject string) string {
	return r.prefix + ":" + scope + ":" + subject
}

func (r *RedisSubmitRateLimiter) ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (int, int, error) {
	if r == nil || r.client == nil {
		return 0, 0, nil
	}
	scope, subject, window, ok := normalizeRateWindow(scope, subject, limit, window)
	if !ok {
		return 0, 0, nil
	}

	reply, err := submitRateLimitScript.Run(ctx, r.client, []string{r.key(scope, subject)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("submit rate limit %s: %w", scope, err)
	}
	if len(reply) != 2 {
		return 0, 0, fmt.Errorf("submit rate limit %s: unexpected reply of %d values", scope, len(reply))
	}
	hits, ttl := reply[0], reply[1]
	if ttl < 0 {
		ttl = window.Milliseconds()
	}
	return int(hits), retryAfterFromMillis(ttl), nil
}

// MemorySubmitRateLimiter is the single-process limiter used when Redis is not configured.
type MemorySubmitRateLimiter struct {
	mu      sync.Mutex
	windows map[string]memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	count     int
	expiresAt time.Time
}

// Expired windows are pruned once the map grows past this size.
const memoryRateWindowSweepSize = 1024

func NewMemorySubmitRateLimiter() *MemorySubmitRateLimiter {
	return &MemorySubmitRateLimiter{windows: make(map[string]memoryWindow), now: time.Now}
}

func (m *MemorySubmitRateLimiter) ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (int, int, error) {
	scope, subject, window, ok := normalizeRateWindow(scope, subject, limit, window)
	if !ok {
		return 0, 0, nil
	}
	key := scope + ":" + subject
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.windows) >= memoryRateWindowSweepSize {
		for k, w := range m.windows {
			if !now.Before(w.expiresAt) {
				delete(m.windows, k)
			}
		}
	}

	w, found := m.windows[key]
	if !found || !now.Before(w.expiresAt) {
		w = memoryWindow{expiresAt: now.Add(window)}
	}
	w.count++
	m.windows[key] = w

	return w.count, retryAfterFromMillis(w.expiresAt.Sub(now).Milliseconds()), nil
}

// normalizeRateWindow trims the identifiers and applies the one second floor.
// ok is false when the call should not be counted at all.
func normalizeRateWindow(scope, subject string, limit int, window time.Duration) (string, string, time.Duration, bool) {
	scope, subject = strings.TrimSpace(scope), strings.TrimSpace(subject)
	if limit <= 0 || window <= 0 || scope == "" || subject == "" {
		return "", "", 0, false
	}
	if window < minRateWindow {
		window = minRateWindow
	}
	return scope, subject, window, true
}

func retryAfterFromMillis(ttlMs int64) int {
	return int(math.Max(1, math.Ceil(float64(ttlMs)/1000.0)))
}
