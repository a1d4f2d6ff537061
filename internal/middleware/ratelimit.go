package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/bidmaster/internal/config"
	"github.com/iliyamo/bidmaster/internal/utils"
)

// takeTokenScript refills the bucket at KEYS[1] for the whole intervals
// elapsed since its last refill, then tries to take one token.
// ARGV: now_ms, capacity, refill_tokens, interval_ms, ttl_s.
// Returns {allowed, remaining, retry_after_ms}.
var takeTokenScript = redis.NewScript(`
local now, cap, per, every, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local b = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill_ms')
local tokens, last = tonumber(b[1]), tonumber(b[2])
if not tokens or not last then
	tokens, last = cap, now
end
local n = math.floor(math.max(0, now - last) / every)
if n > 0 then
	tokens = math.min(cap, tokens + n * per)
	last = last + n * every
end
local allowed, wait = 0, 0
if tokens > 0 then
	allowed, tokens = 1, tokens - 1
else
	wait = math.max(0, every - (now - last))
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'last_refill_ms', last)
redis.call('EXPIRE', KEYS[1], ttl)
return {allowed, tokens, wait}
`)

// bucketResult is the decoded reply of takeTokenScript.
type bucketResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

func parseBucketResult(v any) (bucketResult, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 3 {
		return bucketResult{}, fmt.Errorf("unexpected token bucket reply %#v", v)
	}
	n := make([]int64, len(arr))
	for i, x := range arr {
		switch t := x.(type) {
		case int64:
			n[i] = t
		case string:
			parsed, err := strconv.ParseInt(t, 10, 64)
			if err != nil {
				return bucketResult{}, fmt.Errorf("token bucket reply field %d: %w", i, err)
			}
			n[i] = parsed
		default:
			return bucketResult{}, fmt.Errorf("token bucket reply field %d has type %T", i, x)
		}
	}
	return bucketResult{Allowed: n[0] == 1, Remaining: n[1], RetryAfter: time.Duration(n[2]) * time.Millisecond}, nil
}

type tokenBucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
}

func (b tokenBucket) take(ctx context.Context, key string) (bucketResult, error) {
	reply, err := takeTokenScript.Run(ctx, b.rdb, []string{key},
		time.Now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL/time.Second),
	).Result()
	if err != nil {
		return bucketResult{}, err
	}
	return parseBucketResult(reply)
}

// retryAfterSeconds rounds up so a client never retries too early.
func retryAfterSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// NewTokenBucket throttles the bid endpoint per key (see buildRateKey).
// Without Redis, or when Redis fails, bids are let through unthrottled.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	bucket := tokenBucket{cfg: cfg, rdb: rdb}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := bucket.take(c.Request().Context(), key)
			if err != nil {
				utils.Warn("rate limit skipped", map[string]any{"key": key, "error": err.Error()})
				return next(c)
			}

			h := c.Response().Header()
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
				h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
				h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			}
			if res.Allowed {
				return next(c)
			}
			secs := retryAfterSeconds(res.RetryAfter)
			h.Set("Retry-After", strconv.Itoa(secs))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too many bids, slow down",
				"retry_after": secs,
			})
		}
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// buildRateKey derives the bucket key.  Bidders are anonymous, so every
// strategy starts from the client IP or the route; "ip_auction" gives each
// lot its own bucket so bidding on one does not throttle another.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "route":
		parts = append(parts, "route", route)
	case "ip_auction":
		parts = append(parts, "ip", ip, "auction", c.Param("id"))
	default:
		parts = append(parts, "ip", ip, "route", route)
	}
	return strings.Join(parts, ":")
}
