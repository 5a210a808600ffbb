package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitUserPrefix = "ratelimit:user:"
	rateLimitIPPrefix   = "ratelimit:ip:"
)

// RateLimitResult is the outcome of one rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	// ResetAt is when the bucket will be full again.
	ResetAt time.Time
	// RetryAfter is how long a denied caller must wait for one token.
	RetryAfter time.Duration
}

// tokenBucketScript refills and takes one token atomically.
// Times are unix milliseconds so sub-second refill rates work.
//
// KEYS[1] bucket key
// ARGV[1] refill rate in tokens per millisecond
// ARGV[2] bucket capacity
// ARGV[3] now (ms)
// Returns {allowed, retry_after_ms, remaining, full_in_ms}.
var tokenBucketScript = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
if now > ts then
	tokens = math.min(burst, tokens + (now - ts) * rate)
end

local allowed = 0
local retry = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	retry = math.ceil((1 - tokens) / rate)
end

local full = math.ceil((burst - tokens) / rate)
redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', KEYS[1], full + 1000)

return {allowed, retry, math.floor(tokens), full}
`)

// CheckUserRateLimit takes a token from the caller's bucket, refilled at
// ratePerMinute. A zero rate disables the limit.
func (c *Cache) CheckUserRateLimit(ctx context.Context, userID string, ratePerMinute, burst int) (*RateLimitResult, error) {
	if ratePerMinute <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst)}, nil
	}
	return c.takeToken(ctx, rateLimitUserPrefix+userID, float64(ratePerMinute)/60, burst)
}

// CheckIPRateLimit takes a token from the bucket of a client address. The
// address is hashed so raw IPs are never stored.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst)}, nil
	}
	return c.takeToken(ctx, rateLimitIPPrefix+hashIP(ip), float64(ratePerSecond), burst)
}

// takeToken runs the bucket script. Errors are returned so the caller
// decides whether to fail open.
func (c *Cache) takeToken(ctx context.Context, key string, perSecond float64, burst int) (*RateLimitResult, error) {
	if burst < 1 {
		burst = 1
	}
	now := c.now()

	res, err := tokenBucketScript.Run(ctx, c.client, []string{key}, perSecond/1000, burst, now.UnixMilli()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 4 {
		return nil, fmt.Errorf("rate limit %s: unexpected reply %v", key, res)
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
		Remaining:  res[2],
		ResetAt:    now.Add(time.Duration(res[3]) * time.Millisecond),
	}, nil
}

// hashIP returns the first 8 bytes of the address's SHA-256 as hex.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
