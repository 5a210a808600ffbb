package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckUserRateLimit_BurstThenDeny(t *testing.T) {
	c, _ := newTestCache(t)
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := c.CheckUserRateLimit(ctx, "user-1", 60, 3)
		require.NoError(t, err)
		require.True(t, res.Allowed, "request %d should be allowed", i)
		require.Equal(t, int64(2-i), res.Remaining)
	}

	res, err := c.CheckUserRateLimit(ctx, "user-1", 60, 3)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, time.Second, res.RetryAfter)
	require.Equal(t, now.Add(3*time.Second), res.ResetAt)

	// Other users have their own bucket.
	res, err = c.CheckUserRateLimit(ctx, "user-2", 60, 3)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestCheckUserRateLimit_Refills(t *testing.T) {
	c, _ := newTestCache(t)
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	res, err := c.CheckUserRateLimit(ctx, "user-1", 120, 1)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = c.CheckUserRateLimit(ctx, "user-1", 120, 1)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, 500*time.Millisecond, res.RetryAfter)

	now = now.Add(500 * time.Millisecond)
	res, err = c.CheckUserRateLimit(ctx, "user-1", 120, 1)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestCheckUserRateLimit_ZeroRateDisables(t *testing.T) {
	c, m := newTestCache(t)

	res, err := c.CheckUserRateLimit(context.Background(), "user-1", 0, 5)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.False(t, m.Exists(rateLimitUserPrefix+"user-1"))
}

func TestCheckRateLimit_RedisDownIsAnError(t *testing.T) {
	c, m := newTestCache(t)
	m.Close()

	_, err := c.CheckUserRateLimit(context.Background(), "user-1", 60, 1)
	require.Error(t, err)
}

func TestCheckIPRateLimit_HashesKey(t *testing.T) {
	c, m := newTestCache(t)

	_, err := c.CheckIPRateLimit(context.Background(), "203.0.113.7", 10, 20)
	require.NoError(t, err)
	require.True(t, m.Exists(rateLimitIPPrefix+hashIP("203.0.113.7")))
	require.False(t, m.Exists(rateLimitIPPrefix+"203.0.113.7"))
	require.Positive(t, m.TTL(rateLimitIPPrefix+hashIP("203.0.113.7")))
}

func TestHashIP(t *testing.T) {
	require.Len(t, hashIP("::1"), 16)
	require.Equal(t, hashIP("10.0.0.1"), hashIP("10.0.0.1"))
	require.NotEqual(t, hashIP("10.0.0.1"), hashIP("10.0.0.2"))
}
