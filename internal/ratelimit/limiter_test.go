// ABOUTME: Tests for the fixed-window rate limiter
// ABOUTME: Exercises quota, window expiry, reset and fail-open against miniredis

package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ally-gateway/internal/kv"
)

func setupLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)
	backend := kv.NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), logger)
	t.Cleanup(func() { _ = backend.Close() })
	return New(cfg, backend, logger), mr
}

func TestLimiter_RejectsAfterMax(t *testing.T) {
	l, _ := setupLimiter(t, Auth)
	ctx := context.Background()

	for i := int64(1); i <= Auth.MaxAttempts; i++ {
		res := l.Check(ctx, "user-1")
		require.True(t, res.Allowed, "attempt %d should be allowed", i)
		assert.Equal(t, Auth.MaxAttempts-i, res.Remaining)
	}

	res := l.Check(ctx, "user-1")
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)
	assert.Greater(t, res.ResetIn, time.Duration(0))

	// Other users are unaffected.
	assert.True(t, l.Check(ctx, "user-2").Allowed)
}

func TestLimiter_AllowsAfterWindow(t *testing.T) {
	l, mr := setupLimiter(t, Message)
	ctx := context.Background()

	for i := int64(0); i <= Message.MaxAttempts; i++ {
		l.Check(ctx, "u")
	}
	require.False(t, l.Check(ctx, "u").Allowed)

	mr.FastForward(Message.Window + time.Second)

	res := l.Check(ctx, "u")
	assert.True(t, res.Allowed)
	assert.Equal(t, Message.MaxAttempts-1, res.Remaining)
}

func TestLimiter_WindowNotExtendedBySustainedAttempts(t *testing.T) {
	l, mr := setupLimiter(t, Auth)
	ctx := context.Background()

	l.Check(ctx, "attacker")
	for i := 0; i < 14; i++ {
		mr.FastForward(time.Minute)
		l.Check(ctx, "attacker")
	}
	assert.Equal(t, time.Minute, mr.TTL(l.Key("attacker")))

	mr.FastForward(time.Minute + time.Second)
	res := l.Check(ctx, "attacker")
	assert.True(t, res.Allowed)
	assert.Equal(t, Auth.MaxAttempts-1, res.Remaining)
}

func TestLimiter_CounterAlwaysHasTTL(t *testing.T) {
	l, mr := setupLimiter(t, Auth)
	l.Check(context.Background(), "u")

	assert.Equal(t, "rate:auth:u", l.Key("u"))
	assert.True(t, mr.Exists("rate:auth:u"))
	assert.Equal(t, Auth.Window, mr.TTL("rate:auth:u"))
}

func TestLimiter_Reset(t *testing.T) {
	l, _ := setupLimiter(t, Auth)
	ctx := context.Background()

	for i := int64(0); i <= Auth.MaxAttempts; i++ {
		l.Check(ctx, "u")
	}
	require.False(t, l.Check(ctx, "u").Allowed)

	require.NoError(t, l.Reset(ctx, "u"))

	res := l.Check(ctx, "u")
	assert.True(t, res.Allowed)
	assert.Equal(t, Auth.MaxAttempts-1, res.Remaining)
}

func TestLimiter_FailsOpen(t *testing.T) {
	l, mr := setupLimiter(t, Auth)
	mr.Close()

	res := l.Check(context.Background(), "u")
	assert.True(t, res.Allowed)
	assert.Equal(t, Auth.MaxAttempts, res.Remaining)
}

func TestLimiter_MemoryBackend(t *testing.T) {
	backend := kv.NewMemoryStore()
	defer backend.Close()
	l := New(Config{MaxAttempts: 2, Window: time.Minute, KeyPrefix: "test"}, backend, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	assert.True(t, l.Check(ctx, "u").Allowed)
	assert.True(t, l.Check(ctx, "u").Allowed)
	assert.False(t, l.Check(ctx, "u").Allowed)
}
