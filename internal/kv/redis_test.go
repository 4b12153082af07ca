// ABOUTME: Tests for the Redis kv store against miniredis
// ABOUTME: Covers get/set/delete, window counters and unavailability mapping

package kv

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
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "session:42", []byte(`{"a":1}`), time.Hour))

	got, err := s.Get(ctx, "session:42")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))
	assert.Equal(t, time.Hour, mr.TTL("session:42"))

	require.NoError(t, s.Delete(ctx, "session:42"))
	_, err = s.Get(ctx, "session:42")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_SetExpires(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(time.Minute + time.Second)

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_IncrWindow_SetsTTLOnce(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()

	count, ttl, err := s.IncrWindow(ctx, "rate:auth:1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, ttl)

	mr.FastForward(40 * time.Second)

	count, ttl, err = s.IncrWindow(ctx, "rate:auth:1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 20*time.Second, ttl, "second increment must not extend the window")
	assert.Equal(t, 20*time.Second, mr.TTL("rate:auth:1"))

	mr.FastForward(21 * time.Second)

	count, _, err = s.IncrWindow(ctx, "rate:auth:1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "new window starts after expiry")
}

func TestRedisStore_Unavailable(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()
	mr.Close()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)

	err = s.Set(ctx, "k", []byte("v"), time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, _, err = s.IncrWindow(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.ErrorIs(t, s.Ping(ctx), ErrUnavailable)
}
