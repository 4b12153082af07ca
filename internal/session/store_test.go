// ABOUTME: Tests for session persistence and degradation behavior
// ABOUTME: Uses miniredis for the Redis backend and the in-memory kv for fast cases

package session

import (
	"context"
	"encoding/json"
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

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupRedisSessions(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	backend := kv.NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), quietLogger())
	t.Cleanup(func() { _ = backend.Close() })
	return NewStore(backend, time.Hour, quietLogger()), mr
}

func TestStore_WriteThenReadIsFieldEqual(t *testing.T) {
	store, _ := setupRedisSessions(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	sess := New("!room:example.org", "@alice:example.org", "de")
	sess.LastActivity = now
	sess.LastProcessedUpdateID = "$evt1"
	sess.IsProcessing = true
	sess.ProcessingSince = now.Add(-time.Second)
	sess.Auth = OtpPending{CandidateEmail: "alice@example.com", Expiry: now.Add(10 * time.Minute)}
	sess.IdentityChange = &IdentityChange{NewEmail: "new@example.com", Expiry: now.Add(5 * time.Minute)}
	sess.Confirmation = PendingConfirmation{
		EventData:         json.RawMessage(`{"summary":"Standup"}`),
		ConflictingEvents: json.RawMessage(`[{"summary":"1:1"}]`),
	}

	require.NoError(t, store.Write(ctx, sess))

	got, ok := store.Read(ctx, "@alice:example.org")
	require.True(t, ok)
	assert.Equal(t, sess, got)
}

func TestStore_CredentialIsNotPersisted(t *testing.T) {
	store, _ := setupRedisSessions(t)
	ctx := context.Background()

	sess := New("c", "u", "en")
	sess.Auth = Authenticated{Email: "a@b.com"}
	sess.Credential = AttachedCredential{AccessToken: "secret", Expiry: time.Now()}
	require.NoError(t, store.Write(ctx, sess))

	got, ok := store.Read(ctx, "u")
	require.True(t, ok)
	assert.Equal(t, NoCredential{}, got.Credential)
	email, authed := got.Email()
	assert.True(t, authed)
	assert.Equal(t, "a@b.com", email)
}

func TestStore_WriteRefreshesTTL(t *testing.T) {
	store, mr := setupRedisSessions(t)
	ctx := context.Background()

	sess := New("c", "u", "en")
	require.NoError(t, store.Write(ctx, sess))
	assert.Equal(t, time.Hour, mr.TTL(Key("u")))

	mr.FastForward(30 * time.Minute)
	assert.Equal(t, 30*time.Minute, mr.TTL(Key("u")))

	require.NoError(t, store.Write(ctx, sess))
	assert.Equal(t, time.Hour, mr.TTL(Key("u")))
}

func TestStore_ReadMissing(t *testing.T) {
	store, _ := setupRedisSessions(t)

	got, ok := store.Read(context.Background(), "nobody")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestStore_CorruptRecordIsAbsent(t *testing.T) {
	store, mr := setupRedisSessions(t)
	require.NoError(t, mr.Set(Key("u"), "{not json"))

	_, ok := store.Read(context.Background(), "u")
	assert.False(t, ok)
}

func TestStore_BackendDown(t *testing.T) {
	store, mr := setupRedisSessions(t)
	ctx := context.Background()
	mr.Close()

	_, ok := store.Read(ctx, "u")
	assert.False(t, ok, "unavailable backend reads as absent")

	err := store.Write(ctx, New("c", "u", "en"))
	assert.NoError(t, err, "unavailable backend write is a logged no-op")
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(kv.NewMemoryStore(), 0, quietLogger())
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, New("c", "u", "en")))
	_, ok := store.Read(ctx, "u")
	require.True(t, ok)

	require.NoError(t, store.Delete(ctx, "u"))
	_, ok = store.Read(ctx, "u")
	assert.False(t, ok)
}

func TestSession_ClearAuthKeepsChatLinkage(t *testing.T) {
	sess := New("chat-1", "user-1", "fr")
	sess.Auth = Authenticated{Email: "a@b.com"}
	sess.Credential = AttachedCredential{AccessToken: "tok"}
	sess.Confirmation = PendingConfirmation{}
	sess.IdentityChange = &IdentityChange{NewEmail: "x@y.com"}
	sess.LastProcessedUpdateID = "42"

	sess.ClearAuth()

	assert.Equal(t, Unauthenticated{}, sess.Auth)
	assert.Equal(t, NoCredential{}, sess.Credential)
	assert.Equal(t, NoConfirmation{}, sess.Confirmation)
	assert.Nil(t, sess.IdentityChange)
	assert.Equal(t, "chat-1", sess.ChatID)
	assert.Equal(t, "user-1", sess.ExternalUserID)
	assert.Equal(t, "42", sess.LastProcessedUpdateID)
}

func TestSession_BusyFor(t *testing.T) {
	now := time.Now()
	sess := New("chat-1", "user-1", "")
	assert.False(t, sess.BusyFor(now, time.Minute))

	sess.IsProcessing = true
	assert.True(t, sess.BusyFor(now, time.Minute), "flag without timestamp counts as busy")

	sess.ProcessingSince = now.Add(-30 * time.Second)
	assert.True(t, sess.BusyFor(now, time.Minute))

	sess.ProcessingSince = now.Add(-2 * time.Minute)
	assert.False(t, sess.BusyFor(now, time.Minute), "leftover flag is ignored")
}
