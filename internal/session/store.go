// ABOUTME: Session persistence over the kv backend under session:{externalUserId}
// ABOUTME: Degrades to absent reads and no-op writes when the backend is unavailable

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/ally-gateway/internal/kv"
)

// DefaultTTL is the store-level lifetime of a session record, refreshed on every write.
const DefaultTTL = 30 * 24 * time.Hour

// Key returns the storage key for a user's session.
func Key(externalUserID string) string {
	return "session:" + externalUserID
}

// Store reads and writes sessions.
type Store struct {
	backend kv.Store
	ttl     time.Duration
	logger  *slog.Logger
}

// NewStore creates a session Store. A zero ttl selects DefaultTTL.
func NewStore(backend kv.Store, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{backend: backend, ttl: ttl, logger: logger}
}

// Read returns the stored session. Missing, corrupt and unreachable records
// all report false so the caller starts from a fresh session.
func (s *Store) Read(ctx context.Context, externalUserID string) (*Session, bool) {
	data, err := s.backend.Get(ctx, Key(externalUserID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("session read failed, using ephemeral session", "user", externalUserID, "error", err)
		return nil, false
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.Error("discarding corrupt session record", "user", externalUserID, "error", err)
		return nil, false
	}
	return &sess, true
}

// Write persists the session and refreshes its TTL. Backend outages are logged and
// swallowed; only encoding bugs are returned.
func (s *Store) Write(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.backend.Set(ctx, Key(sess.ExternalUserID), data, s.ttl); err != nil {
		s.logger.Warn("session write failed", "user", sess.ExternalUserID, "error", err)
	}
	return nil
}

// Delete removes the session record.
func (s *Store) Delete(ctx context.Context, externalUserID string) error {
	if err := s.backend.Delete(ctx, Key(externalUserID)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
