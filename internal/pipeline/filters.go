// ABOUTME: Stale and duplicate update filters plus the session inactivity monitor
// ABOUTME: Filters discard silently; the monitor resets auth after a long idle period

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/2389/ally-gateway/internal/i18n"
)

const (
	// DefaultStaleAfter is the maximum age of an update that is still processed.
	DefaultStaleAfter = 60 * time.Second
	// DefaultInactivityTimeout is how long a session may idle before re-authentication.
	DefaultInactivityTimeout = 24 * time.Hour
)

// StaleFilter drops updates emitted too long ago. It is stateless and runs
// before the session is loaded.
type StaleFilter struct {
	MaxAge time.Duration
	now    func() time.Time
}

// NewStaleFilter returns a filter; maxAge <= 0 selects DefaultStaleAfter.
func NewStaleFilter(maxAge time.Duration) *StaleFilter {
	if maxAge <= 0 {
		maxAge = DefaultStaleAfter
	}
	return &StaleFilter{MaxAge: maxAge, now: time.Now}
}

// IsStale reports whether u is older than MaxAge.
func (f *StaleFilter) IsStale(u Update) bool {
	if u.EmittedAt.IsZero() {
		return false
	}
	return f.now().Sub(u.EmittedAt) > f.MaxAge
}

// DuplicateFilter drops an update whose id equals the last processed one.
type DuplicateFilter struct{}

func (DuplicateFilter) Name() string { return "duplicate" }

func (DuplicateFilter) Process(_ context.Context, turn *Turn) (Decision, error) {
	id := turn.Update.ID
	if id != "" && id == turn.Session.LastProcessedUpdateID {
		return Drop, nil
	}
	turn.Session.LastProcessedUpdateID = id
	return Continue, nil
}

// ExpiryMonitor resets authentication after a period of inactivity and stamps
// the session's last activity on every update.
type ExpiryMonitor struct {
	Timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewExpiryMonitor returns a monitor; timeout <= 0 selects DefaultInactivityTimeout.
func NewExpiryMonitor(timeout time.Duration, logger *slog.Logger) *ExpiryMonitor {
	if timeout <= 0 {
		timeout = DefaultInactivityTimeout
	}
	return &ExpiryMonitor{
		Timeout: timeout,
		logger:  logger.With("stage", "expiry"),
		now:     time.Now,
	}
}

func (m *ExpiryMonitor) Name() string { return "expiry" }

func (m *ExpiryMonitor) Process(ctx context.Context, turn *Turn) (Decision, error) {
	now := m.now()
	s := turn.Session
	if !s.LastActivity.IsZero() && now.Sub(s.LastActivity) > m.Timeout {
		m.logger.Info("session expired after inactivity",
			"user", s.ExternalUserID,
			"idle", now.Sub(s.LastActivity).Round(time.Minute),
		)
		s.ClearAuth()
		if err := turn.ReplyKey(ctx, i18n.SessionExpired); err != nil {
			m.logger.Warn("failed to send expiry notice", "user", s.ExternalUserID, "error", err)
		}
	}
	s.LastActivity = now
	return Continue, nil
}
