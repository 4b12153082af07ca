// ABOUTME: Credential lifecycle stage: fetch, validate and refresh the user's Google token
// ABOUTME: Halts with a consent link whenever a usable token cannot be attached

package credential

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/2389/ally-gateway/internal/i18n"
	"github.com/2389/ally-gateway/internal/pipeline"
	"github.com/2389/ally-gateway/internal/session"
	"github.com/2389/ally-gateway/internal/store"
)

const (
	// RefreshMargin refreshes tokens this close to expiry.
	RefreshMargin = 5 * time.Minute
	// DefaultTokenLifetime is assumed when a refresh response omits the expiry.
	DefaultTokenLifetime = time.Hour
)

// Stage attaches a fresh access token to authenticated sessions.
type Stage struct {
	store    store.CredentialStore
	provider Provider
	states   *StateSigner
	logger   *slog.Logger
	now      func() time.Time
}

// NewStage creates the credential stage.
func NewStage(st store.CredentialStore, provider Provider, states *StateSigner, logger *slog.Logger) *Stage {
	return &Stage{
		store:    st,
		provider: provider,
		states:   states,
		logger:   logger.With("stage", "credential"),
		now:      time.Now,
	}
}

func (s *Stage) Name() string { return "credential" }

func (s *Stage) Process(ctx context.Context, turn *pipeline.Turn) (pipeline.Decision, error) {
	email, ok := turn.Session.Email()
	if !ok {
		return pipeline.Continue, nil
	}
	user := turn.Session.ExternalUserID

	cred, err := s.store.GetCredential(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return s.requestConsent(ctx, turn, email, i18n.CredentialGrantAccess, false)
	}
	if err != nil {
		s.logger.Error("failed to load credential", "user", user, "email", email, "error", err)
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.CredentialTransient)
	}

	if !cred.IsActive {
		return s.requestConsent(ctx, turn, email, i18n.CredentialReconnect, true)
	}
	if cred.RefreshToken == "" {
		return s.requestConsent(ctx, turn, email, i18n.CredentialFullAccess, true)
	}

	now := s.now()
	if !isExpired(cred.Expiry, now) && !isNearExpiry(cred.Expiry, now) {
		turn.Session.Credential = session.AttachedCredential{AccessToken: cred.AccessToken, Expiry: cred.Expiry}
		return pipeline.Continue, nil
	}

	tok, err := s.provider.Refresh(ctx, cred.RefreshToken)
	if errors.Is(err, ErrReauthRequired) {
		s.logger.Info("refresh token rejected, deactivating credential", "user", user, "email", email)
		if err := s.store.DeactivateCredential(ctx, email); err != nil {
			s.logger.Error("failed to deactivate credential", "email", email, "error", err)
		}
		return s.requestConsent(ctx, turn, email, i18n.CredentialExpired, true)
	}
	if err != nil {
		s.logger.Warn("token refresh failed", "user", user, "email", email, "error", err)
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.CredentialTransient)
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = now.Add(DefaultTokenLifetime)
	}
	rotated := ""
	if tok.RefreshToken != "" && tok.RefreshToken != cred.RefreshToken {
		rotated = tok.RefreshToken
	}
	if err := s.store.UpdateCredentialToken(ctx, email, tok.AccessToken, expiry, rotated); err != nil {
		s.logger.Error("failed to persist refreshed token", "email", email, "error", err)
	}

	s.logger.Debug("refreshed access token", "user", user, "email", email, "expiry", expiry)
	turn.Session.Credential = session.AttachedCredential{AccessToken: tok.AccessToken, Expiry: expiry}
	return pipeline.Continue, nil
}

// requestConsent replies with key and a signed consent link, then halts.
func (s *Stage) requestConsent(ctx context.Context, turn *pipeline.Turn, email string, key i18n.Key, force bool) (pipeline.Decision, error) {
	state, err := s.states.Sign(State{
		Email:          email,
		ExternalUserID: turn.Session.ExternalUserID,
		ChatID:         turn.Session.ChatID,
	})
	if err != nil {
		s.logger.Error("failed to sign oauth state", "email", email, "error", err)
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.CredentialTransient)
	}
	return pipeline.Halt, turn.ReplyKey(ctx, key, "url", s.provider.AuthorizeURL(state, force))
}

// isExpired treats an unknown expiry as expired.
func isExpired(expiry, now time.Time) bool {
	return expiry.IsZero() || !now.Before(expiry)
}

func isNearExpiry(expiry, now time.Time) bool {
	return !now.Before(expiry.Add(-RefreshMargin))
}
