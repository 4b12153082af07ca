// ABOUTME: Email change flow for authenticated users (/changeemail, /cancel)
// ABOUTME: Verifies the new address by passcode, then moves the account and drops the old credential

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2389/ally-gateway/internal/i18n"
	"github.com/2389/ally-gateway/internal/otp"
	"github.com/2389/ally-gateway/internal/pipeline"
	"github.com/2389/ally-gateway/internal/session"
	"github.com/2389/ally-gateway/internal/store"
)

const (
	changeEmailCommand = "/changeemail"
	cancelCommand      = "/cancel"
)

// parseChangeEmail reports whether text is the change command and returns its argument.
func parseChangeEmail(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.EqualFold(fields[0], changeEmailCommand) {
		return "", false
	}
	if len(fields) > 1 {
		return fields[1], true
	}
	return "", true
}

func (s *Stage) authenticated(ctx context.Context, turn *pipeline.Turn, auth session.Authenticated) (pipeline.Decision, error) {
	text := strings.TrimSpace(turn.Update.Text)
	if change := turn.Session.IdentityChange; change != nil {
		return s.pendingChange(ctx, turn, auth, change, text)
	}
	if arg, ok := parseChangeEmail(text); ok {
		return s.startChange(ctx, turn, auth, arg)
	}
	return pipeline.Continue, nil
}

func (s *Stage) startChange(ctx context.Context, turn *pipeline.Turn, auth session.Authenticated, addr string) (pipeline.Decision, error) {
	if addr == "" {
		// Empty NewEmail means the flow waits for an address.
		turn.Session.IdentityChange = &session.IdentityChange{Expiry: s.now().Add(s.otp.TTL())}
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.ChangeEmailPrompt, "email", auth.Email)
	}
	return s.requestChange(ctx, turn, auth, addr)
}

func (s *Stage) requestChange(ctx context.Context, turn *pipeline.Turn, auth session.Authenticated, addr string) (pipeline.Decision, error) {
	sess := turn.Session
	addr = strings.ToLower(strings.TrimSpace(addr))

	if !otp.LooksLikeEmail(addr) {
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.ChangeEmailInvalid)
	}
	if strings.EqualFold(addr, auth.Email) {
		sess.IdentityChange = nil
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.ChangeEmailSame)
	}

	taken, err := s.linkedElsewhere(ctx, addr, sess.ExternalUserID)
	if err != nil {
		return pipeline.Halt, err
	}
	if taken {
		sess.IdentityChange = nil
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.ChangeEmailTaken)
	}

	if err := s.otp.Issue(ctx, addr, otp.IssueOptions{SkipAccountCheck: true}); err != nil {
		s.logger.Warn("failed to issue email change passcode", "user", sess.ExternalUserID, "email", addr, "error", err)
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.AuthOtpSendFailed, "email", addr)
	}

	sess.IdentityChange = &session.IdentityChange{NewEmail: addr, Expiry: s.now().Add(s.otp.TTL())}
	s.logger.Info("email change requested", "user", sess.ExternalUserID, "from", auth.Email, "to", addr)
	return pipeline.Halt, turn.ReplyKey(ctx, i18n.ChangeEmailSent, "email", addr, "minutes", minutes(s.otp.TTL()))
}

// linkedElsewhere reports whether addr belongs to an account linked to another chat user.
func (s *Stage) linkedElsewhere(ctx context.Context, addr, externalUserID string) (bool, error) {
	account, err := s.store.GetAccountByEmail(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up account: %w", err)
	}

	link, err := s.store.GetIdentityLinkByAccount(ctx, account.ID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up identity link: %w", err)
	}
	return link.ExternalUserID != externalUserID, nil
}

func (s *Stage) pendingChange(ctx context.Context, turn *pipeline.Turn, auth session.Authenticated, change *session.IdentityChange, text string) (pipeline.Decision, error) {
	sess := turn.Session

	if strings.EqualFold(text, cancelCommand) {
		sess.IdentityChange = nil
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.ChangeEmailCancelled)
	}
	if s.now().After(change.Expiry) {
		sess.IdentityChange = nil
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.ChangeEmailExpired)
	}
	if arg, ok := parseChangeEmail(text); ok {
		return s.startChange(ctx, turn, auth, arg)
	}

	if change.NewEmail == "" {
		return s.requestChange(ctx, turn, auth, text)
	}

	switch {
	case otp.IsCode(text):
		return s.confirmChange(ctx, turn, auth, change.NewEmail, text)
	case otp.LooksLikeEmail(text):
		return s.requestChange(ctx, turn, auth, text)
	default:
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.ChangeEmailReprompt, "email", change.NewEmail)
	}
}

func (s *Stage) confirmChange(ctx context.Context, turn *pipeline.Turn, auth session.Authenticated, newEmail, code string) (pipeline.Decision, error) {
	sess := turn.Session
	user := sess.ExternalUserID

	err := s.otp.Verify(ctx, newEmail, code)
	switch {
	case errors.Is(err, otp.ErrInvalidCode):
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.ChangeEmailInvalidCode)
	case errors.Is(err, otp.ErrExpired), errors.Is(err, otp.ErrTooManyAttempts):
		sess.IdentityChange = nil
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.ChangeEmailExpired)
	case err != nil:
		return pipeline.Halt, fmt.Errorf("verifying email change passcode: %w", err)
	}

	account, err := s.store.GetAccountByEmail(ctx, auth.Email)
	if err != nil {
		return pipeline.Halt, fmt.Errorf("looking up current account: %w", err)
	}
	err = s.store.UpdateAccountEmail(ctx, account.ID, newEmail)
	if errors.Is(err, store.ErrDuplicateEmail) {
		sess.IdentityChange = nil
		s.consume(ctx, user, newEmail)
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.ChangeEmailTaken)
	}
	if err != nil {
		return pipeline.Halt, fmt.Errorf("updating account email: %w", err)
	}
	s.consume(ctx, user, newEmail)

	if err := s.store.DeleteCredential(ctx, auth.Email); err != nil {
		s.logger.Warn("failed to delete credential for old email", "user", user, "email", auth.Email, "error", err)
	}

	sess.Auth = session.Authenticated{Email: newEmail}
	sess.IdentityChange = nil
	sess.Credential = session.NoCredential{}
	s.logger.Info("email changed", "user", user, "from", auth.Email, "to", newEmail)
	return pipeline.Halt, turn.ReplyKey(ctx, i18n.ChangeEmailSuccess, "email", newEmail)
}

func (s *Stage) consume(ctx context.Context, user, email string) {
	if err := s.otp.Consume(ctx, email); err != nil {
		s.logger.Warn("failed to consume passcode", "user", user, "error", err)
	}
}
