// ABOUTME: Identity authentication stage: email passcode login over the chat session
// ABOUTME: Drives the Unauthenticated -> OtpPending -> Authenticated state machine

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/ally-gateway/internal/i18n"
	"github.com/2389/ally-gateway/internal/otp"
	"github.com/2389/ally-gateway/internal/pipeline"
	"github.com/2389/ally-gateway/internal/session"
	"github.com/2389/ally-gateway/internal/store"
)

// Issuer sends and checks passcodes.
type Issuer interface {
	Issue(ctx context.Context, email string, opts otp.IssueOptions) error
	Verify(ctx context.Context, email, code string) error
	Consume(ctx context.Context, email string) error
	TTL() time.Duration
}

// LimitResetter clears a user's auth rate-limit counter.
type LimitResetter interface {
	Reset(ctx context.Context, userID string) error
}

// Store is the persistence the stage needs.
type Store interface {
	store.AccountStore
	store.LinkStore
	DeleteCredential(ctx context.Context, email string) error
}

// Stage authenticates chat users by email passcode.
type Stage struct {
	otp     Issuer
	store   Store
	limiter LimitResetter
	logger  *slog.Logger
	now     func() time.Time
}

// NewStage creates the identity stage.
func NewStage(issuer Issuer, st Store, limiter LimitResetter, logger *slog.Logger) *Stage {
	return &Stage{
		otp:     issuer,
		store:   st,
		limiter: limiter,
		logger:  logger.With("stage", "identity"),
		now:     time.Now,
	}
}

func (s *Stage) Name() string { return "identity" }

func (s *Stage) Process(ctx context.Context, turn *pipeline.Turn) (pipeline.Decision, error) {
	sess := turn.Session
	if turn.NewSession {
		s.restore(ctx, sess)
	}

	switch st := sess.Auth.(type) {
	case session.Authenticated:
		return s.authenticated(ctx, turn, st)
	case session.OtpPending:
		return s.pending(ctx, turn, st)
	default:
		return s.unauthenticated(ctx, turn)
	}
}

// restore re-authenticates a session lost from the kv backend when the user
// already has an identity link to an active account.
func (s *Stage) restore(ctx context.Context, sess *session.Session) {
	if _, ok := sess.Auth.(session.Authenticated); ok {
		return
	}
	link, err := s.store.GetIdentityLink(ctx, sess.ExternalUserID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("identity link lookup failed", "user", sess.ExternalUserID, "error", err)
		}
		return
	}
	account, err := s.store.GetAccount(ctx, link.AccountID)
	if err != nil {
		s.logger.Warn("linked account lookup failed", "user", sess.ExternalUserID, "account", link.AccountID, "error", err)
		return
	}
	if account.Status != store.AccountStatusActive {
		return
	}
	sess.Auth = session.Authenticated{Email: account.Email}
	s.logger.Info("restored session from identity link", "user", sess.ExternalUserID, "email", account.Email)
}

func (s *Stage) unauthenticated(ctx context.Context, turn *pipeline.Turn) (pipeline.Decision, error) {
	text := strings.TrimSpace(turn.Update.Text)
	if !otp.LooksLikeEmail(text) {
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.AuthWelcome)
	}
	return s.sendLoginCode(ctx, turn, text, i18n.AuthOtpSent)
}

func (s *Stage) pending(ctx context.Context, turn *pipeline.Turn, p session.OtpPending) (pipeline.Decision, error) {
	sess := turn.Session
	text := strings.TrimSpace(turn.Update.Text)

	if s.now().After(p.Expiry) {
		sess.Auth = session.Unauthenticated{}
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.AuthOtpExpired)
	}

	switch {
	case otp.IsCode(text):
		return s.verifyLoginCode(ctx, turn, p.CandidateEmail, text)
	case otp.LooksLikeEmail(text):
		return s.sendLoginCode(ctx, turn, text, i18n.AuthOtpSentNewEmail)
	default:
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.AuthEnterOtpOrEmail)
	}
}

// sendLoginCode issues a code to an existing account, creating a pending one
// only when the first attempt reports none exists.
func (s *Stage) sendLoginCode(ctx context.Context, turn *pipeline.Turn, email string, sent i18n.Key) (pipeline.Decision, error) {
	email = strings.ToLower(email)
	user := turn.Session.ExternalUserID

	err := s.otp.Issue(ctx, email, otp.IssueOptions{})
	if errors.Is(err, otp.ErrAccountNotFound) {
		err = s.otp.Issue(ctx, email, otp.IssueOptions{CreateAccount: true})
	}
	if err != nil {
		s.logger.Warn("failed to issue passcode", "user", user, "email", email, "error", err)
		turn.Session.Auth = session.Unauthenticated{}
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.AuthOtpSendFailed, "email", email)
	}

	turn.Session.Auth = session.OtpPending{CandidateEmail: email, Expiry: s.now().Add(s.otp.TTL())}
	s.logger.Info("passcode sent", "user", user, "email", email)
	return pipeline.Halt, turn.ReplyKey(ctx, sent, "email", email, "minutes", minutes(s.otp.TTL()))
}

func (s *Stage) verifyLoginCode(ctx context.Context, turn *pipeline.Turn, email, code string) (pipeline.Decision, error) {
	sess := turn.Session
	user := sess.ExternalUserID

	err := s.otp.Verify(ctx, email, code)
	switch {
	case errors.Is(err, otp.ErrInvalidCode):
		s.logger.Info("invalid passcode", "user", user)
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.AuthOtpInvalid)
	case errors.Is(err, otp.ErrExpired):
		sess.Auth = session.Unauthenticated{}
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.AuthOtpExpired)
	case errors.Is(err, otp.ErrTooManyAttempts):
		sess.Auth = session.Unauthenticated{}
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.AuthOtpTooMany)
	case err != nil:
		return pipeline.Halt, fmt.Errorf("verifying passcode: %w", err)
	}

	if err := s.link(ctx, turn, email); err != nil {
		s.logger.Error("failed to link identity", "user", user, "email", email, "error", err)
		return pipeline.Halt, turn.ReplyKey(ctx, i18n.AuthSaveError)
	}
	if err := s.otp.Consume(ctx, email); err != nil {
		s.logger.Warn("failed to consume passcode", "user", user, "error", err)
	}

	sess.Auth = session.Authenticated{Email: email}
	if err := s.limiter.Reset(ctx, user); err != nil {
		s.logger.Warn("failed to reset auth limiter", "user", user, "error", err)
	}
	s.logger.Info("identity verified", "user", user, "email", email)

	if err := turn.ReplyKey(ctx, i18n.AuthVerified); err != nil {
		s.logger.Warn("failed to send verification notice", "user", user, "error", err)
	}
	return pipeline.Continue, nil
}

// link resolves or creates the account for email, activates it and ties the
// chat user to it.
func (s *Stage) link(ctx context.Context, turn *pipeline.Turn, email string) error {
	account, err := s.resolveAccount(ctx, email)
	if err != nil {
		return err
	}
	if account.Status != store.AccountStatusActive {
		if err := s.store.ActivateAccount(ctx, account.ID); err != nil {
			return fmt.Errorf("activating account: %w", err)
		}
	}

	u := turn.Update
	created, err := s.store.UpsertIdentityLink(ctx, &store.IdentityLink{
		ExternalUserID: turn.Session.ExternalUserID,
		ChatID:         turn.Session.ChatID,
		AccountID:      account.ID,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LanguageCode:   turn.Session.LanguageCode,
	})
	if err != nil {
		return fmt.Errorf("linking identity: %w", err)
	}
	if created {
		s.logger.Info("identity link created", "user", turn.Session.ExternalUserID, "account", account.ID)
	}
	return nil
}

func (s *Stage) resolveAccount(ctx context.Context, email string) (*store.Account, error) {
	account, err := s.store.GetAccountByEmail(ctx, email)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	account = &store.Account{ID: uuid.New().String(), Email: email, Status: store.AccountStatusActive}
	err = s.store.CreateAccount(ctx, account)
	if errors.Is(err, store.ErrDuplicateEmail) {
		return s.store.GetAccountByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	return account, nil
}

func minutes(d time.Duration) string {
	m := int(d.Round(time.Minute) / time.Minute)
	if m < 1 {
		m = 1
	}
	return strconv.Itoa(m)
}
