// ABOUTME: Email one-time passcode issue and verification
// ABOUTME: Codes are bcrypt-hashed in the kv backend with a TTL and an attempt cap

package otp

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/ally-gateway/internal/kv"
	"github.com/2389/ally-gateway/internal/store"
)

var (
	// ErrAccountNotFound is returned by Issue when no account exists and creation was not requested.
	ErrAccountNotFound = errors.New("otp: account not found")
	// ErrInvalidCode is returned when the submitted code does not match.
	ErrInvalidCode = errors.New("otp: invalid code")
	// ErrExpired is returned when no live code exists for the email.
	ErrExpired = errors.New("otp: code expired")
	// ErrTooManyAttempts is returned once the attempt cap is reached; the code is discarded.
	ErrTooManyAttempts = errors.New("otp: too many attempts")
)

const (
	// CodeLength is the number of digits in a passcode.
	CodeLength = 6
	// DefaultTTL is how long an issued code stays valid.
	DefaultTTL = 10 * time.Minute
	// DefaultMaxAttempts is how many wrong codes are tolerated per issued code.
	DefaultMaxAttempts = 5
)

// Mailer delivers a passcode to an email address.
type Mailer interface {
	SendCode(ctx context.Context, to, code string, ttl time.Duration) error
}

// IssueOptions controls account handling during Issue.
type IssueOptions struct {
	// CreateAccount creates a pending account when none exists for the email.
	CreateAccount bool
	// SkipAccountCheck delivers the code without looking at accounts at all.
	SkipAccountCheck bool
}

// Config tunes a Service. Zero values select the defaults.
type Config struct {
	TTL         time.Duration
	MaxAttempts int
}

type codeRecord struct {
	Hash      []byte    `json:"hash"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service issues and verifies passcodes keyed by email.
type Service struct {
	backend     kv.Store
	accounts    store.AccountStore
	mailer      Mailer
	ttl         time.Duration
	maxAttempts int
	cost        int
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a Service.
func NewService(cfg Config, backend kv.Store, accounts store.AccountStore, mailer Mailer, logger *slog.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Service{
		backend:     backend,
		accounts:    accounts,
		mailer:      mailer,
		ttl:         cfg.TTL,
		maxAttempts: cfg.MaxAttempts,
		cost:        bcrypt.DefaultCost,
		logger:      logger,
		now:         time.Now,
	}
}

// TTL returns how long issued codes stay valid.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

func key(email string) string {
	return "otp:" + normalize(email)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Issue generates a new code for email, replacing any previous one, and mails it.
func (s *Service) Issue(ctx context.Context, email string, opts IssueOptions) error {
	email = normalize(email)

	if !opts.SkipAccountCheck {
		if err := s.ensureAccount(ctx, email, opts); err != nil {
			return err
		}
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generating code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return fmt.Errorf("hashing code: %w", err)
	}

	rec := codeRecord{Hash: hash, ExpiresAt: s.now().Add(s.ttl)}
	if err := s.save(ctx, email, rec, s.ttl); err != nil {
		return err
	}

	if err := s.mailer.SendCode(ctx, email, code, s.ttl); err != nil {
		_ = s.backend.Delete(ctx, key(email))
		return fmt.Errorf("sending code: %w", err)
	}

	s.logger.Info("issued passcode", "email", email)
	return nil
}

func (s *Service) ensureAccount(ctx context.Context, email string, opts IssueOptions) error {
	_, err := s.accounts.GetAccountByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("looking up account: %w", err)
	}
	if !opts.CreateAccount {
		return ErrAccountNotFound
	}

	err = s.accounts.CreateAccount(ctx, &store.Account{
		ID:     uuid.New().String(),
		Email:  email,
		Status: store.AccountStatusPending,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateEmail) {
		return fmt.Errorf("creating account: %w", err)
	}
	return nil
}

// Verify checks code against the live code for email. A matching code stays
// live until Consume so callers can retry work that failed after verification.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email = normalize(email)

	data, err := s.backend.Get(ctx, key(email))
	if errors.Is(err, kv.ErrNotFound) {
		return ErrExpired
	}
	if err != nil {
		return fmt.Errorf("loading code: %w", err)
	}

	var rec codeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		_ = s.backend.Delete(ctx, key(email))
		return fmt.Errorf("decoding code record: %w", err)
	}

	now := s.now()
	if now.After(rec.ExpiresAt) {
		_ = s.backend.Delete(ctx, key(email))
		return ErrExpired
	}
	if rec.Attempts >= s.maxAttempts {
		_ = s.backend.Delete(ctx, key(email))
		return ErrTooManyAttempts
	}

	if bcrypt.CompareHashAndPassword(rec.Hash, []byte(strings.TrimSpace(code))) != nil {
		rec.Attempts++
		if err := s.save(ctx, email, rec, rec.ExpiresAt.Sub(now)); err != nil {
			return err
		}
		if rec.Attempts >= s.maxAttempts {
			_ = s.backend.Delete(ctx, key(email))
			return ErrTooManyAttempts
		}
		return ErrInvalidCode
	}
	return nil
}

// Consume discards the live code for email.
func (s *Service) Consume(ctx context.Context, email string) error {
	if err := s.backend.Delete(ctx, key(normalize(email))); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("consuming code: %w", err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, email string, rec codeRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding code record: %w", err)
	}
	if err := s.backend.Set(ctx, key(email), data, ttl); err != nil {
		return fmt.Errorf("storing code: %w", err)
	}
	return nil
}

// generateCode returns a uniformly random numeric code of CodeLength digits.
func generateCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}
