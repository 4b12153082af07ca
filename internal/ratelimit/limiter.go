// ABOUTME: Fixed-window rate limiter over the kv backend
// ABOUTME: One atomic increment per call; fails open when the backend is down

package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/ally-gateway/internal/kv"
)

// Config parameterizes one limiter.
type Config struct {
	MaxAttempts int64
	Window      time.Duration
	KeyPrefix   string
}

var (
	// Auth limits email and passcode submissions.
	Auth = Config{MaxAttempts: 5, Window: 15 * time.Minute, KeyPrefix: "auth"}
	// Message limits everything that reaches the business handlers.
	Message = Config{MaxAttempts: 30, Window: 60 * time.Second, KeyPrefix: "message"}
)

// Result describes the outcome of a Check.
type Result struct {
	Allowed   bool
	Remaining int64
	// ResetIn is the time left in the current window. Zero when the backend was unavailable.
	ResetIn time.Duration
}

// Limiter enforces a Config for many users.
type Limiter struct {
	cfg     Config
	backend kv.Store
	logger  *slog.Logger
}

// New creates a Limiter.
func New(cfg Config, backend kv.Store, logger *slog.Logger) *Limiter {
	return &Limiter{
		cfg:     cfg,
		backend: backend,
		logger:  logger.With("limiter", cfg.KeyPrefix),
	}
}

// Key returns the counter key for a user.
func (l *Limiter) Key(userID string) string {
	return fmt.Sprintf("rate:%s:%s", l.cfg.KeyPrefix, userID)
}

// Config returns the limiter's parameters.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Check counts one attempt for userID and reports whether it is within quota.
func (l *Limiter) Check(ctx context.Context, userID string) Result {
	count, ttl, err := l.backend.IncrWindow(ctx, l.Key(userID), l.cfg.Window)
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing", "user", userID, "error", err)
		return Result{Allowed: true, Remaining: l.cfg.MaxAttempts}
	}

	remaining := l.cfg.MaxAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= l.cfg.MaxAttempts,
		Remaining: remaining,
		ResetIn:   ttl,
	}
}

// Reset restores the user's full quota immediately.
func (l *Limiter) Reset(ctx context.Context, userID string) error {
	if err := l.backend.Delete(ctx, l.Key(userID)); err != nil {
		l.logger.Warn("rate limit reset failed", "user", userID, "error", err)
		return fmt.Errorf("resetting %s limit: %w", l.cfg.KeyPrefix, err)
	}
	return nil
}
