// ABOUTME: Pipeline stages enforcing the auth and message rate limits
// ABOUTME: Auth limiting only counts email and passcode submissions from unauthenticated users

package pipeline

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/2389/ally-gateway/internal/i18n"
	"github.com/2389/ally-gateway/internal/otp"
	"github.com/2389/ally-gateway/internal/ratelimit"
	"github.com/2389/ally-gateway/internal/session"
)

// Limiter is the subset of ratelimit.Limiter the stages use.
type Limiter interface {
	Check(ctx context.Context, userID string) ratelimit.Result
	Config() ratelimit.Config
}

// AuthLimitStage throttles authentication attempts.
type AuthLimitStage struct {
	limiter Limiter
}

// NewAuthLimitStage wraps an auth limiter.
func NewAuthLimitStage(l Limiter) *AuthLimitStage {
	return &AuthLimitStage{limiter: l}
}

func (s *AuthLimitStage) Name() string { return "auth_rate_limit" }

func (s *AuthLimitStage) Process(ctx context.Context, turn *Turn) (Decision, error) {
	if _, ok := turn.Session.Auth.(session.Authenticated); ok {
		return Continue, nil
	}
	text := turn.Update.Text
	if !otp.LooksLikeEmail(text) && !otp.IsCode(text) {
		return Continue, nil
	}

	res := s.limiter.Check(ctx, turn.Session.ExternalUserID)
	if res.Allowed {
		return Continue, nil
	}
	return Halt, turn.ReplyKey(ctx, i18n.RateLimitAuth, "minutes", strconv.Itoa(ceilUnits(res.ResetIn, s.limiter.Config().Window, time.Minute)))
}

// MessageLimitStage throttles every update that reaches the handler.
type MessageLimitStage struct {
	limiter Limiter
}

// NewMessageLimitStage wraps a message limiter.
func NewMessageLimitStage(l Limiter) *MessageLimitStage {
	return &MessageLimitStage{limiter: l}
}

func (s *MessageLimitStage) Name() string { return "message_rate_limit" }

func (s *MessageLimitStage) Process(ctx context.Context, turn *Turn) (Decision, error) {
	res := s.limiter.Check(ctx, turn.Session.ExternalUserID)
	if res.Allowed {
		return Continue, nil
	}
	return Halt, turn.ReplyKey(ctx, i18n.RateLimitMessage, "seconds", strconv.Itoa(ceilUnits(res.ResetIn, s.limiter.Config().Window, time.Second)))
}

// ceilUnits rounds d up to whole units, using window when d is unknown. Never less than 1.
func ceilUnits(d, window, unit time.Duration) int {
	if d <= 0 {
		d = window
	}
	n := int(math.Ceil(float64(d) / float64(unit)))
	if n < 1 {
		n = 1
	}
	return n
}
