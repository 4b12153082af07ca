// ABOUTME: Business handler relaying authenticated turns to the calendar agent
// ABOUTME: Owns the conflict confirmation handshake and the busy guard

package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/ally-gateway/internal/i18n"
	"github.com/2389/ally-gateway/internal/pipeline"
	"github.com/2389/ally-gateway/internal/session"
)

const exitCommand = "/exit"

var (
	confirmWords = map[string]bool{
		"yes": true, "y": true, "ok": true, "confirm": true,
		"ja": true, "oui": true, "да": true, "כן": true, "نعم": true,
	}
	cancelWords = map[string]bool{
		"no": true, "n": true, "cancel": true,
		"nein": true, "non": true, "нет": true, "לא": true, "لا": true,
	}
)

// Handler implements pipeline.Handler on top of an Agent.
type Handler struct {
	agent    Agent
	frontend string
	// busyTimeout bounds how long a processing flag blocks new turns.
	busyTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewHandler creates a Handler. busyTimeout <= 0 disables the staleness check.
func NewHandler(agent Agent, busyTimeout time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		agent:       agent,
		frontend:    "matrix",
		busyTimeout: busyTimeout,
		logger:      logger.With("component", "assistant"),
		now:         time.Now,
	}
}

func (h *Handler) Handle(ctx context.Context, turn *pipeline.Turn) error {
	sess := turn.Session
	text := strings.TrimSpace(turn.Update.Text)

	if strings.EqualFold(text, exitCommand) {
		sess.Confirmation = session.NoConfirmation{}
		return turn.ReplyKey(ctx, i18n.ConversationEnded)
	}

	if pending, ok := sess.Confirmation.(session.PendingConfirmation); ok {
		word := strings.ToLower(text)
		switch {
		case confirmWords[word]:
			return h.confirm(ctx, turn, pending)
		case cancelWords[word]:
			sess.Confirmation = session.NoConfirmation{}
			return turn.ReplyKey(ctx, i18n.EventCreationCanceled)
		default:
			return turn.ReplyKey(ctx, i18n.PendingEventPrompt)
		}
	}

	if sess.BusyFor(h.now(), h.busyTimeout) {
		return turn.ReplyKey(ctx, i18n.ErrorStillProcessing)
	}

	req := h.request(turn)
	req.Content = text
	if turn.Update.Kind == pipeline.KindVoice || turn.Update.Kind == pipeline.KindPhoto {
		data, err := turn.File(ctx)
		if err != nil {
			return fmt.Errorf("downloading %s: %w", turn.Update.Kind, err)
		}
		req.Attachment = &Attachment{Kind: string(turn.Update.Kind), Data: data}
	}

	resp, err := h.run(ctx, turn, req)
	if err != nil {
		return err
	}

	if resp.Conflict != nil {
		sess.Confirmation = session.PendingConfirmation{
			EventData:         resp.Conflict.EventData,
			ConflictingEvents: resp.Conflict.ConflictingEvents,
		}
		h.logger.Info("event awaiting confirmation", "user", sess.ExternalUserID)
	}
	if resp.Text == "" {
		return turn.ReplyKey(ctx, i18n.ErrorNoAgentOutput)
	}
	return turn.Reply(ctx, resp.Text)
}

func (h *Handler) confirm(ctx context.Context, turn *pipeline.Turn, pending session.PendingConfirmation) error {
	turn.Session.Confirmation = session.NoConfirmation{}

	req := h.request(turn)
	req.Content = "User confirmed event creation despite conflicts."
	req.ConfirmEvent = pending.EventData

	resp, err := h.run(ctx, turn, req)
	if err != nil {
		h.logger.Error("confirmation failed", "user", turn.Session.ExternalUserID, "error", err)
		return turn.ReplyKey(ctx, i18n.ErrorConfirmation)
	}
	if resp.Text == "" {
		return turn.ReplyKey(ctx, i18n.EventCreated)
	}
	return turn.Reply(ctx, resp.Text)
}

// run marks the session busy, shows typing and calls the agent.
func (h *Handler) run(ctx context.Context, turn *pipeline.Turn, req Request) (*Response, error) {
	turn.BeginProcessing(ctx, h.now())

	if err := turn.Typing(ctx, true); err != nil {
		h.logger.Debug("failed to set typing indicator", "error", err)
	}
	defer func() {
		if err := turn.Typing(ctx, false); err != nil {
			h.logger.Debug("failed to clear typing indicator", "error", err)
		}
	}()

	start := h.now()
	resp, err := h.agent.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("running agent: %w", err)
	}
	h.logger.Info("agent replied",
		"user", turn.Session.ExternalUserID,
		"duration", h.now().Sub(start).Round(time.Millisecond),
		"length", len(resp.Text),
		"conflict", resp.Conflict != nil,
	)
	return resp, nil
}

func (h *Handler) request(turn *pipeline.Turn) Request {
	sess := turn.Session
	email, _ := sess.Email()
	req := Request{
		Sender:       sess.ExternalUserID,
		ChannelID:    sess.ChatID,
		Frontend:     h.frontend,
		Email:        email,
		LanguageCode: sess.LanguageCode,
	}
	if cred, ok := sess.Credential.(session.AttachedCredential); ok {
		req.AccessToken = cred.AccessToken
	}
	return req
}
