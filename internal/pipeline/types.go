// ABOUTME: Core pipeline types: updates, turns, stage decisions and collaborator interfaces
// ABOUTME: Transports produce Updates; stages and handlers work on a Turn

package pipeline

import (
	"context"
	"time"

	"github.com/2389/ally-gateway/internal/i18n"
	"github.com/2389/ally-gateway/internal/session"
)

// Kind is the payload type of an update.
type Kind string

const (
	KindText  Kind = "text"
	KindVoice Kind = "voice"
	KindPhoto Kind = "photo"
)

// Update is one inbound chat event, normalized by a transport.
type Update struct {
	ID         string
	EmittedAt  time.Time
	ChatID     string
	FromUserID string
	Kind       Kind
	Text       string
	// FileID references voice or photo content, fetched via Transport.GetFile.
	FileID       string
	LanguageCode string
	Username     string
	FirstName    string
}

// FormatOptions controls how a reply is rendered.
type FormatOptions struct {
	Markdown bool
}

// Transport is the outbound side of the chat platform.
type Transport interface {
	SendReply(ctx context.Context, chatID, text string, opts FormatOptions) error
	// SendTyping is best-effort.
	SendTyping(ctx context.Context, chatID string, on bool) error
	GetFile(ctx context.Context, fileID string) ([]byte, error)
}

// Decision is a stage's verdict on the current update.
type Decision int

const (
	// Continue passes the turn to the next stage.
	Continue Decision = iota
	// Halt stops processing; the session is still written back.
	Halt
	// Drop stops processing and discards every session change.
	Drop
)

func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case Halt:
		return "halt"
	case Drop:
		return "drop"
	default:
		return "unknown"
	}
}

// Stage is one step of the pipeline.
type Stage interface {
	Name() string
	Process(ctx context.Context, turn *Turn) (Decision, error)
}

// Handler is the business logic reached once every stage continued.
// It may only change the session's Confirmation and IsProcessing fields.
type Handler interface {
	Handle(ctx context.Context, turn *Turn) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, turn *Turn) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, turn *Turn) error {
	return f(ctx, turn)
}

// Turn is the per-update context shared by stages and the handler.
type Turn struct {
	Update  Update
	Session *session.Session
	Printer i18n.Printer
	// NewSession is true when no stored session existed for the user.
	NewSession bool

	transport  Transport
	sessions   SessionStore
	processing bool
}

// SessionStore is the persistence the pipeline needs.
type SessionStore interface {
	Read(ctx context.Context, externalUserID string) (*session.Session, bool)
	Write(ctx context.Context, s *session.Session) error
}

// NewTurn builds a Turn outside a Pipeline, for stage tests and tools.
func NewTurn(u Update, s *session.Session, transport Transport) *Turn {
	return &Turn{
		Update:    u,
		Session:   s,
		Printer:   i18n.For(s.LanguageCode),
		transport: transport,
	}
}

// Reply sends Markdown text to the update's chat.
func (t *Turn) Reply(ctx context.Context, text string) error {
	return t.transport.SendReply(ctx, t.Update.ChatID, text, FormatOptions{Markdown: true})
}

// ReplyKey sends a catalog message in the session language.
func (t *Turn) ReplyKey(ctx context.Context, key i18n.Key, pairs ...string) error {
	return t.Reply(ctx, t.Printer.T(key, pairs...))
}

// Typing toggles the typing indicator.
func (t *Turn) Typing(ctx context.Context, on bool) error {
	return t.transport.SendTyping(ctx, t.Update.ChatID, on)
}

// File downloads the update's attached media.
func (t *Turn) File(ctx context.Context) ([]byte, error) {
	return t.transport.GetFile(ctx, t.Update.FileID)
}

// BeginProcessing marks the session busy and persists the flag right away so
// concurrent updates for the same user observe it. The pipeline clears it when
// the handler returns.
func (t *Turn) BeginProcessing(ctx context.Context, now time.Time) {
	t.Session.IsProcessing = true
	t.Session.ProcessingSince = now
	t.processing = true
	if t.sessions != nil {
		_ = t.sessions.Write(ctx, t.Session)
	}
}
