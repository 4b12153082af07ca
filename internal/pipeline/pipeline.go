// ABOUTME: Orchestrates the fixed stage order for every inbound update
// ABOUTME: Loads and persists sessions, recovers panics and clears the processing flag

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/2389/ally-gateway/internal/i18n"
	"github.com/2389/ally-gateway/internal/session"
)

// Options wires a Pipeline.
type Options struct {
	Sessions  SessionStore
	Transport Transport
	Handler   Handler

	AuthLimiter    Limiter
	MessageLimiter Limiter
	Identity       Stage
	Credential     Stage

	StaleAfter        time.Duration
	InactivityTimeout time.Duration

	Logger *slog.Logger
}

// Pipeline runs updates through the stage list and the handler.
type Pipeline struct {
	sessions  SessionStore
	transport Transport
	handler   Handler
	stale     *StaleFilter
	stages    []Stage
	logger    *slog.Logger
}

// New builds the pipeline in its fixed order.
func New(opts Options) (*Pipeline, error) {
	if opts.Sessions == nil || opts.Transport == nil || opts.Handler == nil {
		return nil, fmt.Errorf("pipeline: sessions, transport and handler are required")
	}
	if opts.Identity == nil || opts.Credential == nil {
		return nil, fmt.Errorf("pipeline: identity and credential stages are required")
	}
	if opts.AuthLimiter == nil || opts.MessageLimiter == nil {
		return nil, fmt.Errorf("pipeline: auth and message limiters are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pipeline")

	return &Pipeline{
		sessions:  opts.Sessions,
		transport: opts.Transport,
		handler:   opts.Handler,
		stale:     NewStaleFilter(opts.StaleAfter),
		stages: []Stage{
			DuplicateFilter{},
			NewExpiryMonitor(opts.InactivityTimeout, logger),
			NewAuthLimitStage(opts.AuthLimiter),
			opts.Identity,
			opts.Credential,
			NewMessageLimitStage(opts.MessageLimiter),
		},
		logger: logger,
	}, nil
}

// StageNames lists the stages in execution order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Handle processes one update. It never returns an error; failures are logged
// and answered with the generic error message.
func (p *Pipeline) Handle(ctx context.Context, u Update) {
	logger := p.logger.With("update", u.ID, "user", u.FromUserID, "chat", u.ChatID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic handling update", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if p.stale.IsStale(u) {
		logger.Debug("dropping stale update", "emitted_at", u.EmittedAt)
		return
	}

	sess, ok := p.sessions.Read(ctx, u.FromUserID)
	if !ok {
		sess = session.New(u.ChatID, u.FromUserID, u.LanguageCode)
	}
	if u.ChatID != "" {
		sess.ChatID = u.ChatID
	}
	if u.LanguageCode != "" {
		sess.LanguageCode = u.LanguageCode
	}
	sess.Credential = session.NoCredential{}

	turn := &Turn{
		Update:     u,
		Session:    sess,
		Printer:    i18n.For(sess.LanguageCode),
		NewSession: !ok,
		transport:  p.transport,
		sessions:   p.sessions,
	}

	persist := p.run(ctx, turn, logger)

	if turn.processing {
		sess.IsProcessing = false
		sess.ProcessingSince = time.Time{}
	}
	if !persist {
		return
	}
	if err := p.sessions.Write(ctx, sess); err != nil {
		logger.Error("failed to persist session", "error", err)
	}
}

// run executes stages then the handler and reports whether the session should
// be written back.
func (p *Pipeline) run(ctx context.Context, turn *Turn, logger *slog.Logger) (persist bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in pipeline stage", "panic", r, "stack", string(debug.Stack()))
			p.replyError(ctx, turn, logger)
			persist = true
		}
	}()

	for _, stage := range p.stages {
		decision, err := stage.Process(ctx, turn)
		if err != nil {
			logger.Error("stage failed", "stage", stage.Name(), "error", err)
			p.replyError(ctx, turn, logger)
			return true
		}
		switch decision {
		case Drop:
			logger.Debug("update dropped", "stage", stage.Name())
			return false
		case Halt:
			logger.Debug("update halted", "stage", stage.Name())
			return true
		}
	}

	if err := p.handler.Handle(ctx, turn); err != nil {
		logger.Error("handler failed", "error", err)
		p.replyError(ctx, turn, logger)
	}
	return true
}

func (p *Pipeline) replyError(ctx context.Context, turn *Turn, logger *slog.Logger) {
	if err := turn.ReplyKey(ctx, i18n.ErrorProcessing); err != nil {
		logger.Warn("failed to send error reply", "error", err)
	}
}
