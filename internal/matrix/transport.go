// ABOUTME: Matrix chat transport for the gateway pipeline
// ABOUTME: Syncs room messages into pipeline updates and sends replies, typing and media downloads

package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/ally-gateway/internal/config"
	"github.com/2389/ally-gateway/internal/dedupe"
	"github.com/2389/ally-gateway/internal/pipeline"
)

const (
	typingTimeout  = 30 * time.Second
	networkTimeout = 10 * time.Second
	sendTimeout    = 30 * time.Second

	// seenTTL covers the timeline replay of a restarted sync.
	seenTTL     = 10 * time.Minute
	seenMaxSize = 10000

	// fileTTL bounds how long decryption info waits for a GetFile call.
	fileTTL = time.Hour
)

// ErrUnknownFile is returned by GetFile for malformed content URIs.
var ErrUnknownFile = errors.New("unknown file")

// UpdateHandler consumes normalized updates. *pipeline.Pipeline satisfies it.
type UpdateHandler interface {
	Handle(ctx context.Context, u pipeline.Update)
}

// Transport connects the pipeline to a Matrix homeserver.
type Transport struct {
	config *config.MatrixConfig
	client *mautrix.Client
	crypto *cryptoManager
	logger *slog.Logger

	allowed map[string]bool
	seen    *dedupe.Cache

	// encrypted media keyed by content URI, filled as events arrive
	files *ttlcache.Cache[string, *event.EncryptedFileInfo]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTransport creates a Matrix client from cfg. Encryption is set up in Run.
func NewTransport(cfg *config.MatrixConfig, logger *slog.Logger) (*Transport, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	if cfg.DeviceID != "" {
		client.DeviceID = id.DeviceID(cfg.DeviceID)
	}
	client.StateStore = mautrix.NewMemoryStateStore()

	allowed := make(map[string]bool, len(cfg.AllowedRooms))
	for _, room := range cfg.AllowedRooms {
		allowed[room] = true
	}

	return &Transport{
		config:  cfg,
		client:  client,
		logger:  logger.With("component", "matrix"),
		allowed: allowed,
		seen:    dedupe.New(seenTTL, seenMaxSize),
		files:   newFileCache(fileTTL),
	}, nil
}

func newFileCache(ttl time.Duration) *ttlcache.Cache[string, *event.EncryptedFileInfo] {
	return ttlcache.New[string, *event.EncryptedFileInfo](
		ttlcache.WithTTL[string, *event.EncryptedFileInfo](ttl),
		ttlcache.WithCapacity[string, *event.EncryptedFileInfo](seenMaxSize),
		ttlcache.WithDisableTouchOnHit[string, *event.EncryptedFileInfo](),
	)
}

// Run syncs with the homeserver and hands every accepted message to h in its
// own goroutine. It blocks until ctx is cancelled or sync fails.
func (t *Transport) Run(ctx context.Context, h UpdateHandler) error {
	t.logger.Info("starting matrix transport",
		"homeserver", t.config.Homeserver,
		"user_id", t.config.UserID,
		"encryption", t.config.Encryption,
	)

	t.ctx, t.cancel = context.WithCancel(ctx)
	defer t.cancel()
	defer t.seen.Close()
	go t.files.Start()
	defer t.files.Stop()

	syncer, ok := t.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", t.client.Syncer)
	}
	syncer.OnEvent(t.client.StateStoreSyncHandler)
	syncer.OnEventType(event.EventMessage, func(_ context.Context, evt *event.Event) {
		t.dispatch(h, evt)
	})

	if t.config.Encryption {
		cm, err := setupCrypto(t.ctx, t.client, t.config.RecoveryKey, t.config.DataDir, t.logger)
		if err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		t.crypto = cm
		defer func() {
			if err := cm.Close(); err != nil {
				t.logger.Warn("closing crypto store", "error", err)
			}
		}()
	}

	return t.serve(ctx, t.client.SyncWithContext)
}

// serve runs sync until ctx is cancelled or sync fails, then waits for
// in-flight handlers.
func (t *Transport) serve(ctx context.Context, syncFn func(context.Context) error) error {
	syncErr := make(chan error, 1)
	go func() {
		syncErr <- syncFn(t.ctx)
	}()

	t.logger.Info("matrix transport running")

	select {
	case <-ctx.Done():
		t.logger.Info("shutting down matrix transport")
		t.cancel()
		// Sync dispatches handlers; it must return before Wait.
		<-syncErr
		t.wg.Wait()
		return nil
	case err := <-syncErr:
		t.cancel()
		t.wg.Wait()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

// dispatch hands an accepted event to h in its own goroutine.
func (t *Transport) dispatch(h UpdateHandler, evt *event.Event) {
	u, ok := t.accept(evt)
	if !ok {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		h.Handle(t.ctx, u)
	}()
}

// accept maps evt and drops events already delivered once.
func (t *Transport) accept(evt *event.Event) (pipeline.Update, bool) {
	u, ok := t.toUpdate(evt)
	if !ok {
		return pipeline.Update{}, false
	}
	if t.seen.CheckAndMark(u.ID) {
		t.logger.Debug("dropping redelivered event", "event_id", u.ID)
		return pipeline.Update{}, false
	}
	t.logger.Info("received message", "room", u.ChatID, "sender", u.FromUserID, "kind", u.Kind)
	return u, true
}

// toUpdate maps a room message to a pipeline update. The bool is false for
// events the gateway ignores.
func (t *Transport) toUpdate(evt *event.Event) (pipeline.Update, bool) {
	if evt.Sender == id.UserID(t.config.UserID) {
		return pipeline.Update{}, false
	}
	if !t.isRoomAllowed(evt.RoomID.String()) {
		t.logger.Debug("ignoring message from non-allowed room", "room", evt.RoomID)
		return pipeline.Update{}, false
	}
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return pipeline.Update{}, false
	}

	u := pipeline.Update{
		ID:           evt.ID.String(),
		ChatID:       evt.RoomID.String(),
		FromUserID:   evt.Sender.String(),
		LanguageCode: t.config.Language,
	}
	if evt.Timestamp > 0 {
		u.EmittedAt = time.UnixMilli(evt.Timestamp)
	}
	if local, _, err := evt.Sender.Parse(); err == nil {
		u.Username = local
	}

	switch content.MsgType {
	case event.MsgText, event.MsgNotice:
		u.Kind = pipeline.KindText
		u.Text = strings.TrimSpace(content.Body)
		if u.Text == "" {
			return pipeline.Update{}, false
		}
	case event.MsgAudio:
		u.Kind = pipeline.KindVoice
		u.FileID = t.mediaID(content)
	case event.MsgImage:
		u.Kind = pipeline.KindPhoto
		u.FileID = t.mediaID(content)
		// Captions arrive as the body when a filename is also set.
		if content.FileName != "" && content.Body != content.FileName {
			u.Text = content.Body
		}
	default:
		return pipeline.Update{}, false
	}
	if u.Kind != pipeline.KindText && u.FileID == "" {
		return pipeline.Update{}, false
	}
	return u, true
}

// mediaID returns the content URI of an attachment, remembering decryption
// info for encrypted media.
func (t *Transport) mediaID(content *event.MessageEventContent) string {
	if content.File != nil && content.File.URL != "" {
		uri := string(content.File.URL)
		t.files.Set(uri, content.File, ttlcache.DefaultTTL)
		return uri
	}
	return string(content.URL)
}

func (t *Transport) isRoomAllowed(roomID string) bool {
	if len(t.allowed) == 0 {
		return true
	}
	return t.allowed[roomID]
}

// SendReply posts text to a room, rendered as HTML when Markdown is requested.
func (t *Transport) SendReply(ctx context.Context, chatID, text string, opts pipeline.FormatOptions) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if _, err := t.client.SendMessageEvent(ctx, id.RoomID(chatID), event.EventMessage, messageContent(text, opts)); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// SendTyping toggles the typing indicator. It is a no-op when disabled.
func (t *Transport) SendTyping(ctx context.Context, chatID string, on bool) error {
	if !t.config.TypingIndicator {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()

	timeout := time.Duration(0)
	if on {
		timeout = typingTimeout
	}
	if _, err := t.client.UserTyping(ctx, id.RoomID(chatID), on, timeout); err != nil {
		return fmt.Errorf("setting typing: %w", err)
	}
	return nil
}

// GetFile downloads media by content URI, decrypting it when needed.
func (t *Transport) GetFile(ctx context.Context, fileID string) ([]byte, error) {
	uri, err := id.ParseContentURI(fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFile, fileID)
	}
	data, err := t.client.DownloadBytes(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("downloading media: %w", err)
	}
	if item, ok := t.files.GetAndDelete(fileID); ok {
		if err := item.Value().DecryptInPlace(data); err != nil {
			return nil, fmt.Errorf("decrypting media: %w", err)
		}
	}
	return data, nil
}
