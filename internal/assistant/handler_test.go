// ABOUTME: Tests for the assistant handler's relay, confirmation and busy behavior
// ABOUTME: Uses a scripted fake agent and the recording transport

package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ally-gateway/internal/i18n"
	"github.com/2389/ally-gateway/internal/pipeline"
	"github.com/2389/ally-gateway/internal/session"
)

type fakeAgent struct {
	requests []Request
	resp     *Response
	err      error
	// busy records the session flag observed during Run.
	busy []bool
	sess *session.Session
}

func (a *fakeAgent) Run(_ context.Context, req Request) (*Response, error) {
	a.requests = append(a.requests, req)
	if a.sess != nil {
		a.busy = append(a.busy, a.sess.IsProcessing)
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.resp, nil
}

func setupHandler(t *testing.T, agent *fakeAgent) (*Handler, *pipeline.MockTransport) {
	t.Helper()
	h := NewHandler(agent, 2*time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h, pipeline.NewMockTransport()
}

func authedSession() *session.Session {
	sess := session.New("!room:example.org", "@alice:example.org", "en")
	sess.Auth = session.Authenticated{Email: "alice@example.com"}
	sess.Credential = session.AttachedCredential{AccessToken: "access", Expiry: time.Now().Add(time.Hour)}
	return sess
}

func turnFor(sess *session.Session, transport *pipeline.MockTransport, text string) *pipeline.Turn {
	return pipeline.NewTurn(pipeline.Update{ChatID: sess.ChatID, Kind: pipeline.KindText, Text: text}, sess, transport)
}

func TestHandler_RelaysToAgent(t *testing.T) {
	agent := &fakeAgent{resp: &Response{Text: "You have two meetings."}}
	h, transport := setupHandler(t, agent)
	sess := authedSession()
	agent.sess = sess

	require.NoError(t, h.Handle(context.Background(), turnFor(sess, transport, "what's on today?")))

	require.Len(t, agent.requests, 1)
	req := agent.requests[0]
	assert.Equal(t, "alice@example.com", req.Email)
	assert.Equal(t, "access", req.AccessToken)
	assert.Equal(t, "en", req.LanguageCode)
	assert.Equal(t, "what's on today?", req.Content)
	assert.Equal(t, []bool{true}, agent.busy)
	assert.Equal(t, []bool{true, false}, transport.Typing())
	assert.Equal(t, "You have two meetings.", transport.Last())
	assert.True(t, transport.Replies()[0].Opts.Markdown)
}

func TestHandler_EmptyAgentOutput(t *testing.T) {
	h, transport := setupHandler(t, &fakeAgent{resp: &Response{}})

	require.NoError(t, h.Handle(context.Background(), turnFor(authedSession(), transport, "hi")))
	assert.Equal(t, i18n.For("en").T(i18n.ErrorNoAgentOutput), transport.Last())
}

func TestHandler_AgentErrorIsReturned(t *testing.T) {
	h, transport := setupHandler(t, &fakeAgent{err: errors.New("timeout")})

	err := h.Handle(context.Background(), turnFor(authedSession(), transport, "hi"))
	assert.Error(t, err)
	assert.Empty(t, transport.Replies())
}

func TestHandler_BusySessionGetsStillWorking(t *testing.T) {
	agent := &fakeAgent{resp: &Response{Text: "ok"}}
	h, transport := setupHandler(t, agent)
	sess := authedSession()
	sess.IsProcessing = true
	sess.ProcessingSince = time.Now().Add(-10 * time.Second)

	require.NoError(t, h.Handle(context.Background(), turnFor(sess, transport, "hello?")))

	assert.Empty(t, agent.requests)
	assert.Equal(t, i18n.For("en").T(i18n.ErrorStillProcessing), transport.Last())
}

func TestHandler_LeftoverBusyFlagIgnored(t *testing.T) {
	agent := &fakeAgent{resp: &Response{Text: "ok"}}
	h, transport := setupHandler(t, agent)
	sess := authedSession()
	sess.IsProcessing = true
	sess.ProcessingSince = time.Now().Add(-time.Hour)

	require.NoError(t, h.Handle(context.Background(), turnFor(sess, transport, "hello?")))
	assert.Len(t, agent.requests, 1)
}

func TestHandler_ConflictStartsConfirmation(t *testing.T) {
	agent := &fakeAgent{resp: &Response{
		Text: "This overlaps with Standup. Create anyway?",
		Conflict: &Conflict{
			EventData:         json.RawMessage(`{"summary":"Gym"}`),
			ConflictingEvents: json.RawMessage(`[{"summary":"Standup"}]`),
		},
	}}
	h, transport := setupHandler(t, agent)
	sess := authedSession()

	require.NoError(t, h.Handle(context.Background(), turnFor(sess, transport, "gym at 9")))

	pending, ok := sess.Confirmation.(session.PendingConfirmation)
	require.True(t, ok)
	assert.JSONEq(t, `{"summary":"Gym"}`, string(pending.EventData))
	assert.Equal(t, "This overlaps with Standup. Create anyway?", transport.Last())
}

func pendingSession() *session.Session {
	sess := authedSession()
	sess.Confirmation = session.PendingConfirmation{
		EventData:         json.RawMessage(`{"summary":"Gym"}`),
		ConflictingEvents: json.RawMessage(`[]`),
	}
	return sess
}

func TestHandler_ConfirmYes(t *testing.T) {
	agent := &fakeAgent{resp: &Response{Text: "Created Gym."}}
	h, transport := setupHandler(t, agent)
	sess := pendingSession()

	require.NoError(t, h.Handle(context.Background(), turnFor(sess, transport, "Yes")))

	require.Len(t, agent.requests, 1)
	assert.JSONEq(t, `{"summary":"Gym"}`, string(agent.requests[0].ConfirmEvent))
	assert.Equal(t, session.NoConfirmation{}, sess.Confirmation)
	assert.Equal(t, "Created Gym.", transport.Last())
}

func TestHandler_ConfirmFailure(t *testing.T) {
	h, transport := setupHandler(t, &fakeAgent{err: errors.New("boom")})
	sess := pendingSession()

	require.NoError(t, h.Handle(context.Background(), turnFor(sess, transport, "да")))
	assert.Equal(t, i18n.For("en").T(i18n.ErrorConfirmation), transport.Last())
	assert.Equal(t, session.NoConfirmation{}, sess.Confirmation)
}

func TestHandler_ConfirmNo(t *testing.T) {
	agent := &fakeAgent{}
	h, transport := setupHandler(t, agent)
	sess := pendingSession()

	require.NoError(t, h.Handle(context.Background(), turnFor(sess, transport, "no")))

	assert.Empty(t, agent.requests)
	assert.Equal(t, session.NoConfirmation{}, sess.Confirmation)
	assert.Equal(t, i18n.For("en").T(i18n.EventCreationCanceled), transport.Last())
}

func TestHandler_PendingOtherInputReprompts(t *testing.T) {
	agent := &fakeAgent{}
	h, transport := setupHandler(t, agent)
	sess := pendingSession()

	require.NoError(t, h.Handle(context.Background(), turnFor(sess, transport, "maybe later")))

	assert.Empty(t, agent.requests)
	assert.IsType(t, session.PendingConfirmation{}, sess.Confirmation)
	assert.Equal(t, i18n.For("en").T(i18n.PendingEventPrompt), transport.Last())
}

func TestHandler_ExitClearsConfirmation(t *testing.T) {
	h, transport := setupHandler(t, &fakeAgent{})
	sess := pendingSession()

	require.NoError(t, h.Handle(context.Background(), turnFor(sess, transport, "/exit")))
	assert.Equal(t, session.NoConfirmation{}, sess.Confirmation)
	assert.Equal(t, i18n.For("en").T(i18n.ConversationEnded), transport.Last())
}

func TestHandler_VoiceAttachment(t *testing.T) {
	agent := &fakeAgent{resp: &Response{Text: "Noted."}}
	h, transport := setupHandler(t, agent)
	transport.Files["mxc://example.org/voice"] = []byte("OggS")
	sess := authedSession()

	turn := pipeline.NewTurn(pipeline.Update{ChatID: sess.ChatID, Kind: pipeline.KindVoice, FileID: "mxc://example.org/voice"}, sess, transport)
	require.NoError(t, h.Handle(context.Background(), turn))

	require.Len(t, agent.requests, 1)
	require.NotNil(t, agent.requests[0].Attachment)
	assert.Equal(t, "voice", agent.requests[0].Attachment.Kind)
	assert.Equal(t, []byte("OggS"), agent.requests[0].Attachment.Data)
}
