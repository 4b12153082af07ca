// ABOUTME: Tests for the credential lifecycle stage
// ABOUTME: Covers consent prompts, near-expiry refresh, reauth deactivation and transient failures

package credential

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/2389/ally-gateway/internal/i18n"
	"github.com/2389/ally-gateway/internal/pipeline"
	"github.com/2389/ally-gateway/internal/session"
	"github.com/2389/ally-gateway/internal/store"
)

type fakeProvider struct {
	refreshes int
	forced    []bool
	refresh   func(refreshToken string) (*oauth2.Token, error)
}

func (p *fakeProvider) AuthorizeURL(state string, force bool) string {
	p.forced = append(p.forced, force)
	return "https://accounts.example/auth?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(context.Context, string) (*oauth2.Token, error) {
	return nil, errors.New("not used")
}

func (p *fakeProvider) Refresh(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	p.refreshes++
	if p.refresh == nil {
		return nil, errors.New("unexpected refresh")
	}
	return p.refresh(refreshToken)
}

type stageFixture struct {
	stage     *Stage
	store     *store.MockStore
	provider  *fakeProvider
	transport *pipeline.MockTransport
	now       time.Time
}

const testEmail = "alice@example.com"

func setupCredentialStage(t *testing.T) *stageFixture {
	t.Helper()
	f := &stageFixture{
		store:     store.NewMockStore(),
		provider:  &fakeProvider{},
		transport: pipeline.NewMockTransport(),
		now:       time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	f.stage = NewStage(f.store, f.provider, NewStateSigner([]byte("state-secret"), 0), slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.stage.now = func() time.Time { return f.now }
	return f
}

func (f *stageFixture) save(t *testing.T, cred store.Credential) {
	t.Helper()
	cred.Email = testEmail
	require.NoError(t, f.store.SaveCredential(context.Background(), &cred))
}

func (f *stageFixture) run(t *testing.T) (pipeline.Decision, *session.Session) {
	t.Helper()
	sess := session.New("!room:example.org", "@alice:example.org", "en")
	sess.Auth = session.Authenticated{Email: testEmail}
	d, err := f.stage.Process(context.Background(), pipeline.NewTurn(pipeline.Update{ChatID: sess.ChatID}, sess, f.transport))
	require.NoError(t, err)
	return d, sess
}

func (f *stageFixture) assertPrompt(t *testing.T, key i18n.Key) {
	t.Helper()
	require.Len(t, f.transport.Replies(), 1)
	want := i18n.For("en").T(key, "url", "URL")
	prefix := want[:len(want)-len("URL)")]
	assert.Contains(t, f.transport.Last(), prefix)
	assert.Contains(t, f.transport.Last(), "https://accounts.example/auth?state=")
}

func TestStage_SkipsUnauthenticated(t *testing.T) {
	f := setupCredentialStage(t)
	sess := session.New("c", "u", "")

	d, err := f.stage.Process(context.Background(), pipeline.NewTurn(pipeline.Update{}, sess, f.transport))
	require.NoError(t, err)
	assert.Equal(t, pipeline.Continue, d)
	assert.Empty(t, f.transport.Replies())
}

func TestStage_MissingCredentialAsksForGrant(t *testing.T) {
	f := setupCredentialStage(t)

	d, sess := f.run(t)

	assert.Equal(t, pipeline.Halt, d)
	assert.Equal(t, session.NoCredential{}, sess.Credential)
	f.assertPrompt(t, i18n.CredentialGrantAccess)
	assert.Equal(t, []bool{false}, f.provider.forced)
}

func TestStage_InactiveCredentialNeverReachesHandler(t *testing.T) {
	f := setupCredentialStage(t)
	f.save(t, store.Credential{AccessToken: "a", RefreshToken: "r", Expiry: f.now.Add(time.Hour), IsActive: false})

	d, sess := f.run(t)

	assert.Equal(t, pipeline.Halt, d)
	assert.Equal(t, session.NoCredential{}, sess.Credential)
	f.assertPrompt(t, i18n.CredentialReconnect)
	assert.Equal(t, []bool{true}, f.provider.forced)
}

func TestStage_MissingRefreshTokenAsksForFullAccess(t *testing.T) {
	f := setupCredentialStage(t)
	f.save(t, store.Credential{AccessToken: "a", Expiry: f.now.Add(time.Hour), IsActive: true})

	d, _ := f.run(t)

	assert.Equal(t, pipeline.Halt, d)
	f.assertPrompt(t, i18n.CredentialFullAccess)
	assert.Zero(t, f.provider.refreshes)
}

func TestStage_FreshTokenAttached(t *testing.T) {
	f := setupCredentialStage(t)
	expiry := f.now.Add(30 * time.Minute)
	f.save(t, store.Credential{AccessToken: "live", RefreshToken: "r", Expiry: expiry, IsActive: true})

	d, sess := f.run(t)

	assert.Equal(t, pipeline.Continue, d)
	assert.Equal(t, session.AttachedCredential{AccessToken: "live", Expiry: expiry}, sess.Credential)
	assert.Zero(t, f.provider.refreshes)
	assert.Empty(t, f.transport.Replies())
}

func TestStage_NearExpiryRefreshedInSameUpdate(t *testing.T) {
	f := setupCredentialStage(t)
	f.save(t, store.Credential{AccessToken: "old", RefreshToken: "r1", Expiry: f.now.Add(4 * time.Minute), IsActive: true})
	newExpiry := f.now.Add(time.Hour)
	f.provider.refresh = func(rt string) (*oauth2.Token, error) {
		assert.Equal(t, "r1", rt)
		return &oauth2.Token{AccessToken: "new", RefreshToken: "r2", Expiry: newExpiry}, nil
	}

	d, sess := f.run(t)

	assert.Equal(t, pipeline.Continue, d)
	assert.Equal(t, 1, f.provider.refreshes)
	assert.Equal(t, session.AttachedCredential{AccessToken: "new", Expiry: newExpiry}, sess.Credential)

	stored, err := f.store.GetCredential(context.Background(), testEmail)
	require.NoError(t, err)
	assert.Equal(t, "new", stored.AccessToken)
	assert.Equal(t, "r2", stored.RefreshToken)
	assert.True(t, stored.Expiry.Equal(newExpiry))
}

func TestStage_UnknownExpiryRefreshesWithDefaultLifetime(t *testing.T) {
	f := setupCredentialStage(t)
	f.save(t, store.Credential{AccessToken: "old", RefreshToken: "r1", IsActive: true})
	f.provider.refresh = func(string) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "new"}, nil
	}

	d, sess := f.run(t)

	assert.Equal(t, pipeline.Continue, d)
	assert.Equal(t, session.AttachedCredential{AccessToken: "new", Expiry: f.now.Add(time.Hour)}, sess.Credential)
	stored, err := f.store.GetCredential(context.Background(), testEmail)
	require.NoError(t, err)
	assert.Equal(t, "r1", stored.RefreshToken, "refresh token kept when not rotated")
}

func TestStage_ReauthRequiredDeactivates(t *testing.T) {
	f := setupCredentialStage(t)
	f.save(t, store.Credential{AccessToken: "old", RefreshToken: "revoked", Expiry: f.now.Add(-time.Minute), IsActive: true})
	f.provider.refresh = func(string) (*oauth2.Token, error) { return nil, ErrReauthRequired }

	d, sess := f.run(t)

	assert.Equal(t, pipeline.Halt, d)
	assert.Equal(t, session.NoCredential{}, sess.Credential)
	f.assertPrompt(t, i18n.CredentialExpired)

	stored, err := f.store.GetCredential(context.Background(), testEmail)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	// The next update is told to reconnect without another refresh attempt.
	f.transport.Reset()
	d, _ = f.run(t)
	assert.Equal(t, pipeline.Halt, d)
	f.assertPrompt(t, i18n.CredentialReconnect)
	assert.Equal(t, 1, f.provider.refreshes)
}

func TestStage_TransientRefreshFailure(t *testing.T) {
	f := setupCredentialStage(t)
	f.save(t, store.Credential{AccessToken: "old", RefreshToken: "r", Expiry: f.now.Add(-time.Minute), IsActive: true})
	f.provider.refresh = func(string) (*oauth2.Token, error) { return nil, errors.New("connection reset") }

	d, _ := f.run(t)

	assert.Equal(t, pipeline.Halt, d)
	assert.Equal(t, i18n.For("en").T(i18n.CredentialTransient), f.transport.Last())
	stored, err := f.store.GetCredential(context.Background(), testEmail)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
}

func TestStage_StoreErrorFailsClosed(t *testing.T) {
	f := setupCredentialStage(t)
	f.store.Err = errors.New("disk I/O error")

	d, sess := f.run(t)

	assert.Equal(t, pipeline.Halt, d)
	assert.Equal(t, session.NoCredential{}, sess.Credential)
	assert.Equal(t, i18n.For("en").T(i18n.CredentialTransient), f.transport.Last())
}

func TestExpiryChecks(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, isExpired(time.Time{}, now))
	assert.True(t, isExpired(now, now))
	assert.False(t, isExpired(now.Add(time.Second), now))

	assert.True(t, isNearExpiry(now.Add(5*time.Minute), now))
	assert.False(t, isNearExpiry(now.Add(5*time.Minute+time.Second), now))
}
