// ABOUTME: Tests for the Google OAuth provider against a local token endpoint
// ABOUTME: Checks consent URL parameters, refresh parsing and invalid_grant mapping

package credential

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *GoogleProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewGoogleProvider(GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://gw.example/oauth/google/callback",
		Endpoint: &oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	})
	require.NoError(t, err)
	return p
}

func TestNewGoogleProvider_RequiresClient(t *testing.T) {
	_, err := NewGoogleProvider(GoogleConfig{ClientID: "id"})
	assert.Error(t, err)
}

func TestGoogleProvider_AuthorizeURL(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {})

	u, err := url.Parse(p.AuthorizeURL("st", false))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "st", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "true", q.Get("include_granted_scopes"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Empty(t, q.Get("prompt"))
	assert.Contains(t, q.Get("scope"), "auth/calendar")

	u, err = url.Parse(p.AuthorizeURL("st", true))
	require.NoError(t, err)
	assert.Equal(t, "consent", u.Query().Get("prompt"))
}

func TestGoogleProvider_Refresh(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "r1", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new-access","token_type":"Bearer","expires_in":3600,"scope":"https://www.googleapis.com/auth/calendar"}`))
	})

	tok, err := p.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "new-access", tok.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expiry, time.Minute)
	assert.Equal(t, "https://www.googleapis.com/auth/calendar", Scope(tok))
}

func TestGoogleProvider_RefreshInvalidGrant(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
	})

	_, err := p.Refresh(context.Background(), "revoked")
	assert.ErrorIs(t, err, ErrReauthRequired)
}

func TestGoogleProvider_RefreshServerError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := p.Refresh(context.Background(), "r1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrReauthRequired))
}

func TestGoogleProvider_Exchange(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r","token_type":"Bearer","expires_in":3599}`))
	})

	tok, err := p.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)
	assert.Equal(t, "r", tok.RefreshToken)
}
