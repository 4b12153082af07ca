// ABOUTME: Tests for completing the OAuth consent redirect
// ABOUTME: Uses MockStore and a local token endpoint

package credential

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ally-gateway/internal/store"
)

func TestConnector_Complete(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r","token_type":"Bearer","expires_in":3600,"scope":"calendar"}`))
	})
	st := store.NewMockStore()
	signer := NewStateSigner([]byte("secret"), 0)
	c := NewConnector(st, provider, signer, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, st.SaveCredential(context.Background(), &store.Credential{Email: "alice@example.com", AccessToken: "old", IsActive: false}))

	state, err := signer.Sign(State{Email: "alice@example.com", ExternalUserID: "@alice:example.org", ChatID: "!room"})
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), "code", state)
	require.NoError(t, err)
	assert.Equal(t, "!room", got.ChatID)

	cred, err := st.GetCredential(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, cred.IsActive)
	assert.Equal(t, "a", cred.AccessToken)
	assert.Equal(t, "r", cred.RefreshToken)
	assert.Equal(t, "calendar", cred.Scope)
	assert.False(t, cred.Expiry.IsZero())
}

func TestConnector_RejectsBadState(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("token endpoint must not be called")
	})
	st := store.NewMockStore()
	c := NewConnector(st, provider, NewStateSigner([]byte("secret"), 0), slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.Complete(context.Background(), "code", "forged")
	assert.ErrorIs(t, err, ErrInvalidState)
}
