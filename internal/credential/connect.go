// ABOUTME: Completes the OAuth consent redirect and stores the granted credential
// ABOUTME: Used by the gateway's callback endpoint

package credential

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/ally-gateway/internal/store"
)

// Connector finishes consent flows started by the Stage.
type Connector struct {
	store    store.CredentialStore
	provider Provider
	states   *StateSigner
	logger   *slog.Logger
}

// NewConnector creates a Connector.
func NewConnector(st store.CredentialStore, provider Provider, states *StateSigner, logger *slog.Logger) *Connector {
	return &Connector{
		store:    st,
		provider: provider,
		states:   states,
		logger:   logger.With("component", "oauth"),
	}
}

// Complete verifies the state token, exchanges code and saves an active
// credential for the state's email.
func (c *Connector) Complete(ctx context.Context, code, stateToken string) (*State, error) {
	st, err := c.states.Verify(stateToken)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	tok, err := c.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	err = c.store.SaveCredential(ctx, &store.Credential{
		Email:        st.Email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		Scope:        Scope(tok),
		IsActive:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("saving credential: %w", err)
	}

	c.logger.Info("calendar connected", "email", st.Email, "user", st.ExternalUserID, "offline", tok.RefreshToken != "")
	return st, nil
}
