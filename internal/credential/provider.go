// ABOUTME: OAuth2 provider for delegated Google Calendar access
// ABOUTME: Builds consent URLs, exchanges codes and refreshes tokens via golang.org/x/oauth2

package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrReauthRequired means the refresh token was revoked or expired and the
// user must grant access again.
var ErrReauthRequired = errors.New("credential: re-authorization required")

// DefaultScopes is the calendar access requested when none are configured.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Provider talks to the OAuth authorization server.
type Provider interface {
	// AuthorizeURL returns the consent page URL. force re-prompts for consent
	// so a fresh refresh token is issued.
	AuthorizeURL(state string, force bool) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// GoogleConfig configures a GoogleProvider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// Endpoint overrides google.Endpoint, for tests.
	Endpoint *oauth2.Endpoint
}

// GoogleProvider implements Provider against Google's OAuth endpoints.
type GoogleProvider struct {
	cfg *oauth2.Config
}

// NewGoogleProvider creates a GoogleProvider.
func NewGoogleProvider(c GoogleConfig) (*GoogleProvider, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, fmt.Errorf("google client id and secret are required")
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	endpoint := google.Endpoint
	if c.Endpoint != nil {
		endpoint = *c.Endpoint
	}
	return &GoogleProvider{cfg: &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       scopes,
		Endpoint:     endpoint,
	}}, nil
}

func (p *GoogleProvider) AuthorizeURL(state string, force bool) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	}
	if force {
		opts = append(opts, oauth2.ApprovalForce)
	}
	return p.cfg.AuthCodeURL(state, opts...)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return tok, nil
}

func (p *GoogleProvider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	tok, err := p.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		if isInvalidGrant(err) {
			return nil, ErrReauthRequired
		}
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	return tok, nil
}

func isInvalidGrant(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	return re.ErrorCode == "invalid_grant" || strings.Contains(string(re.Body), "invalid_grant")
}

// Scope extracts the granted scope string from a token response.
func Scope(tok *oauth2.Token) string {
	if s, ok := tok.Extra("scope").(string); ok {
		return s
	}
	return ""
}
