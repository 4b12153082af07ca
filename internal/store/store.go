// ABOUTME: Identity and credential store interfaces and data types
// ABOUTME: Accounts, chat identity links and delegated Google credentials

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when an account with the same email (any case) exists
var ErrDuplicateEmail = errors.New("account email already exists")

// Account status values
const (
	AccountStatusPending = "pending_verification"
	AccountStatusActive  = "active"
)

// Account is the backing user record an identity link points at.
type Account struct {
	ID        string
	Email     string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IdentityLink ties a chat-platform user to an Account.
type IdentityLink struct {
	ID             string
	ExternalUserID string
	ChatID         string
	AccountID      string
	Username       string
	FirstName      string
	LanguageCode   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Credential is a delegated OAuth token pair for the calendar provider, keyed by account email.
type Credential struct {
	Email        string
	AccessToken  string
	RefreshToken string
	// Expiry is zero when the provider never reported one; callers treat that as expired.
	Expiry    time.Time
	Scope     string
	IsActive  bool
	UpdatedAt time.Time
}

// AccountStore manages accounts. Email lookups are case-insensitive.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	CreateAccount(ctx context.Context, account *Account) error
	ActivateAccount(ctx context.Context, id string) error
	UpdateAccountEmail(ctx context.Context, id, email string) error
}

// LinkStore manages identity links.
type LinkStore interface {
	GetIdentityLink(ctx context.Context, externalUserID string) (*IdentityLink, error)
	GetIdentityLinkByAccount(ctx context.Context, accountID string) (*IdentityLink, error)
	// UpsertIdentityLink updates the row matching the link's external user id or
	// chat id, or inserts a new one. Returns true when a row was inserted.
	UpsertIdentityLink(ctx context.Context, link *IdentityLink) (bool, error)
}

// CredentialStore manages delegated credentials.
type CredentialStore interface {
	GetCredential(ctx context.Context, email string) (*Credential, error)
	SaveCredential(ctx context.Context, cred *Credential) error
	// UpdateCredentialToken stores a refreshed access token. An empty refreshToken keeps the current one.
	UpdateCredentialToken(ctx context.Context, email, accessToken string, expiry time.Time, refreshToken string) error
	DeactivateCredential(ctx context.Context, email string) error
	DeleteCredential(ctx context.Context, email string) error
}

// Store is the full persistence surface used by the gateway.
type Store interface {
	AccountStore
	LinkStore
	CredentialStore

	Ping(ctx context.Context) error
	Close() error
}
