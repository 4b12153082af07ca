// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	accounts    map[string]*Account      // keyed by account ID
	links       map[string]*IdentityLink // keyed by link ID
	credentials map[string]*Credential   // keyed by lowercased email

	// Err, when set, is returned by every method. Used to simulate outages.
	Err error

	// Inserts counts UpsertIdentityLink calls that inserted a row.
	Inserts int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		accounts:    make(map[string]*Account),
		links:       make(map[string]*IdentityLink),
		credentials: make(map[string]*Credential),
	}
}

func (m *MockStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *a
	return &result, nil
}

func (m *MockStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, strings.TrimSpace(email)) {
			result := *a
			return &result, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockStore) CreateAccount(ctx context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return ErrDuplicateEmail
		}
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.Status == "" {
		account.Status = AccountStatusPending
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	a := *account
	m.accounts[a.ID] = &a
	return nil
}

func (m *MockStore) ActivateAccount(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = AccountStatusActive
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockStore) UpdateAccountEmail(ctx context.Context, id, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	for otherID, other := range m.accounts {
		if otherID != id && strings.EqualFold(other.Email, email) {
			return ErrDuplicateEmail
		}
	}
	a.Email = email
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockStore) GetIdentityLink(ctx context.Context, externalUserID string) (*IdentityLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	for _, l := range m.links {
		if l.ExternalUserID == externalUserID {
			result := *l
			return &result, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockStore) GetIdentityLinkByAccount(ctx context.Context, accountID string) (*IdentityLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	var latest *IdentityLink
	for _, l := range m.links {
		if l.AccountID == accountID && (latest == nil || l.UpdatedAt.After(latest.UpdatedAt)) {
			latest = l
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	result := *latest
	return &result, nil
}

func (m *MockStore) UpsertIdentityLink(ctx context.Context, link *IdentityLink) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}

	now := time.Now().UTC()
	var existing *IdentityLink
	for _, l := range m.links {
		if l.ExternalUserID == link.ExternalUserID {
			existing = l
			break
		}
		if l.ChatID == link.ChatID && l.AccountID == link.AccountID && existing == nil {
			existing = l
		}
	}

	if existing != nil {
		link.ID = existing.ID
		link.CreatedAt = existing.CreatedAt
		link.UpdatedAt = now
		l := *link
		m.links[l.ID] = &l
		return false, nil
	}

	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	link.CreatedAt = now
	link.UpdatedAt = now
	l := *link
	m.links[l.ID] = &l
	m.Inserts++
	return true, nil
}

// LinkCount returns the number of stored identity links.
func (m *MockStore) LinkCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links)
}

func (m *MockStore) GetCredential(ctx context.Context, email string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	c, ok := m.credentials[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

func (m *MockStore) SaveCredential(ctx context.Context, cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	key := strings.ToLower(cred.Email)
	c := *cred
	if c.RefreshToken == "" {
		if existing, ok := m.credentials[key]; ok {
			c.RefreshToken = existing.RefreshToken
		}
	}
	c.UpdatedAt = time.Now().UTC()
	m.credentials[key] = &c
	return nil
}

func (m *MockStore) UpdateCredentialToken(ctx context.Context, email, accessToken string, expiry time.Time, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	c, ok := m.credentials[strings.ToLower(email)]
	if !ok {
		return ErrNotFound
	}
	c.AccessToken = accessToken
	c.Expiry = expiry
	if refreshToken != "" {
		c.RefreshToken = refreshToken
	}
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockStore) DeactivateCredential(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	c, ok := m.credentials[strings.ToLower(email)]
	if !ok {
		return ErrNotFound
	}
	c.IsActive = false
	return nil
}

func (m *MockStore) DeleteCredential(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	delete(m.credentials, strings.ToLower(email))
	return nil
}

func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Err
}

func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store
var _ Store = (*MockStore)(nil)
