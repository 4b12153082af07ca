// ABOUTME: Delegated OAuth credential persistence for SQLiteStore
// ABOUTME: Tokens are keyed by account email; deactivation keeps the row for diagnostics

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetCredential retrieves the credential for an account email.
func (s *SQLiteStore) GetCredential(ctx context.Context, email string) (*Credential, error) {
	var c Credential
	var refreshToken, expiry, scope sql.NullString
	var isActive int
	var updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT email, access_token, refresh_token, expiry, scope, is_active, updated_at
		FROM credentials
		WHERE email = ? COLLATE NOCASE
	`, email).Scan(&c.Email, &c.AccessToken, &refreshToken, &expiry, &scope, &isActive, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying credential: %w", err)
	}

	c.RefreshToken = refreshToken.String
	c.Scope = scope.String
	c.IsActive = isActive != 0
	if c.Expiry, err = parseNullTime(expiry); err != nil {
		return nil, fmt.Errorf("parsing expiry: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &c, nil
}

// SaveCredential inserts or replaces the credential for cred.Email.
// An empty refresh token keeps the stored one, since providers only return it on first consent.
func (s *SQLiteStore) SaveCredential(ctx context.Context, cred *Credential) error {
	cred.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (email, access_token, refresh_token, expiry, scope, is_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = COALESCE(NULLIF(excluded.refresh_token, ''), credentials.refresh_token),
			expiry        = excluded.expiry,
			scope         = excluded.scope,
			is_active     = excluded.is_active,
			updated_at    = excluded.updated_at
	`,
		cred.Email, cred.AccessToken, cred.RefreshToken, nullTime(cred.Expiry),
		cred.Scope, boolToInt(cred.IsActive), formatTime(cred.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}

	s.logger.Info("saved credential", "email", cred.Email, "active", cred.IsActive)
	return nil
}

// UpdateCredentialToken stores a refreshed access token and expiry.
func (s *SQLiteStore) UpdateCredentialToken(ctx context.Context, email, accessToken string, expiry time.Time, refreshToken string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE credentials
		SET access_token = ?, expiry = ?,
		    refresh_token = COALESCE(NULLIF(?, ''), refresh_token),
		    updated_at = ?
		WHERE email = ? COLLATE NOCASE
	`, accessToken, nullTime(expiry), refreshToken, formatTime(time.Now()), email)
	if err != nil {
		return fmt.Errorf("updating credential token: %w", err)
	}
	return requireRow(result)
}

// DeactivateCredential marks the credential unusable until the user reconnects.
func (s *SQLiteStore) DeactivateCredential(ctx context.Context, email string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE credentials SET is_active = 0, updated_at = ? WHERE email = ? COLLATE NOCASE
	`, formatTime(time.Now()), email)
	if err != nil {
		return fmt.Errorf("deactivating credential: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}
	s.logger.Info("deactivated credential", "email", email)
	return nil
}

// DeleteCredential removes the credential. Deleting a missing credential is not an error.
func (s *SQLiteStore) DeleteCredential(ctx context.Context, email string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE email = ? COLLATE NOCASE`, email); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
