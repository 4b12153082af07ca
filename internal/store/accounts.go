// ABOUTME: Account persistence for SQLiteStore
// ABOUTME: Email uniqueness and lookups are case-insensitive via COLLATE NOCASE

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateAccount inserts a new account. Returns ErrDuplicateEmail if the email exists in any case.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO accounts (id, email, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	if account.Status == "" {
		account.Status = AccountStatusPending
	}

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		strings.TrimSpace(account.Email),
		account.Status,
		formatTime(account.CreatedAt),
		formatTime(account.UpdatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting account: %w", err)
	}

	s.logger.Debug("created account", "id", account.ID)
	return nil
}

// GetAccount retrieves an account by ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, email, status, created_at, updated_at
		FROM accounts
		WHERE id = ?
	`, id))
}

// GetAccountByEmail retrieves an account by email, ignoring case.
func (s *SQLiteStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, email, status, created_at, updated_at
		FROM accounts
		WHERE email = ? COLLATE NOCASE
	`, strings.TrimSpace(email)))
}

// ActivateAccount marks an account as verified.
func (s *SQLiteStore) ActivateAccount(ctx context.Context, id string) error {
	return s.updateAccount(ctx, `UPDATE accounts SET status = ?, updated_at = ? WHERE id = ?`,
		AccountStatusActive, formatTime(time.Now()), id)
}

// UpdateAccountEmail changes the account's email. Returns ErrDuplicateEmail if taken.
func (s *SQLiteStore) UpdateAccountEmail(ctx context.Context, id, email string) error {
	err := s.updateAccount(ctx, `UPDATE accounts SET email = ?, updated_at = ? WHERE id = ?`,
		strings.TrimSpace(email), formatTime(time.Now()), id)
	if err != nil && isConstraintViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (s *SQLiteStore) updateAccount(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	var createdAt, updatedAt string

	err := row.Scan(&a.ID, &a.Email, &a.Status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}

	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &a, nil
}
