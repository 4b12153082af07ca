// ABOUTME: Identity link persistence for SQLiteStore
// ABOUTME: Upserts are keyed by external user id, or by chat id within the same account

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const linkColumns = `id, external_user_id, chat_id, account_id, username, first_name, language_code, created_at, updated_at`

// GetIdentityLink retrieves the link for a chat-platform user.
func (s *SQLiteStore) GetIdentityLink(ctx context.Context, externalUserID string) (*IdentityLink, error) {
	return scanLink(s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM identity_links WHERE external_user_id = ?`, externalUserID))
}

// GetIdentityLinkByAccount retrieves the most recently updated link for an account.
func (s *SQLiteStore) GetIdentityLinkByAccount(ctx context.Context, accountID string) (*IdentityLink, error) {
	return scanLink(s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM identity_links WHERE account_id = ? ORDER BY updated_at DESC LIMIT 1`, accountID))
}

// UpsertIdentityLink updates the existing row found by external user id, or by
// chat id when that row belongs to the same account, otherwise inserts a new one.
// Shared rooms hold one row per user. Runs in a transaction so concurrent retries converge.
func (s *SQLiteStore) UpsertIdentityLink(ctx context.Context, link *IdentityLink) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	link.UpdatedAt = now

	var existingID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM identity_links
		WHERE external_user_id = ? OR (chat_id = ? AND account_id = ?)
		ORDER BY CASE WHEN external_user_id = ? THEN 0 ELSE 1 END
		LIMIT 1
	`, link.ExternalUserID, link.ChatID, link.AccountID, link.ExternalUserID).Scan(&existingID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if link.ID == "" {
			link.ID = uuid.New().String()
		}
		link.CreatedAt = now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO identity_links (`+linkColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			link.ID, link.ExternalUserID, link.ChatID, link.AccountID,
			link.Username, link.FirstName, link.LanguageCode,
			formatTime(link.CreatedAt), formatTime(link.UpdatedAt),
		)
		if err != nil {
			return false, fmt.Errorf("inserting identity link: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("committing identity link: %w", err)
		}
		s.logger.Info("created identity link", "id", link.ID, "external_user_id", link.ExternalUserID)
		return true, nil

	case err != nil:
		return false, fmt.Errorf("looking up identity link: %w", err)
	}

	link.ID = existingID
	_, err = tx.ExecContext(ctx, `
		UPDATE identity_links
		SET external_user_id = ?, chat_id = ?, account_id = ?, username = ?, first_name = ?,
		    language_code = ?, updated_at = ?
		WHERE id = ?
	`,
		link.ExternalUserID, link.ChatID, link.AccountID, link.Username, link.FirstName,
		link.LanguageCode, formatTime(link.UpdatedAt), existingID,
	)
	if err != nil {
		return false, fmt.Errorf("updating identity link: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing identity link: %w", err)
	}
	s.logger.Debug("updated identity link", "id", existingID, "external_user_id", link.ExternalUserID)
	return false, nil
}

func scanLink(row *sql.Row) (*IdentityLink, error) {
	var l IdentityLink
	var username, firstName, languageCode sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&l.ID, &l.ExternalUserID, &l.ChatID, &l.AccountID,
		&username, &firstName, &languageCode, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying identity link: %w", err)
	}

	l.Username = username.String
	l.FirstName = firstName.String
	l.LanguageCode = languageCode.String
	if l.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if l.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &l, nil
}
