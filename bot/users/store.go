package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store persists account links and issued tokens. Implementations return
// (nil, nil) from lookups when no record exists.
type Store interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*Account, error)
	LinkTelegram(ctx context.Context, account Account) error
	LatestToken(ctx context.Context, userID int64) (*Credential, error)
	SaveToken(ctx context.Context, userID int64, token string) error
}

// PostgresStore is the sqlx-backed Store.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByTelegramID(ctx context.Context, telegramID int64) (*Account, error) {
	const query = `
		SELECT id, email,
		       COALESCE(name, '')              AS name,
		       COALESCE(telegram_id, 0)        AS telegram_id,
		       COALESCE(telegram_username, '') AS telegram_username
		FROM users
		WHERE telegram_id = $1`

	var acc Account
	if err := s.db.GetContext(ctx, &acc, query, telegramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("users: find by telegram id: %w", err)
	}
	return &acc, nil
}

// LinkTelegram records the Telegram identity against the account row. The
// upsert keeps a dedicated bot database consistent with deployments that
// share the platform database, where the row already exists.
func (s *PostgresStore) LinkTelegram(ctx context.Context, account Account) error {
	const query = `
		INSERT INTO users (id, email, name, telegram_id, telegram_username)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''))
		ON CONFLICT (id) DO UPDATE
		SET telegram_id       = EXCLUDED.telegram_id,
		    telegram_username = EXCLUDED.telegram_username`

	_, err := s.db.ExecContext(ctx, query,
		account.ID, account.Email, account.Name, account.TelegramID, account.TelegramUsername)
	if err != nil {
		return fmt.Errorf("users: link telegram: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestToken(ctx context.Context, userID int64) (*Credential, error) {
	const query = `
		SELECT user_id, token, created_at
		FROM api_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	var cred Credential
	if err := s.db.GetContext(ctx, &cred, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("users: latest token: %w", err)
	}
	return &cred, nil
}

func (s *PostgresStore) SaveToken(ctx context.Context, userID int64, token string) error {
	const query = `
		INSERT INTO api_tokens (user_id, token)
		VALUES ($1, $2)
		ON CONFLICT (token) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, userID, token); err != nil {
		return fmt.Errorf("users: save token: %w", err)
	}
	return nil
}
