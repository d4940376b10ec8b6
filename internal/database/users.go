package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/HRyska/seatbot/internal/models"
)

// UpsertUser registers a user on first contact and refreshes the
// username and first name on every later one.
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (telegram_id, username, first_name)
		VALUES (?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			updated_at = CURRENT_TIMESTAMP`

	if _, err := db.ExecContext(ctx, query, user.TelegramID, user.Username, user.FirstName); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser returns the user with the given telegram id.
func (db *DB) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	var u models.User
	err := db.QueryRowContext(ctx,
		"SELECT telegram_id, username, first_name FROM users WHERE telegram_id = ?",
		telegramID,
	).Scan(&u.TelegramID, &u.Username, &u.FirstName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// FindUserByUsername resolves a username typed by an admin. A leading @
// is stripped and matching is case-insensitive.
func (db *DB) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, ErrUserNotFound
	}

	var u models.User
	err := db.QueryRowContext(ctx,
		"SELECT telegram_id, username, first_name FROM users WHERE LOWER(username) = LOWER(?)",
		username,
	).Scan(&u.TelegramID, &u.Username, &u.FirstName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return &u, nil
}
