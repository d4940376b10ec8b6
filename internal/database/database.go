// Package database implements the reservation store on SQLite.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB represents the database connection.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

var (
	ErrSeatTaken       = errors.New("seat is already booked for this date")
	ErrSeatNotFound    = errors.New("seat does not exist")
	ErrUserHasBooking  = errors.New("user already has a booking for this date")
	ErrRuleConflict    = errors.New("conflicting recurring rule exists")
	ErrBookingNotFound = errors.New("booking not found")
	ErrRuleNotFound    = errors.New("recurring rule not found")
	ErrUserNotFound    = errors.New("user not found")
)

// NewDB opens the database at path, creates tables and seeds the seat pool.
func NewDB(path string, totalSeats int, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}
	if err := instance.seedSeats(totalSeats); err != nil {
		return nil, fmt.Errorf("seed seats: %w", err)
	}

	logger.Info().Str("path", path).Int("seats", totalSeats).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			telegram_id INTEGER PRIMARY KEY,
			username TEXT,
			first_name TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS seats (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			seat_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			origin TEXT NOT NULL DEFAULT 'regular',
			rule_id INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(telegram_id),
			FOREIGN KEY (seat_id) REFERENCES seats(id),
			FOREIGN KEY (rule_id) REFERENCES recurring_rules(id)
		)`,

		`CREATE TABLE IF NOT EXISTS recurring_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			seat_id INTEGER NOT NULL,
			weekdays TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_by INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(telegram_id),
			FOREIGN KEY (seat_id) REFERENCES seats(id)
		)`,

		`CREATE TABLE IF NOT EXISTS admins (
			user_id INTEGER PRIMARY KEY,
			added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			added_by INTEGER NOT NULL DEFAULT 0
		)`,

		// The single serialization point: two concurrent inserts for the
		// same (seat, date) race this constraint, not a pre-check.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_seat_date_active
			ON bookings(seat_id, date) WHERE status = 'active'`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_user_date ON bookings(user_id, date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_rule ON bookings(rule_id, status, date)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_seat ON recurring_rules(seat_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func (db *DB) seedSeats(total int) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM seats").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for i := 1; i <= total; i++ {
		_, err := db.Exec(
			"INSERT INTO seats (id, name, description) VALUES (?, ?, ?)",
			i, fmt.Sprintf("Место №%d", i), fmt.Sprintf("Рабочее место номер %d", i),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func trimSQL(s string) string {
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// CountSeats returns the size of the seat pool.
func (db *DB) CountSeats(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM seats").Scan(&count)
	return count, err
}

func (db *DB) Close() error {
	return db.DB.Close()
}
