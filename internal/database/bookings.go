package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/HRyska/seatbot/internal/models"
)

// HasActiveBooking reports whether the user already holds a regular
// active booking on the date. Recurring instances do not count against
// the one-per-day limit.
func (db *DB) HasActiveBooking(ctx context.Context, userID int64, date string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
		 WHERE user_id = ? AND date = ? AND status = 'active' AND origin = 'regular'`,
		userID, date,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check user booking: %w", err)
	}
	return count > 0, nil
}

// IsSeatTaken reports whether the seat has an active booking on the date.
func (db *DB) IsSeatTaken(ctx context.Context, seatID int64, date string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE seat_id = ? AND date = ? AND status = 'active'",
		seatID, date,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check seat: %w", err)
	}
	return count > 0, nil
}

// CreateBooking inserts a booking after re-checking both conflict rules
// inside one transaction. Returns ErrSeatTaken when the seat is busy
// and ErrUserHasBooking when the user already booked that day.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	return db.createBooking(ctx, b, true)
}

// CreateBookingForUser inserts a booking on behalf of another user.
// Only the seat is conflict-checked; an admin may stack a second seat
// on a user who already has one.
func (db *DB) CreateBookingForUser(ctx context.Context, b *models.Booking) error {
	return db.createBooking(ctx, b, false)
}

func (db *DB) createBooking(ctx context.Context, b *models.Booking, checkUser bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := seatExists(ctx, tx, b.SeatID); err != nil {
		return err
	}

	var count int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE seat_id = ? AND date = ? AND status = 'active'",
		b.SeatID, b.Date,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check seat: %w", err)
	}
	if count > 0 {
		return ErrSeatTaken
	}

	if checkUser && b.Origin == models.OriginRegular {
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bookings
			 WHERE user_id = ? AND date = ? AND status = 'active' AND origin = 'regular'`,
			b.UserID, b.Date,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("check user booking: %w", err)
		}
		if count > 0 {
			return ErrUserHasBooking
		}
	}

	if b.Status == "" {
		b.Status = models.StatusActive
	}
	if b.Origin == "" {
		b.Origin = models.OriginRegular
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, seat_id, date, status, origin, rule_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.UserID, b.SeatID, b.Date, b.Status, b.Origin, b.RuleID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSeatTaken
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("booking id: %w", err)
	}
	b.ID = id

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrSeatTaken
		}
		return fmt.Errorf("commit booking: %w", err)
	}
	return nil
}

// seatExists guards against forged or stale seat ids: bookings may
// only reference seats from the seeded pool.
func seatExists(ctx context.Context, tx *sql.Tx, seatID int64) error {
	var count int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM seats WHERE id = ?", seatID).Scan(&count)
	if err != nil {
		return fmt.Errorf("check seat exists: %w", err)
	}
	if count == 0 {
		return ErrSeatNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// GetBooking returns a booking by id regardless of status.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var b models.Booking
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, seat_id, date, status, origin, rule_id
		 FROM bookings WHERE id = ?`,
		id,
	).Scan(&b.ID, &b.UserID, &b.SeatID, &b.Date, &b.Status, &b.Origin, &b.RuleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}

// CancelBooking flips the booking to cancelled if it is active and
// belongs to userID. Returns false when no row matched.
func (db *DB) CancelBooking(ctx context.Context, id, userID int64) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET status = 'cancelled', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ? AND status = 'active'`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("cancel booking: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel booking: %w", err)
	}
	return rows > 0, nil
}

// CancelBookingAdmin cancels any active booking regardless of owner.
func (db *DB) CancelBookingAdmin(ctx context.Context, id int64) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET status = 'cancelled', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'active'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("cancel booking: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel booking: %w", err)
	}
	return rows > 0, nil
}

// ListUserBookings returns the user's active bookings from fromDate
// onward, earliest first.
func (db *DB) ListUserBookings(ctx context.Context, userID int64, fromDate string) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, seat_id, date, status, origin, rule_id
		 FROM bookings
		 WHERE user_id = ? AND date >= ? AND status = 'active'
		 ORDER BY date ASC, seat_id ASC`,
		userID, fromDate,
	)
	if err != nil {
		return nil, fmt.Errorf("list user bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.UserID, &b.SeatID, &b.Date, &b.Status, &b.Origin, &b.RuleID); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ListAllActiveBookings returns every active booking from fromDate
// onward with the owner attached, ordered by date then seat.
func (db *DB) ListAllActiveBookings(ctx context.Context, fromDate string) ([]models.BookingWithUser, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT b.id, b.user_id, b.seat_id, b.date, b.status, b.origin, b.rule_id,
		        u.username, u.first_name
		 FROM bookings b
		 JOIN users u ON u.telegram_id = b.user_id
		 WHERE b.date >= ? AND b.status = 'active'
		 ORDER BY b.date ASC, b.seat_id ASC`,
		fromDate,
	)
	if err != nil {
		return nil, fmt.Errorf("list all bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.BookingWithUser
	for rows.Next() {
		var b models.BookingWithUser
		err := rows.Scan(&b.ID, &b.UserID, &b.SeatID, &b.Date, &b.Status, &b.Origin, &b.RuleID,
			&b.Username, &b.FirstName)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ListActiveSeatIDsOnDate returns the seats already held on the date.
func (db *DB) ListActiveSeatIDsOnDate(ctx context.Context, date string) (map[int64]bool, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT seat_id FROM bookings WHERE date = ? AND status = 'active'",
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("list seats on date: %w", err)
	}
	defer rows.Close()

	taken := make(map[int64]bool)
	for rows.Next() {
		var seatID int64
		if err := rows.Scan(&seatID); err != nil {
			return nil, fmt.Errorf("scan seat id: %w", err)
		}
		taken[seatID] = true
	}
	return taken, rows.Err()
}

// CancelAllActive cancels every active booking and every active
// recurring rule in one transaction. Returns the total number of rows
// affected across both tables.
func (db *DB) CancelAllActive(ctx context.Context) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'cancelled', updated_at = CURRENT_TIMESTAMP
		 WHERE status = 'active'`,
	)
	if err != nil {
		return 0, fmt.Errorf("cancel bookings: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel bookings: %w", err)
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE recurring_rules SET status = 'deleted', updated_at = CURRENT_TIMESTAMP
		 WHERE status = 'active'`,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate rules: %w", err)
	}
	ruleCount, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate rules: %w", err)
	}
	count += ruleCount

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}
	return count, nil
}
