package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/HRyska/seatbot/internal/models"
)

// CreateRecurringRule inserts a recurring claim after checking, inside
// one transaction, that no active rule on the same seat shares a
// weekday and that the (user, seat) pair is not already claimed.
func (db *DB) CreateRecurringRule(ctx context.Context, rule *models.RecurringRule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := seatExists(ctx, tx, rule.SeatID); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT user_id, weekdays FROM recurring_rules WHERE seat_id = ? AND status = 'active'",
		rule.SeatID,
	)
	if err != nil {
		return fmt.Errorf("check rules: %w", err)
	}
	for rows.Next() {
		var userID int64
		var csv string
		if err := rows.Scan(&userID, &csv); err != nil {
			rows.Close()
			return fmt.Errorf("scan rule: %w", err)
		}
		existing, err := models.ParseWeekdays(csv)
		if err != nil {
			rows.Close()
			return fmt.Errorf("parse rule weekdays: %w", err)
		}
		if userID == rule.UserID || existing.Overlaps(rule.Weekdays) {
			rows.Close()
			return ErrRuleConflict
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("check rules: %w", err)
	}
	rows.Close()

	if rule.Status == "" {
		rule.Status = models.RuleStatusActive
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO recurring_rules (user_id, seat_id, weekdays, status, created_by)
		 VALUES (?, ?, ?, ?, ?)`,
		rule.UserID, rule.SeatID, rule.Weekdays.CSV(), rule.Status, rule.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("rule id: %w", err)
	}
	rule.ID = id

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rule: %w", err)
	}
	return nil
}

// GetRecurringRule returns a rule by id regardless of status.
func (db *DB) GetRecurringRule(ctx context.Context, id int64) (*models.RecurringRule, error) {
	var r models.RecurringRule
	var csv string
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, seat_id, weekdays, status, created_by
		 FROM recurring_rules WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.UserID, &r.SeatID, &csv, &r.Status, &r.CreatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	if r.Weekdays, err = models.ParseWeekdays(csv); err != nil {
		return nil, fmt.Errorf("parse rule weekdays: %w", err)
	}
	return &r, nil
}

// ListActiveRules returns every active recurring rule.
func (db *DB) ListActiveRules(ctx context.Context) ([]models.RecurringRule, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, seat_id, weekdays, status, created_by
		 FROM recurring_rules WHERE status = 'active' ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []models.RecurringRule
	for rows.Next() {
		var r models.RecurringRule
		var csv string
		if err := rows.Scan(&r.ID, &r.UserID, &r.SeatID, &csv, &r.Status, &r.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if r.Weekdays, err = models.ParseWeekdays(csv); err != nil {
			return nil, fmt.Errorf("parse rule weekdays: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// DeleteRecurringRule marks the rule deleted and cancels its active
// instances from fromDate onward. Past instances stay untouched.
func (db *DB) DeleteRecurringRule(ctx context.Context, ruleID int64, fromDate string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE recurring_rules SET status = 'deleted', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'active'`,
		ruleID,
	)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if rows == 0 {
		return ErrRuleNotFound
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'cancelled', updated_at = CURRENT_TIMESTAMP
		 WHERE rule_id = ? AND status = 'active' AND date >= ?`,
		ruleID, fromDate,
	)
	if err != nil {
		return fmt.Errorf("cancel rule instances: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rule delete: %w", err)
	}
	return nil
}

// HasCancelledInstance reports whether the rule's instance on the date
// was individually cancelled, which frees the seat for that day only.
func (db *DB) HasCancelledInstance(ctx context.Context, ruleID, seatID int64, date string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
		 WHERE rule_id = ? AND seat_id = ? AND date = ? AND status = 'cancelled'`,
		ruleID, seatID, date,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check cancelled instance: %w", err)
	}
	return count > 0, nil
}
