package database

import (
	"context"
	"fmt"
)

// IsAdmin queries the admins table directly so a revocation takes
// effect on the next action without a restart.
func (db *DB) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM admins WHERE user_id = ?", userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return count > 0, nil
}

// AddAdmin grants admin rights. Idempotent.
func (db *DB) AddAdmin(ctx context.Context, userID, addedBy int64) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO admins (user_id, added_by) VALUES (?, ?) ON CONFLICT(user_id) DO NOTHING",
		userID, addedBy,
	)
	if err != nil {
		return fmt.Errorf("add admin: %w", err)
	}
	return nil
}

// RemoveAdmin revokes admin rights. Returns false when the user was
// not an admin.
func (db *DB) RemoveAdmin(ctx context.Context, userID int64) (bool, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM admins WHERE user_id = ?", userID)
	if err != nil {
		return false, fmt.Errorf("remove admin: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove admin: %w", err)
	}
	return rows > 0, nil
}

// ListAdmins returns all admin user ids.
func (db *DB) ListAdmins(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx, "SELECT user_id FROM admins ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
