package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HRyska/seatbot/internal/models"
)

func TestCreateRecurringRule(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "alice")
	seedUser(t, db, 2, "bob")

	rule := &models.RecurringRule{UserID: 1, SeatID: 4, Weekdays: models.Weekdays{0, 2}, CreatedBy: 99}
	require.NoError(t, db.CreateRecurringRule(ctx, rule))
	assert.NotZero(t, rule.ID)

	t.Run("WeekdayOverlapSameSeat", func(t *testing.T) {
		err := db.CreateRecurringRule(ctx, &models.RecurringRule{
			UserID: 2, SeatID: 4, Weekdays: models.Weekdays{2, 4}, CreatedBy: 99,
		})
		assert.ErrorIs(t, err, ErrRuleConflict)
	})

	t.Run("SameUserSameSeat", func(t *testing.T) {
		err := db.CreateRecurringRule(ctx, &models.RecurringRule{
			UserID: 1, SeatID: 4, Weekdays: models.Weekdays{4}, CreatedBy: 99,
		})
		assert.ErrorIs(t, err, ErrRuleConflict)
	})

	t.Run("DisjointWeekdaysOtherUser", func(t *testing.T) {
		err := db.CreateRecurringRule(ctx, &models.RecurringRule{
			UserID: 2, SeatID: 4, Weekdays: models.Weekdays{4}, CreatedBy: 99,
		})
		assert.NoError(t, err)
	})

	t.Run("UnknownSeatRejected", func(t *testing.T) {
		err := db.CreateRecurringRule(ctx, &models.RecurringRule{
			UserID: 2, SeatID: 999, Weekdays: models.Weekdays{5}, CreatedBy: 99,
		})
		assert.ErrorIs(t, err, ErrSeatNotFound)
	})

	t.Run("OtherSeatFree", func(t *testing.T) {
		err := db.CreateRecurringRule(ctx, &models.RecurringRule{
			UserID: 1, SeatID: 5, Weekdays: models.Weekdays{0, 2}, CreatedBy: 99,
		})
		assert.NoError(t, err)
	})
}

func TestGetRecurringRule(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "alice")

	rule := &models.RecurringRule{UserID: 1, SeatID: 4, Weekdays: models.Weekdays{1, 3}, CreatedBy: 99}
	require.NoError(t, db.CreateRecurringRule(ctx, rule))

	got, err := db.GetRecurringRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Weekdays{1, 3}, got.Weekdays)
	assert.Equal(t, int64(99), got.CreatedBy)

	_, err = db.GetRecurringRule(ctx, 12345)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestDeleteRecurringRuleCascade(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "alice")

	rule := &models.RecurringRule{UserID: 1, SeatID: 4, Weekdays: models.Weekdays{0}, CreatedBy: 99}
	require.NoError(t, db.CreateRecurringRule(ctx, rule))

	past := &models.Booking{
		UserID: 1, SeatID: 4, Date: "2026-08-24",
		Origin: models.OriginRecurring, RuleID: &rule.ID,
	}
	future := &models.Booking{
		UserID: 1, SeatID: 4, Date: "2026-09-07",
		Origin: models.OriginRecurring, RuleID: &rule.ID,
	}
	require.NoError(t, db.CreateBookingForUser(ctx, past))
	require.NoError(t, db.CreateBookingForUser(ctx, future))

	require.NoError(t, db.DeleteRecurringRule(ctx, rule.ID, "2026-09-01"))

	// Past instance is history, future one gets cancelled.
	got, err := db.GetBooking(ctx, past.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)

	got, err = db.GetBooking(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	rules, err := db.ListActiveRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	assert.ErrorIs(t, db.DeleteRecurringRule(ctx, rule.ID, "2026-09-01"), ErrRuleNotFound)
}

func TestHasCancelledInstance(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "alice")

	rule := &models.RecurringRule{UserID: 1, SeatID: 4, Weekdays: models.Weekdays{0}, CreatedBy: 99}
	require.NoError(t, db.CreateRecurringRule(ctx, rule))

	inst := &models.Booking{
		UserID: 1, SeatID: 4, Date: "2026-09-07",
		Origin: models.OriginRecurring, RuleID: &rule.ID,
	}
	require.NoError(t, db.CreateBookingForUser(ctx, inst))

	found, err := db.HasCancelledInstance(ctx, rule.ID, 4, "2026-09-07")
	require.NoError(t, err)
	assert.False(t, found)

	ok, err := db.CancelBookingAdmin(ctx, inst.ID)
	require.NoError(t, err)
	require.True(t, ok)

	found, err = db.HasCancelledInstance(ctx, rule.ID, 4, "2026-09-07")
	require.NoError(t, err)
	assert.True(t, found)

	// Other dates of the same rule are unaffected.
	found, err = db.HasCancelledInstance(ctx, rule.ID, 4, "2026-09-14")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAdmins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ok, err := db.IsAdmin(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.AddAdmin(ctx, 1, 99))
	require.NoError(t, db.AddAdmin(ctx, 1, 99)) // idempotent

	ok, err = db.IsAdmin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := db.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	removed, err := db.RemoveAdmin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = db.RemoveAdmin(ctx, 1)
	require.NoError(t, err)
	assert.False(t, removed)
}
