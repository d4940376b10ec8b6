package service

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HRyska/seatbot/internal/database"
	"github.com/HRyska/seatbot/internal/events"
	"github.com/HRyska/seatbot/internal/models"
)

var testLogger = zerolog.New(io.Discard)

func newTestStore(t *testing.T, seats int) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), seats, &testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUser(t *testing.T, db *database.DB, id int64, username string) {
	t.Helper()
	require.NoError(t, db.UpsertUser(context.Background(), &models.User{
		TelegramID: id, Username: username, FirstName: "User",
	}))
}

func TestAvailableSeats(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t, 2)
	seedUser(t, db, 1, "alice")
	seedUser(t, db, 2, "bob")
	svc := NewAvailabilityService(db, &testLogger)

	// 2026-09-08 is a Tuesday.
	const tuesday = "2026-09-08"

	t.Run("AllFree", func(t *testing.T) {
		free, err := svc.AvailableSeats(ctx, tuesday)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, free)
	})

	t.Run("OneOffBlocksDate", func(t *testing.T) {
		require.NoError(t, db.CreateBooking(ctx, &models.Booking{
			UserID: 1, SeatID: 1, Date: tuesday,
		}))
		free, err := svc.AvailableSeats(ctx, tuesday)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, free)

		// Other dates are untouched.
		free, err = svc.AvailableSeats(ctx, "2026-09-09")
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, free)
	})

	t.Run("RuleBlocksItsWeekday", func(t *testing.T) {
		// Tuesday rule on seat 2.
		require.NoError(t, db.CreateRecurringRule(ctx, &models.RecurringRule{
			UserID: 2, SeatID: 2, Weekdays: models.Weekdays{1}, CreatedBy: 99,
		}))

		free, err := svc.AvailableSeats(ctx, tuesday)
		require.NoError(t, err)
		assert.Empty(t, free)

		// Wednesday is outside the rule.
		free, err = svc.AvailableSeats(ctx, "2026-09-09")
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, free)
	})

	t.Run("CancelledInstanceFreesSingleDate", func(t *testing.T) {
		rules, err := db.ListActiveRules(ctx)
		require.NoError(t, err)
		require.Len(t, rules, 1)
		rule := rules[0]

		inst := &models.Booking{
			UserID: 2, SeatID: 2, Date: tuesday,
			Origin: models.OriginRecurring, RuleID: &rule.ID,
		}
		require.NoError(t, db.CreateBookingForUser(ctx, inst))
		ok, err := db.CancelBookingAdmin(ctx, inst.ID)
		require.NoError(t, err)
		require.True(t, ok)

		free, err := svc.AvailableSeats(ctx, tuesday)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, free)

		// The following Tuesday seat 2 is still claimed by the rule;
		// seat 1's one-off booking only covered 2026-09-08.
		free, err = svc.AvailableSeats(ctx, "2026-09-15")
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, free)
	})

	t.Run("BadDate", func(t *testing.T) {
		_, err := svc.AvailableSeats(ctx, "08.09.2026")
		assert.Error(t, err)
	})
}

func TestIsSeatAvailable(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t, 3)
	seedUser(t, db, 1, "alice")
	svc := NewAvailabilityService(db, &testLogger)

	require.NoError(t, db.CreateBooking(ctx, &models.Booking{
		UserID: 1, SeatID: 2, Date: "2026-09-08",
	}))

	ok, err := svc.IsSeatAvailable(ctx, 2, "2026-09-08")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsSeatAvailable(ctx, 3, "2026-09-08")
	require.NoError(t, err)
	assert.True(t, ok)
}

func newBus() *events.EventBus { return events.NewEventBus() }
