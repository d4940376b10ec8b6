// Package service implements seat availability, booking and recurring
// rule logic on top of the database layer.
package service

import (
	"context"

	"github.com/HRyska/seatbot/internal/models"
)

// Store is the persistence surface the services depend on. It is
// implemented by *database.DB and mocked in tests.
type Store interface {
	// users
	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)

	// bookings
	CreateBooking(ctx context.Context, b *models.Booking) error
	CreateBookingForUser(ctx context.Context, b *models.Booking) error
	CancelBooking(ctx context.Context, id, userID int64) (bool, error)
	CancelBookingAdmin(ctx context.Context, id int64) (bool, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListUserBookings(ctx context.Context, userID int64, fromDate string) ([]models.Booking, error)
	ListAllActiveBookings(ctx context.Context, fromDate string) ([]models.BookingWithUser, error)
	ListActiveSeatIDsOnDate(ctx context.Context, date string) (map[int64]bool, error)
	CancelAllActive(ctx context.Context) (int64, error)
	HasActiveBooking(ctx context.Context, userID int64, date string) (bool, error)

	// recurring rules
	CreateRecurringRule(ctx context.Context, rule *models.RecurringRule) error
	GetRecurringRule(ctx context.Context, id int64) (*models.RecurringRule, error)
	ListActiveRules(ctx context.Context) ([]models.RecurringRule, error)
	DeleteRecurringRule(ctx context.Context, ruleID int64, fromDate string) error
	HasCancelledInstance(ctx context.Context, ruleID, seatID int64, date string) (bool, error)

	// seats
	CountSeats(ctx context.Context) (int, error)
}
