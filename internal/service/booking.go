package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/HRyska/seatbot/internal/events"
	"github.com/HRyska/seatbot/internal/metrics"
	"github.com/HRyska/seatbot/internal/models"
)

// ErrNotCancellable marks a booking that is already cancelled or does
// not belong to the requester.
var ErrNotCancellable = errors.New("booking cannot be cancelled")

// BookingService creates and cancels one-off bookings.
type BookingService struct {
	store  Store
	bus    *events.EventBus
	logger *zerolog.Logger
}

func NewBookingService(store Store, bus *events.EventBus, logger *zerolog.Logger) *BookingService {
	return &BookingService{store: store, bus: bus, logger: logger}
}

// Book reserves a seat for the user on the date. The one-per-day rule
// applies; database.ErrSeatTaken and database.ErrUserHasBooking pass
// through for the caller to turn into replies.
func (s *BookingService) Book(ctx context.Context, userID, seatID int64, date string) (*models.Booking, error) {
	b := &models.Booking{
		UserID: userID,
		SeatID: seatID,
		Date:   date,
		Status: models.StatusActive,
		Origin: models.OriginRegular,
	}
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", userID).Int64("seat_id", seatID).Str("date", date).
		Msg("Booking created")
	metrics.IncBookingCreated(models.OriginRegular)
	s.bus.Publish(events.Event{
		Type: events.BookingCreated, UserID: userID, SeatID: seatID, Date: date, ActorID: userID,
	})
	return b, nil
}

// BookForUser reserves a seat on behalf of another user. The target's
// one-per-day rule is deliberately not checked so an admin can assign
// a second seat for guests or equipment.
func (s *BookingService) BookForUser(ctx context.Context, adminID, userID, seatID int64, date string) (*models.Booking, error) {
	b := &models.Booking{
		UserID: userID,
		SeatID: seatID,
		Date:   date,
		Status: models.StatusActive,
		Origin: models.OriginRegular,
	}
	if err := s.store.CreateBookingForUser(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("admin_id", adminID).Int64("user_id", userID).
		Int64("seat_id", seatID).Str("date", date).Msg("Booking created by admin")
	metrics.IncBookingCreated(models.OriginRegular)
	metrics.IncAdminAction("book_for_user")
	s.bus.Publish(events.Event{
		Type: events.BookingCreated, UserID: userID, SeatID: seatID, Date: date, ActorID: adminID,
	})
	return b, nil
}

// Cancel cancels the user's own active booking. Returns false when the
// booking does not exist, is not theirs, or is already cancelled.
func (s *BookingService) Cancel(ctx context.Context, id, userID int64) (bool, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return false, err
	}

	ok, err := s.store.CancelBooking(ctx, id, userID)
	if err != nil || !ok {
		return ok, err
	}

	s.logger.Info().Int64("user_id", userID).Int64("booking_id", id).Msg("Booking cancelled")
	metrics.IncBookingCancelled()
	s.bus.Publish(events.Event{
		Type: events.BookingCancelled, UserID: b.UserID, SeatID: b.SeatID, Date: b.Date, ActorID: userID,
	})
	return true, nil
}

// CancelAsAdmin cancels any user's active booking.
func (s *BookingService) CancelAsAdmin(ctx context.Context, adminID, id int64) (bool, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return false, err
	}

	ok, err := s.store.CancelBookingAdmin(ctx, id)
	if err != nil || !ok {
		return ok, err
	}

	s.logger.Info().Int64("admin_id", adminID).Int64("booking_id", id).Msg("Booking cancelled by admin")
	metrics.IncBookingCancelled()
	metrics.IncAdminAction("cancel_for_user")
	s.bus.Publish(events.Event{
		Type: events.BookingCancelled, UserID: b.UserID, SeatID: b.SeatID, Date: b.Date, ActorID: adminID,
	})
	return true, nil
}

// Change moves a booking to a new seat and date by cancelling the old
// one and creating a new one. When the new booking fails the old one
// stays cancelled; the user is told the seat was not taken and can
// book again.
func (s *BookingService) Change(ctx context.Context, requesterID int64, asAdmin bool, oldBookingID, newSeatID int64, newDate string) (*models.Booking, error) {
	old, err := s.store.GetBooking(ctx, oldBookingID)
	if err != nil {
		return nil, err
	}

	var cancelled bool
	if asAdmin {
		cancelled, err = s.store.CancelBookingAdmin(ctx, oldBookingID)
	} else {
		cancelled, err = s.store.CancelBooking(ctx, oldBookingID, requesterID)
	}
	if err != nil {
		return nil, err
	}
	if !cancelled {
		return nil, fmt.Errorf("booking %d: %w", oldBookingID, ErrNotCancellable)
	}
	metrics.IncBookingCancelled()
	s.bus.Publish(events.Event{
		Type: events.BookingCancelled, UserID: old.UserID, SeatID: old.SeatID, Date: old.Date, ActorID: requesterID,
	})

	b := &models.Booking{
		UserID: old.UserID,
		SeatID: newSeatID,
		Date:   newDate,
		Status: models.StatusActive,
		Origin: models.OriginRegular,
	}
	if asAdmin {
		err = s.store.CreateBookingForUser(ctx, b)
	} else {
		err = s.store.CreateBooking(ctx, b)
	}
	if err != nil {
		s.logger.Warn().Err(err).Int64("old_booking_id", oldBookingID).
			Msg("Change failed after cancel, old booking stays cancelled")
		return nil, err
	}

	s.logger.Info().Int64("requester_id", requesterID).Int64("old_booking_id", oldBookingID).
		Int64("seat_id", newSeatID).Str("date", newDate).Msg("Booking changed")
	metrics.IncBookingCreated(models.OriginRegular)
	s.bus.Publish(events.Event{
		Type: events.BookingCreated, UserID: b.UserID, SeatID: b.SeatID, Date: b.Date, ActorID: requesterID,
	})
	return b, nil
}

// CancelAll wipes every active booking and recurring rule, returning
// the total rows affected.
func (s *BookingService) CancelAll(ctx context.Context, adminID int64) (int64, error) {
	count, err := s.store.CancelAllActive(ctx)
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int64("admin_id", adminID).Int64("count", count).Msg("All bookings cancelled")
	metrics.IncAdminAction("cancel_all")
	s.bus.Publish(events.Event{Type: events.BookingsPurged, ActorID: adminID})
	return count, nil
}
