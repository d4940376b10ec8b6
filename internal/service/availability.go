package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/HRyska/seatbot/internal/models"
)

// AvailabilityService computes which seats are free on a given date.
type AvailabilityService struct {
	store  Store
	logger *zerolog.Logger
}

func NewAvailabilityService(store Store, logger *zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{store: store, logger: logger}
}

// AvailableSeats returns the free seat ids on the date, ascending.
//
// A seat is occupied when it has an active booking on the date, or
// when an active recurring rule covers the date's weekday and no
// cancelled instance of that rule frees this particular date.
func (s *AvailabilityService) AvailableSeats(ctx context.Context, date string) ([]int64, error) {
	weekday, err := models.WeekdayOf(date)
	if err != nil {
		return nil, fmt.Errorf("parse date: %w", err)
	}

	total, err := s.store.CountSeats(ctx)
	if err != nil {
		return nil, fmt.Errorf("count seats: %w", err)
	}

	taken, err := s.store.ListActiveSeatIDsOnDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("occupied seats: %w", err)
	}

	rules, err := s.store.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("active rules: %w", err)
	}

	for _, rule := range rules {
		if !rule.Weekdays.Contains(weekday) || taken[rule.SeatID] {
			continue
		}
		cancelled, err := s.store.HasCancelledInstance(ctx, rule.ID, rule.SeatID, date)
		if err != nil {
			return nil, fmt.Errorf("check cancelled instance: %w", err)
		}
		// A cancelled instance frees the seat for this one date only.
		if !cancelled {
			taken[rule.SeatID] = true
		}
	}

	free := make([]int64, 0, total)
	for id := int64(1); id <= int64(total); id++ {
		if !taken[id] {
			free = append(free, id)
		}
	}
	return free, nil
}

// IsSeatAvailable reports whether one specific seat is free on the date.
func (s *AvailabilityService) IsSeatAvailable(ctx context.Context, seatID int64, date string) (bool, error) {
	free, err := s.AvailableSeats(ctx, date)
	if err != nil {
		return false, err
	}
	for _, id := range free {
		if id == seatID {
			return true, nil
		}
	}
	return false, nil
}
