package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/HRyska/seatbot/internal/database"
	"github.com/HRyska/seatbot/internal/events"
	"github.com/HRyska/seatbot/internal/metrics"
	"github.com/HRyska/seatbot/internal/models"
)

// RecurringService manages weekday claims and materializes them into
// concrete bookings over a rolling horizon.
type RecurringService struct {
	store       Store
	bus         *events.EventBus
	horizonDays int
	logger      *zerolog.Logger

	now func() time.Time
}

func NewRecurringService(store Store, bus *events.EventBus, horizonDays int, logger *zerolog.Logger) *RecurringService {
	if horizonDays <= 0 {
		horizonDays = 60
	}
	return &RecurringService{
		store:       store,
		bus:         bus,
		horizonDays: horizonDays,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateRule stores a recurring claim and expands it immediately.
// database.ErrRuleConflict passes through when the seat's weekdays or
// the (user, seat) pair collide with an existing rule.
func (s *RecurringService) CreateRule(ctx context.Context, adminID, userID, seatID int64, weekdays models.Weekdays) (*models.RecurringRule, error) {
	rule := &models.RecurringRule{
		UserID:    userID,
		SeatID:    seatID,
		Weekdays:  weekdays,
		Status:    models.RuleStatusActive,
		CreatedBy: adminID,
	}
	if err := s.store.CreateRecurringRule(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("admin_id", adminID).Int64("user_id", userID).
		Int64("seat_id", seatID).Str("weekdays", weekdays.CSV()).Msg("Recurring rule created")
	metrics.IncRuleCreated()
	metrics.IncAdminAction("rule_create")
	s.bus.Publish(events.Event{Type: events.RuleCreated, UserID: userID, SeatID: seatID, ActorID: adminID})

	if err := s.ExpandRule(ctx, rule); err != nil {
		s.logger.Error().Err(err).Int64("rule_id", rule.ID).Msg("Initial rule expansion failed")
	}
	return rule, nil
}

// ExpandRule creates recurring bookings for every matching date in the
// horizon. Dates already holding an active booking on the seat are
// skipped silently, which also makes re-expansion idempotent: the
// rule's own earlier instances occupy their dates.
func (s *RecurringService) ExpandRule(ctx context.Context, rule *models.RecurringRule) error {
	today := s.now()
	created := 0

	for i := 0; i < s.horizonDays; i++ {
		day := today.AddDate(0, 0, i)
		if !rule.Weekdays.Contains(models.MondayBasedWeekday(day)) {
			continue
		}
		date := models.DateKey(day)

		// An individually cancelled instance stays cancelled.
		cancelled, err := s.store.HasCancelledInstance(ctx, rule.ID, rule.SeatID, date)
		if err != nil {
			return err
		}
		if cancelled {
			continue
		}

		b := &models.Booking{
			UserID: rule.UserID,
			SeatID: rule.SeatID,
			Date:   date,
			Status: models.StatusActive,
			Origin: models.OriginRecurring,
			RuleID: &rule.ID,
		}
		err = s.store.CreateBookingForUser(ctx, b)
		if errors.Is(err, database.ErrSeatTaken) {
			continue
		}
		if err != nil {
			return err
		}
		created++
	}

	if created > 0 {
		s.logger.Info().Int64("rule_id", rule.ID).Int("created", created).Msg("Rule expanded")
	}
	return nil
}

// ExpandAll re-expands every active rule. Run daily so the rolling
// horizon keeps moving forward.
func (s *RecurringService) ExpandAll(ctx context.Context) error {
	rules, err := s.store.ListActiveRules(ctx)
	if err != nil {
		return err
	}
	for i := range rules {
		if err := s.ExpandRule(ctx, &rules[i]); err != nil {
			s.logger.Error().Err(err).Int64("rule_id", rules[i].ID).Msg("Rule expansion failed")
		}
	}
	return nil
}

// StartExpander re-expands all rules once at startup and then daily.
func (s *RecurringService) StartExpander(ctx context.Context) {
	if err := s.ExpandAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Startup rule expansion failed")
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ExpandAll(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Daily rule expansion failed")
			}
		}
	}
}

// DeleteRule removes a rule and cancels its instances from today
// onward. Past instances remain as history.
func (s *RecurringService) DeleteRule(ctx context.Context, adminID, ruleID int64) error {
	rule, err := s.store.GetRecurringRule(ctx, ruleID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteRecurringRule(ctx, ruleID, models.DateKey(s.now())); err != nil {
		return err
	}

	s.logger.Info().Int64("admin_id", adminID).Int64("rule_id", ruleID).Msg("Recurring rule deleted")
	metrics.IncRuleDeleted()
	metrics.IncAdminAction("rule_delete")
	s.bus.Publish(events.Event{Type: events.RuleDeleted, UserID: rule.UserID, SeatID: rule.SeatID, ActorID: adminID})
	return nil
}
