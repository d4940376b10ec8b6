// Package models contains the domain records shared between the store,
// the services and the bot layer.
package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Booking statuses.
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// Booking origins.
const (
	OriginRegular   = "regular"
	OriginRecurring = "recurring"
)

// Recurring rule statuses.
const (
	RuleStatusActive  = "active"
	RuleStatusDeleted = "deleted"
)

// DateLayout is the canonical storage format for booking dates.
// Lexicographic order matches chronological order, so ORDER BY date works.
const DateLayout = "2006-01-02"

// DisplayDateLayout is the format shown to users.
const DisplayDateLayout = "02.01.2006"

// User is a Telegram user observed by the bot. Keyed by telegram_id,
// upserted on every interaction.
type User struct {
	TelegramID int64
	Username   string
	FirstName  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName returns @username when known, first name otherwise.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return strconv.FormatInt(u.TelegramID, 10)
}

// Seat is one workplace in the office. Seeded once, never mutated.
type Seat struct {
	ID          int64
	Name        string
	Description string
}

// Booking is a single-date reservation of one seat by one user.
// Rows are never deleted; cancellation flips Status.
type Booking struct {
	ID        int64
	UserID    int64
	SeatID    int64
	Date      string // DateLayout
	Status    string
	Origin    string
	RuleID    *int64 // set only for recurring origin
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRecurring reports whether the booking was produced by a recurring rule.
func (b *Booking) IsRecurring() bool {
	return b.Origin == OriginRecurring
}

// BookingWithUser is the admin view of a booking joined with its owner.
type BookingWithUser struct {
	Booking
	Username  string
	FirstName string
}

// DisplayName returns @username when known, first name otherwise.
func (b *BookingWithUser) DisplayName() string {
	if b.Username != "" {
		return "@" + b.Username
	}
	return b.FirstName
}

// RecurringRule is a standing weekly seat assignment, expanded into
// concrete bookings over a rolling horizon.
type RecurringRule struct {
	ID        int64
	UserID    int64
	SeatID    int64
	Weekdays  Weekdays
	Status    string
	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Weekdays is a set of weekday numbers, 0 = Monday .. 6 = Sunday.
type Weekdays []int

var weekdayNames = [7]string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

// Contains reports whether day is in the set.
func (w Weekdays) Contains(day int) bool {
	for _, d := range w {
		if d == day {
			return true
		}
	}
	return false
}

// Overlaps reports whether both sets share at least one day.
func (w Weekdays) Overlaps(other Weekdays) bool {
	for _, d := range other {
		if w.Contains(d) {
			return true
		}
	}
	return false
}

// Toggle adds day to the set or removes it when already present.
func (w Weekdays) Toggle(day int) Weekdays {
	for i, d := range w {
		if d == day {
			return append(w[:i], w[i+1:]...)
		}
	}
	out := append(w, day)
	sort.Ints(out)
	return out
}

// CSV encodes the set for storage, e.g. "1,3".
func (w Weekdays) CSV() string {
	parts := make([]string, 0, len(w))
	for _, d := range w {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

// Human returns the set as short Russian weekday names, e.g. "Вт, Чт".
func (w Weekdays) Human() string {
	parts := make([]string, 0, len(w))
	for _, d := range w {
		if d >= 0 && d < 7 {
			parts = append(parts, weekdayNames[d])
		}
	}
	return strings.Join(parts, ", ")
}

// ParseWeekdays decodes a CSV weekday set. Values outside 0..6 are rejected.
func ParseWeekdays(csv string) (Weekdays, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make(Weekdays, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parse weekday %q: %w", p, err)
		}
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("weekday %d out of range", d)
		}
		if !out.Contains(d) {
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out, nil
}

// DateKey formats a time as a storage date key, dropping the time component.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateKey parses a storage date key.
func ParseDateKey(key string) (time.Time, error) {
	return time.Parse(DateLayout, key)
}

// DisplayDate renders a storage date key in the user-facing dd.mm.yyyy form.
// Invalid keys are returned as-is.
func DisplayDate(key string) string {
	t, err := ParseDateKey(key)
	if err != nil {
		return key
	}
	return t.Format(DisplayDateLayout)
}

// WeekdayOf returns the weekday of a storage date key, 0 = Monday.
func WeekdayOf(key string) (int, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return 0, err
	}
	return MondayBasedWeekday(t), nil
}

// MondayBasedWeekday converts time.Weekday (Sunday = 0) to the 0 = Monday
// convention used by recurring rules.
func MondayBasedWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
