package bot

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HRyska/seatbot/internal/config"
	"github.com/HRyska/seatbot/internal/database"
	"github.com/HRyska/seatbot/internal/events"
	"github.com/HRyska/seatbot/internal/models"
	"github.com/HRyska/seatbot/internal/service"
	"github.com/HRyska/seatbot/internal/session"
)

const adminID = int64(900)

type fakeTelegram struct {
	sent []tgbotapi.Chattable
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeTelegram) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeTelegram) SelfUser() tgbotapi.User {
	return tgbotapi.User{UserName: "seatbot_test"}
}

func (f *fakeTelegram) lastText(t *testing.T) string {
	t.Helper()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if msg, ok := f.sent[i].(tgbotapi.MessageConfig); ok {
			return msg.Text
		}
	}
	t.Fatal("no text messages sent")
	return ""
}

func newTestBot(t *testing.T) (*Bot, *fakeTelegram, *database.DB) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), 3, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{Admins: []int64{adminID}}
	cfg.Office.TotalSeats = 3
	bus := events.NewEventBus()
	availability := service.NewAvailabilityService(db, &logger)
	bookings := service.NewBookingService(db, bus, &logger)
	recurring := service.NewRecurringService(db, bus, 14, &logger)

	tg := &fakeTelegram{}
	b, err := NewWithTelegramClient(tg, cfg, db, availability, bookings, recurring,
		session.NewMemoryStore(), &logger)
	require.NoError(t, err)
	return b, tg, db
}

func message(userID int64, text string) *tgbotapi.Update {
	return &tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: userID, UserName: fmt.Sprintf("user%d", userID), FirstName: "Тест"},
			Chat: &tgbotapi.Chat{ID: userID},
			Text: text,
		},
	}
}

func callback(userID int64, data string) *tgbotapi.Update {
	return &tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cq",
			From: &tgbotapi.User{ID: userID, UserName: fmt.Sprintf("user%d", userID)},
			Data: data,
			Message: &tgbotapi.Message{
				MessageID: 1,
				Chat:      &tgbotapi.Chat{ID: userID},
			},
		},
	}
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func TestSelfBookFlow(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()
	date := futureDate(7)

	b.handleUpdate(ctx, message(1, "/start"))
	b.handleUpdate(ctx, message(1, btnBook))
	b.handleUpdate(ctx, callback(1, "date:"+date))
	assert.Contains(t, tg.lastText(t), "Свободные места")

	b.handleUpdate(ctx, callback(1, "seat:2"))
	assert.Contains(t, tg.lastText(t), "Бронируем Место №2")

	b.handleUpdate(ctx, callback(1, "confirm:yes"))

	list, err := db.ListUserBookings(ctx, 1, date)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].SeatID)
	assert.Equal(t, date, list[0].Date)

	// Session is gone; a stray confirm does nothing.
	before := len(tg.sent)
	b.handleUpdate(ctx, callback(1, "confirm:yes"))
	assert.Equal(t, before, len(tg.sent))
}

func TestBookPastDateRejected(t *testing.T) {
	b, tg, _ := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, message(1, btnBook))
	b.handleUpdate(ctx, callback(1, "date:2020-01-01"))
	assert.Contains(t, tg.lastText(t), "прошедшую дату")
}

func TestBookSeatRace(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()
	date := futureDate(7)

	// Someone else grabs seat 1 between listing and confirming.
	b.handleUpdate(ctx, message(2, "/start"))
	b.handleUpdate(ctx, message(1, btnBook))
	b.handleUpdate(ctx, callback(1, "date:"+date))
	b.handleUpdate(ctx, callback(1, "seat:1"))

	require.NoError(t, db.CreateBooking(ctx, &models.Booking{UserID: 2, SeatID: 1, Date: date}))

	b.handleUpdate(ctx, callback(1, "confirm:yes"))
	found := false
	for _, c := range tg.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok && msg.Text == "Это место уже заняли. Выберите другое." {
			found = true
		}
	}
	assert.True(t, found)

	// The flow is still alive on the seat step.
	b.handleUpdate(ctx, callback(1, "seat:2"))
	b.handleUpdate(ctx, callback(1, "confirm:yes"))
	list, err := db.ListUserBookings(ctx, 1, date)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].SeatID)
}

func TestForgedSeatCallbackRejected(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()
	date := futureDate(7)

	// The office has 3 seats; seat 99 can only come from a forged or
	// stale callback.
	b.handleUpdate(ctx, message(1, btnBook))
	b.handleUpdate(ctx, callback(1, "date:"+date))
	b.handleUpdate(ctx, callback(1, "seat:99"))
	assert.Contains(t, tg.lastText(t), "Такого места нет")

	list, err := db.ListUserBookings(ctx, 1, date)
	require.NoError(t, err)
	assert.Empty(t, list)

	// The flow stays on the seat step; a real seat still works.
	b.handleUpdate(ctx, callback(1, "seat:2"))
	b.handleUpdate(ctx, callback(1, "confirm:yes"))
	list, err = db.ListUserBookings(ctx, 1, date)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].SeatID)
}

func TestCancelFlow(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()
	date := futureDate(7)

	b.handleUpdate(ctx, message(1, "/start"))
	require.NoError(t, db.CreateBooking(ctx, &models.Booking{UserID: 1, SeatID: 1, Date: date}))

	b.handleUpdate(ctx, message(1, btnCancelBooking))
	list, err := db.ListUserBookings(ctx, 1, date)
	require.NoError(t, err)
	b.handleUpdate(ctx, callback(1, fmt.Sprintf("bk:%d", list[0].ID)))
	b.handleUpdate(ctx, callback(1, "confirm:yes"))
	assert.Contains(t, tg.lastText(t), "Выберите действие")

	list, err = db.ListUserBookings(ctx, 1, date)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestChangeFlow(t *testing.T) {
	b, _, db := newTestBot(t)
	ctx := context.Background()
	date := futureDate(7)
	newDate := futureDate(8)

	b.handleUpdate(ctx, message(1, "/start"))
	require.NoError(t, db.CreateBooking(ctx, &models.Booking{UserID: 1, SeatID: 1, Date: date}))

	b.handleUpdate(ctx, message(1, btnChangeBooking))
	list, err := db.ListUserBookings(ctx, 1, date)
	require.NoError(t, err)
	b.handleUpdate(ctx, callback(1, fmt.Sprintf("bk:%d", list[0].ID)))
	b.handleUpdate(ctx, callback(1, "date:"+newDate))
	b.handleUpdate(ctx, callback(1, "seat:3"))
	b.handleUpdate(ctx, callback(1, "confirm:yes"))

	list, err = db.ListUserBookings(ctx, 1, date)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(3), list[0].SeatID)
	assert.Equal(t, newDate, list[0].Date)
}

func TestAdminPanelDenied(t *testing.T) {
	b, tg, _ := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, message(1, btnAdminPanel))
	assert.Contains(t, tg.lastText(t), "только администраторам")

	b.handleUpdate(ctx, callback(1, "adm:cancel_all"))
	assert.Contains(t, tg.lastText(t), "только администраторам")
}

func TestAdminBookForUser(t *testing.T) {
	b, _, db := newTestBot(t)
	ctx := context.Background()
	date := futureDate(7)

	b.handleUpdate(ctx, message(1, "/start"))
	b.handleUpdate(ctx, message(adminID, "/start"))

	b.handleUpdate(ctx, callback(adminID, "adm:book"))
	b.handleUpdate(ctx, message(adminID, "@user1"))
	b.handleUpdate(ctx, callback(adminID, "date:"+date))
	b.handleUpdate(ctx, callback(adminID, "seat:1"))
	b.handleUpdate(ctx, callback(adminID, "confirm:yes"))

	list, err := db.ListUserBookings(ctx, 1, date)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].SeatID)
}

func TestAdminBookForUserByID(t *testing.T) {
	b, _, db := newTestBot(t)
	ctx := context.Background()
	date := futureDate(7)

	b.handleUpdate(ctx, message(1, "/start"))

	// A raw telegram id works where a handle would.
	b.handleUpdate(ctx, callback(adminID, "adm:book"))
	b.handleUpdate(ctx, message(adminID, "1"))
	b.handleUpdate(ctx, callback(adminID, "date:"+date))
	b.handleUpdate(ctx, callback(adminID, "seat:1"))
	b.handleUpdate(ctx, callback(adminID, "confirm:yes"))

	list, err := db.ListUserBookings(ctx, 1, date)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].SeatID)
}

func TestRevokedAdminBlockedMidFlow(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()
	date := futureDate(7)

	b.handleUpdate(ctx, message(1, "/start"))
	b.handleUpdate(ctx, message(2, "/start"))
	require.NoError(t, db.AddAdmin(ctx, 2, adminID))

	b.handleUpdate(ctx, callback(2, "adm:book"))
	b.handleUpdate(ctx, message(2, "@user1"))

	// Rights pulled between steps; the next step must not go through.
	ok, err := db.RemoveAdmin(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)

	b.handleUpdate(ctx, callback(2, "date:"+date))
	assert.Contains(t, tg.lastText(t), "только администраторам")

	b.handleUpdate(ctx, callback(2, "seat:1"))
	b.handleUpdate(ctx, callback(2, "confirm:yes"))
	list, err := db.ListUserBookings(ctx, 1, date)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAdminCancelAll(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()
	date := futureDate(7)

	b.handleUpdate(ctx, message(1, "/start"))
	require.NoError(t, db.CreateBooking(ctx, &models.Booking{UserID: 1, SeatID: 1, Date: date}))

	b.handleUpdate(ctx, callback(adminID, "adm:cancel_all"))
	assert.Contains(t, tg.lastText(t), "Продолжить?")
	b.handleUpdate(ctx, callback(adminID, "confirm:yes"))
	assert.Contains(t, tg.lastText(t), "Отменено записей: 1")

	list, err := db.ListAllActiveBookings(ctx, "2020-01-01")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAdminRuleFlow(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, message(1, "/start"))

	b.handleUpdate(ctx, callback(adminID, "adm:rule_new"))
	b.handleUpdate(ctx, message(adminID, "user1"))
	assert.Contains(t, tg.lastText(t), "дни недели")

	b.handleUpdate(ctx, callback(adminID, "wd:0"))
	b.handleUpdate(ctx, callback(adminID, "wd:done"))
	b.handleUpdate(ctx, callback(adminID, "seat:2"))
	b.handleUpdate(ctx, callback(adminID, "confirm:yes"))
	assert.Contains(t, tg.lastText(t), "закреплено")

	rules, err := db.ListActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, int64(2), rules[0].SeatID)
	assert.Equal(t, models.Weekdays{0}, rules[0].Weekdays)

	// And drop it again.
	b.handleUpdate(ctx, callback(adminID, "adm:rule_drop"))
	b.handleUpdate(ctx, callback(adminID, fmt.Sprintf("rule:%d", rules[0].ID)))
	b.handleUpdate(ctx, callback(adminID, "confirm:yes"))

	rules, err = db.ListActiveRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestAdminGrantRevoke(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, message(1, "/start"))

	b.handleUpdate(ctx, callback(adminID, "adm:grant"))
	b.handleUpdate(ctx, message(adminID, "@user1"))
	ok, err := db.IsAdmin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	b.handleUpdate(ctx, callback(adminID, "adm:revoke"))
	b.handleUpdate(ctx, message(adminID, "@user1"))
	ok, err = db.IsAdmin(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	// The config-seeded admin is protected.
	b.handleUpdate(ctx, message(adminID, "/start"))
	b.handleUpdate(ctx, callback(adminID, "adm:revoke"))
	b.handleUpdate(ctx, message(adminID, fmt.Sprintf("@user%d", adminID)))
	assert.Contains(t, tg.lastText(t), "нельзя убрать")
}

func TestUnknownUsername(t *testing.T) {
	b, tg, _ := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, callback(adminID, "adm:book"))
	b.handleUpdate(ctx, message(adminID, "@ghost"))
	assert.Contains(t, tg.lastText(t), "не найден")
}
