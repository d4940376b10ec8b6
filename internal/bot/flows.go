package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/HRyska/seatbot/internal/database"
	"github.com/HRyska/seatbot/internal/models"
	"github.com/HRyska/seatbot/internal/service"
	"github.com/HRyska/seatbot/internal/session"
)

func (b *Bot) sendGreeting(ctx context.Context, chatID int64, from *tgbotapi.User) {
	name := from.FirstName
	if name == "" {
		name = from.UserName
	}
	b.reply(ctx, chatID, fmt.Sprintf("Привет, %s! Я помогу забронировать место в офисе.", name))
	b.sendMainMenu(ctx, chatID, from.ID)
}

func (b *Bot) sendMainMenu(ctx context.Context, chatID, userID int64) {
	msg := tgbotapi.NewMessage(chatID, "Выберите действие:")
	if b.isAdmin(ctx, userID) {
		msg.ReplyMarkup = adminMainMenu
	} else {
		msg.ReplyMarkup = mainMenu
	}
	b.sender.send(ctx, msg)
}

func (b *Bot) sendOfficeMap(ctx context.Context, chatID int64) {
	path := b.cfg.Office.MapPath
	if path == "" {
		b.reply(ctx, chatID, "Карта офиса не настроена.")
		return
	}
	if _, err := os.Stat(path); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", path).Msg("Office map file missing")
		b.reply(ctx, chatID, "Карта офиса временно недоступна.")
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	photo.Caption = "Схема рассадки"
	b.sender.send(ctx, photo)
}

func (b *Bot) sendCalendar(ctx context.Context, chatID int64) {
	now := time.Now()
	msg := tgbotapi.NewMessage(chatID, "Выберите дату:")
	msg.ReplyMarkup = generateCalendar(now.Year(), int(now.Month()), now)
	b.sender.send(ctx, msg)
}

func (b *Bot) handleCalendarNav(ctx context.Context, chatID int64, messageID int, data string) {
	parts := strings.Split(strings.TrimPrefix(data, "cal:"), ":")
	if len(parts) != 2 {
		return
	}
	year, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || month < 1 || month > 12 {
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID,
		generateCalendar(year, month, time.Now()))
	b.sender.send(ctx, edit)
}

// --- self-service flows ---

func (b *Bot) startBookFlow(ctx context.Context, chatID, userID int64) {
	b.putSession(ctx, userID, &session.Session{
		Flow: session.FlowBook, Step: session.StepPickDate, UpdatedAt: time.Now(),
	})
	b.sendCalendar(ctx, chatID)
}

func (b *Bot) handleMyBookings(ctx context.Context, chatID, userID int64) {
	bookings, err := b.db.ListUserBookings(ctx, userID, models.DateKey(time.Now()))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to list user bookings")
		b.reply(ctx, chatID, "Не удалось загрузить брони, попробуйте позже.")
		return
	}
	if len(bookings) == 0 {
		b.reply(ctx, chatID, "У вас нет активных броней.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Ваши брони:\n\n")
	for _, bk := range bookings {
		sb.WriteString(fmt.Sprintf("📅 %s — Место №%d", models.DisplayDate(bk.Date), bk.SeatID))
		if bk.IsRecurring() {
			sb.WriteString(" (постоянное)")
		}
		sb.WriteString("\n")
	}
	b.reply(ctx, chatID, sb.String())
}

func (b *Bot) startCancelFlow(ctx context.Context, chatID, userID int64) {
	bookings, err := b.db.ListUserBookings(ctx, userID, models.DateKey(time.Now()))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to list user bookings")
		b.reply(ctx, chatID, "Не удалось загрузить брони, попробуйте позже.")
		return
	}
	if len(bookings) == 0 {
		b.reply(ctx, chatID, "У вас нет активных броней.")
		return
	}

	b.putSession(ctx, userID, &session.Session{
		Flow: session.FlowCancel, Step: session.StepPickBooking, UpdatedAt: time.Now(),
	})
	msg := tgbotapi.NewMessage(chatID, "Какую бронь отменить?")
	msg.ReplyMarkup = bookingsKeyboard(bookings)
	b.sender.send(ctx, msg)
}

func (b *Bot) startChangeFlow(ctx context.Context, chatID, userID int64) {
	bookings, err := b.db.ListUserBookings(ctx, userID, models.DateKey(time.Now()))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to list user bookings")
		b.reply(ctx, chatID, "Не удалось загрузить брони, попробуйте позже.")
		return
	}
	if len(bookings) == 0 {
		b.reply(ctx, chatID, "У вас нет активных броней.")
		return
	}

	b.putSession(ctx, userID, &session.Session{
		Flow: session.FlowChange, Step: session.StepPickBooking, UpdatedAt: time.Now(),
	})
	msg := tgbotapi.NewMessage(chatID, "Какую бронь поменять?")
	msg.ReplyMarkup = bookingsKeyboard(bookings)
	b.sender.send(ctx, msg)
}

// --- shared step handlers ---

func (b *Bot) handleDatePicked(ctx context.Context, chatID, userID int64, date string) {
	st := b.getSession(ctx, userID)
	if !st.Active() || st.Step != session.StepPickDate {
		return
	}
	if st.Flow.IsAdmin() && !b.requireAdmin(ctx, chatID, userID) {
		b.clearSession(ctx, userID)
		return
	}
	if _, err := models.ParseDateKey(date); err != nil {
		b.reply(ctx, chatID, "Некорректная дата.")
		return
	}
	if date < models.DateKey(time.Now()) {
		b.reply(ctx, chatID, "Нельзя бронировать на прошедшую дату.")
		return
	}

	st.Date = date
	if !b.fsm.Advance(st, session.StepPickSeat) {
		return
	}
	b.putSession(ctx, userID, st)
	b.sendFreeSeats(ctx, chatID, date)
}

func (b *Bot) sendFreeSeats(ctx context.Context, chatID int64, date string) {
	free, err := b.availability.AvailableSeats(ctx, date)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("date", date).Msg("Failed to compute availability")
		b.reply(ctx, chatID, "Не удалось проверить свободные места, попробуйте позже.")
		return
	}
	if len(free) == 0 {
		b.reply(ctx, chatID, fmt.Sprintf("На %s свободных мест нет. Выберите другую дату.", models.DisplayDate(date)))
		b.sendCalendar(ctx, chatID)
		return
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Свободные места на %s:", models.DisplayDate(date)))
	msg.ReplyMarkup = seatsKeyboard(free)
	b.sender.send(ctx, msg)
}

func (b *Bot) handleSeatPicked(ctx context.Context, chatID, userID int64, raw string) {
	seatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}
	st := b.getSession(ctx, userID)
	if !st.Active() || st.Step != session.StepPickSeat {
		return
	}
	if st.Flow.IsAdmin() && !b.requireAdmin(ctx, chatID, userID) {
		b.clearSession(ctx, userID)
		return
	}

	// Keyboards only offer seeded seats; a forged callback is not one.
	total, err := b.db.CountSeats(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to count seats")
		b.reply(ctx, chatID, "Что-то пошло не так, попробуйте позже.")
		return
	}
	if seatID < 1 || seatID > int64(total) {
		b.reply(ctx, chatID, "Такого места нет. Выберите место из списка.")
		return
	}

	st.SeatID = seatID
	if !b.fsm.Advance(st, session.StepConfirm) {
		return
	}
	b.putSession(ctx, userID, st)

	var text string
	switch st.Flow {
	case session.FlowAdminRuleNew:
		text = fmt.Sprintf("Закрепить Место №%d по дням: %s?",
			seatID, models.Weekdays(st.Weekdays).Human())
	default:
		text = fmt.Sprintf("Бронируем Место №%d на %s?", seatID, models.DisplayDate(st.Date))
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = confirmKeyboard()
	b.sender.send(ctx, msg)
}

func (b *Bot) handleBookingPicked(ctx context.Context, chatID, userID int64, raw string) {
	bookingID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}
	st := b.getSession(ctx, userID)
	if !st.Active() || st.Step != session.StepPickBooking {
		return
	}
	if st.Flow.IsAdmin() && !b.requireAdmin(ctx, chatID, userID) {
		b.clearSession(ctx, userID)
		return
	}

	bk, err := b.db.GetBooking(ctx, bookingID)
	if err != nil {
		b.reply(ctx, chatID, "Бронь не найдена.")
		return
	}
	st.OldBookingID = bookingID

	switch st.Flow {
	case session.FlowCancel, session.FlowAdminCancel:
		if !b.fsm.Advance(st, session.StepConfirm) {
			return
		}
		b.putSession(ctx, userID, st)
		msg := tgbotapi.NewMessage(chatID,
			fmt.Sprintf("Отменить бронь: %s, Место №%d?", models.DisplayDate(bk.Date), bk.SeatID))
		msg.ReplyMarkup = yesNoKeyboard()
		b.sender.send(ctx, msg)
	case session.FlowChange, session.FlowAdminChange:
		if !b.fsm.Advance(st, session.StepPickDate) {
			return
		}
		b.putSession(ctx, userID, st)
		b.sendCalendar(ctx, chatID)
	}
}

func (b *Bot) handleWeekdayToggled(ctx context.Context, chatID, userID int64, messageID int, raw string) {
	st := b.getSession(ctx, userID)
	if !st.Active() || st.Step != session.StepPickWeekdays {
		return
	}
	if !b.requireAdmin(ctx, chatID, userID) {
		b.clearSession(ctx, userID)
		return
	}

	if raw == "done" {
		if len(st.Weekdays) == 0 {
			b.reply(ctx, chatID, "Выберите хотя бы один день недели.")
			return
		}
		if !b.fsm.Advance(st, session.StepPickSeat) {
			return
		}
		b.putSession(ctx, userID, st)
		b.sendRuleFreeSeats(ctx, chatID, models.Weekdays(st.Weekdays))
		return
	}

	day, err := strconv.Atoi(raw)
	if err != nil || day < 0 || day > 6 {
		return
	}
	st.Weekdays = models.Weekdays(st.Weekdays).Toggle(day)
	st.UpdatedAt = time.Now()
	b.putSession(ctx, userID, st)

	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID,
		weekdaysKeyboard(models.Weekdays(st.Weekdays)))
	b.sender.send(ctx, edit)
}

func (b *Bot) handleConfirm(ctx context.Context, chatID, userID int64, action string) {
	st := b.getSession(ctx, userID)

	switch action {
	case "no":
		b.clearSession(ctx, userID)
		b.reply(ctx, chatID, "Операция отменена.")
		b.sendMainMenu(ctx, chatID, userID)
		return
	case "retry":
		if !st.Active() || st.Step != session.StepConfirm {
			return
		}
		if !b.fsm.Advance(st, session.StepPickSeat) {
			return
		}
		b.putSession(ctx, userID, st)
		if st.Flow == session.FlowAdminRuleNew {
			b.sendRuleFreeSeats(ctx, chatID, models.Weekdays(st.Weekdays))
		} else {
			b.sendFreeSeats(ctx, chatID, st.Date)
		}
		return
	case "yes":
		if !st.Active() || st.Step != session.StepConfirm {
			return
		}
		b.executeFlow(ctx, chatID, userID, st)
		return
	}
}

func (b *Bot) executeFlow(ctx context.Context, chatID, userID int64, st *session.Session) {
	switch st.Flow {
	case session.FlowBook:
		_, err := b.bookings.Book(ctx, userID, st.SeatID, st.Date)
		b.finishBooking(ctx, chatID, userID, st, err)
	case session.FlowCancel:
		ok, err := b.bookings.Cancel(ctx, st.OldBookingID, userID)
		b.clearSession(ctx, userID)
		if err != nil || !ok {
			b.reply(ctx, chatID, "Не удалось отменить бронь. Возможно, она уже отменена.")
		} else {
			b.reply(ctx, chatID, "Бронь отменена. Место снова свободно.")
		}
		b.sendMainMenu(ctx, chatID, userID)
	case session.FlowChange:
		_, err := b.bookings.Change(ctx, userID, false, st.OldBookingID, st.SeatID, st.Date)
		b.finishBooking(ctx, chatID, userID, st, err)
	default:
		b.executeAdminFlow(ctx, chatID, userID, st)
	}
}

// finishBooking maps booking errors to replies. A busy seat keeps the
// flow alive so the user can pick another one.
func (b *Bot) finishBooking(ctx context.Context, chatID, userID int64, st *session.Session, err error) {
	switch {
	case err == nil:
		b.clearSession(ctx, userID)
		b.reply(ctx, chatID, fmt.Sprintf("Готово! Место №%d забронировано на %s.",
			st.SeatID, models.DisplayDate(st.Date)))
		b.sendMainMenu(ctx, chatID, userID)
	case errors.Is(err, database.ErrSeatTaken):
		st.Step = session.StepPickSeat
		b.putSession(ctx, userID, st)
		b.reply(ctx, chatID, "Это место уже заняли. Выберите другое.")
		b.sendFreeSeats(ctx, chatID, st.Date)
	case errors.Is(err, database.ErrSeatNotFound):
		st.Step = session.StepPickSeat
		b.putSession(ctx, userID, st)
		b.reply(ctx, chatID, "Такого места нет. Выберите место из списка.")
		b.sendFreeSeats(ctx, chatID, st.Date)
	case errors.Is(err, database.ErrUserHasBooking):
		b.clearSession(ctx, userID)
		b.reply(ctx, chatID, "У вас уже есть бронь на этот день.")
		b.sendMainMenu(ctx, chatID, userID)
	case errors.Is(err, service.ErrNotCancellable):
		b.clearSession(ctx, userID)
		b.reply(ctx, chatID, "Старая бронь уже отменена, начните заново.")
		b.sendMainMenu(ctx, chatID, userID)
	default:
		zerolog.Ctx(ctx).Error().Err(err).Msg("Booking failed")
		b.clearSession(ctx, userID)
		b.reply(ctx, chatID, "Что-то пошло не так, попробуйте позже.")
		b.sendMainMenu(ctx, chatID, userID)
	}
}

// handleFlowText feeds free text into the step that expects it.
func (b *Bot) handleFlowText(ctx context.Context, chatID, userID int64, text string) {
	st := b.getSession(ctx, userID)
	if !st.Active() {
		return
	}
	if st.Step == session.StepAskUsername {
		b.handleUsernameEntered(ctx, chatID, userID, st, text)
	}
}
