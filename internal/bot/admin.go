package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/HRyska/seatbot/internal/audit"
	"github.com/HRyska/seatbot/internal/database"
	"github.com/HRyska/seatbot/internal/models"
	"github.com/HRyska/seatbot/internal/session"
)

func (b *Bot) sendAdminPanel(ctx context.Context, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Админ-панель:")
	msg.ReplyMarkup = adminPanelKeyboard
	b.sender.send(ctx, msg)
}

func (b *Bot) handleAdminAction(ctx context.Context, chatID, userID int64, action string) {
	switch action {
	case "list":
		b.handleAllBookings(ctx, chatID)
	case "export":
		b.handleExport(ctx, chatID)
	case "book":
		b.startAdminFlow(ctx, chatID, userID, session.FlowAdminBook,
			"Введите username сотрудника (например, @ivanov):")
	case "cancel":
		b.startAdminFlow(ctx, chatID, userID, session.FlowAdminCancel,
			"Введите username сотрудника, чью бронь нужно снять:")
	case "change":
		b.startAdminFlow(ctx, chatID, userID, session.FlowAdminChange,
			"Введите username сотрудника, чью бронь нужно поменять:")
	case "rule_new":
		b.startAdminFlow(ctx, chatID, userID, session.FlowAdminRuleNew,
			"Введите username сотрудника для постоянного места:")
	case "rule_drop":
		b.startRuleDropFlow(ctx, chatID, userID)
	case "cancel_all":
		b.putSession(ctx, userID, &session.Session{
			Flow: session.FlowAdminCancelAll, Step: session.StepConfirm, UpdatedAt: time.Now(),
		})
		msg := tgbotapi.NewMessage(chatID,
			"⚠️ Будут отменены ВСЕ активные брони и постоянные места. Продолжить?")
		msg.ReplyMarkup = yesNoKeyboard()
		b.sender.send(ctx, msg)
	case "grant":
		b.startAdminFlow(ctx, chatID, userID, session.FlowAdminGrant,
			"Введите username нового администратора:")
	case "revoke":
		b.startAdminFlow(ctx, chatID, userID, session.FlowAdminRevoke,
			"Введите username администратора, которого нужно убрать:")
	}
}

func (b *Bot) startAdminFlow(ctx context.Context, chatID, userID int64, flow session.Flow, prompt string) {
	b.putSession(ctx, userID, &session.Session{
		Flow: flow, Step: session.StepAskUsername, UpdatedAt: time.Now(),
	})
	b.reply(ctx, chatID, prompt)
}

func (b *Bot) handleAllBookings(ctx context.Context, chatID int64) {
	bookings, err := b.db.ListAllActiveBookings(ctx, models.DateKey(time.Now()))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to list all bookings")
		b.reply(ctx, chatID, "Не удалось загрузить брони.")
		return
	}
	if len(bookings) == 0 {
		b.reply(ctx, chatID, "Активных броней нет.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Все активные брони:\n")
	lastDate := ""
	for _, bk := range bookings {
		if bk.Date != lastDate {
			sb.WriteString(fmt.Sprintf("\n📅 %s\n", models.DisplayDate(bk.Date)))
			lastDate = bk.Date
		}
		sb.WriteString(fmt.Sprintf("  Место №%d — %s", bk.SeatID, bk.DisplayName()))
		if bk.IsRecurring() {
			sb.WriteString(" 🔁")
		}
		sb.WriteString("\n")
	}
	b.reply(ctx, chatID, sb.String())
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	bookings, err := b.db.ListAllActiveBookings(ctx, models.DateKey(time.Now()))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to list bookings for export")
		b.reply(ctx, chatID, "Не удалось подготовить выгрузку.")
		return
	}

	data, err := audit.BuildBookingReport(bookings)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to build report")
		b.reply(ctx, chatID, "Не удалось подготовить выгрузку.")
		return
	}

	name := fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("2006-01-02"))
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = "Выгрузка активных броней"
	b.sender.send(ctx, doc)
}

func (b *Bot) startRuleDropFlow(ctx context.Context, chatID, userID int64) {
	rules, err := b.db.ListActiveRules(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to list rules")
		b.reply(ctx, chatID, "Не удалось загрузить постоянные места.")
		return
	}
	if len(rules) == 0 {
		b.reply(ctx, chatID, "Постоянных мест нет.")
		return
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rules)+1)
	for _, r := range rules {
		owner := fmt.Sprintf("id%d", r.UserID)
		if u, err := b.db.GetUser(ctx, r.UserID); err == nil {
			owner = u.DisplayName()
		}
		label := fmt.Sprintf("Место №%d — %s (%s)", r.SeatID, owner, r.Weekdays.Human())
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("rule:%d", r.ID)),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("❌ Отменить", "confirm:no"),
	})

	b.putSession(ctx, userID, &session.Session{
		Flow: session.FlowAdminRuleDrop, Step: session.StepPickRule, UpdatedAt: time.Now(),
	})
	msg := tgbotapi.NewMessage(chatID, "Какое постоянное место убрать?")
	msg.ReplyMarkup = tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	b.sender.send(ctx, msg)
}

func (b *Bot) handleRulePicked(ctx context.Context, chatID, userID int64, raw string) {
	ruleID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}
	st := b.getSession(ctx, userID)
	if st.Flow != session.FlowAdminRuleDrop || st.Step != session.StepPickRule {
		return
	}
	if !b.requireAdmin(ctx, chatID, userID) {
		b.clearSession(ctx, userID)
		return
	}

	st.RuleID = ruleID
	if !b.fsm.Advance(st, session.StepConfirm) {
		return
	}
	b.putSession(ctx, userID, st)
	msg := tgbotapi.NewMessage(chatID,
		"Убрать постоянное место? Будущие брони по нему будут отменены.")
	msg.ReplyMarkup = yesNoKeyboard()
	b.sender.send(ctx, msg)
}

// resolveEmployee accepts either a raw telegram id or a @username.
func (b *Bot) resolveEmployee(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return b.db.GetUser(ctx, id)
	}
	return b.db.FindUserByUsername(ctx, identifier)
}

func (b *Bot) handleUsernameEntered(ctx context.Context, chatID, userID int64, st *session.Session, text string) {
	// Admin rights are re-checked on every step, not only on entry.
	if !b.requireAdmin(ctx, chatID, userID) {
		b.clearSession(ctx, userID)
		return
	}

	target, err := b.resolveEmployee(ctx, text)
	if errors.Is(err, database.ErrUserNotFound) {
		b.reply(ctx, chatID, "Сотрудник не найден. Он должен хотя бы раз написать боту.")
		return
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to find user")
		b.reply(ctx, chatID, "Не удалось найти сотрудника, попробуйте позже.")
		return
	}
	st.TargetUserID = target.TelegramID

	switch st.Flow {
	case session.FlowAdminBook:
		if !b.fsm.Advance(st, session.StepPickDate) {
			return
		}
		b.putSession(ctx, userID, st)
		b.sendCalendar(ctx, chatID)
	case session.FlowAdminCancel, session.FlowAdminChange:
		bookings, err := b.db.ListUserBookings(ctx, target.TelegramID, models.DateKey(time.Now()))
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to list target bookings")
			b.reply(ctx, chatID, "Не удалось загрузить брони сотрудника.")
			return
		}
		if len(bookings) == 0 {
			b.clearSession(ctx, userID)
			b.reply(ctx, chatID, fmt.Sprintf("У %s нет активных броней.", target.DisplayName()))
			return
		}
		if !b.fsm.Advance(st, session.StepPickBooking) {
			return
		}
		b.putSession(ctx, userID, st)
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Брони %s:", target.DisplayName()))
		msg.ReplyMarkup = bookingsKeyboard(bookings)
		b.sender.send(ctx, msg)
	case session.FlowAdminRuleNew:
		if !b.fsm.Advance(st, session.StepPickWeekdays) {
			return
		}
		b.putSession(ctx, userID, st)
		msg := tgbotapi.NewMessage(chatID, "Отметьте дни недели:")
		msg.ReplyMarkup = weekdaysKeyboard(nil)
		b.sender.send(ctx, msg)
	case session.FlowAdminGrant:
		b.clearSession(ctx, userID)
		if err := b.db.AddAdmin(ctx, target.TelegramID, userID); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to add admin")
			b.reply(ctx, chatID, "Не удалось добавить администратора.")
			return
		}
		b.reply(ctx, chatID, fmt.Sprintf("%s теперь администратор.", target.DisplayName()))
	case session.FlowAdminRevoke:
		b.clearSession(ctx, userID)
		if b.cfg.IsSeedAdmin(target.TelegramID) {
			b.reply(ctx, chatID, "Этого администратора нельзя убрать.")
			return
		}
		ok, err := b.db.RemoveAdmin(ctx, target.TelegramID)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to remove admin")
			b.reply(ctx, chatID, "Не удалось убрать администратора.")
			return
		}
		if !ok {
			b.reply(ctx, chatID, fmt.Sprintf("%s не администратор.", target.DisplayName()))
			return
		}
		b.reply(ctx, chatID, fmt.Sprintf("%s больше не администратор.", target.DisplayName()))
	}
}

// sendRuleFreeSeats shows seats with no active rule overlapping the
// chosen weekdays. One-off bookings on those seats are fine; the
// expander simply skips occupied dates.
func (b *Bot) sendRuleFreeSeats(ctx context.Context, chatID int64, weekdays models.Weekdays) {
	rules, err := b.db.ListActiveRules(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to list rules")
		b.reply(ctx, chatID, "Не удалось проверить места.")
		return
	}
	total, err := b.db.CountSeats(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to count seats")
		b.reply(ctx, chatID, "Не удалось проверить места.")
		return
	}

	blocked := make(map[int64]bool)
	for _, r := range rules {
		if r.Weekdays.Overlaps(weekdays) {
			blocked[r.SeatID] = true
		}
	}

	free := make([]int64, 0, total)
	for id := int64(1); id <= int64(total); id++ {
		if !blocked[id] {
			free = append(free, id)
		}
	}
	if len(free) == 0 {
		b.reply(ctx, chatID, "Все места уже закреплены на эти дни.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, "Выберите место:")
	msg.ReplyMarkup = seatsKeyboard(free)
	b.sender.send(ctx, msg)
}

func (b *Bot) executeAdminFlow(ctx context.Context, chatID, userID int64, st *session.Session) {
	if !b.requireAdmin(ctx, chatID, userID) {
		b.clearSession(ctx, userID)
		return
	}

	switch st.Flow {
	case session.FlowAdminBook:
		_, err := b.bookings.BookForUser(ctx, userID, st.TargetUserID, st.SeatID, st.Date)
		b.finishBooking(ctx, chatID, userID, st, err)
	case session.FlowAdminCancel:
		ok, err := b.bookings.CancelAsAdmin(ctx, userID, st.OldBookingID)
		b.clearSession(ctx, userID)
		if err != nil || !ok {
			b.reply(ctx, chatID, "Не удалось отменить бронь. Возможно, она уже отменена.")
		} else {
			b.reply(ctx, chatID, "Бронь сотрудника отменена.")
		}
	case session.FlowAdminChange:
		_, err := b.bookings.Change(ctx, userID, true, st.OldBookingID, st.SeatID, st.Date)
		b.finishBooking(ctx, chatID, userID, st, err)
	case session.FlowAdminRuleNew:
		_, err := b.recurring.CreateRule(ctx, userID, st.TargetUserID, st.SeatID, models.Weekdays(st.Weekdays))
		b.clearSession(ctx, userID)
		switch {
		case errors.Is(err, database.ErrRuleConflict):
			b.reply(ctx, chatID, "Конфликт: место уже закреплено на эти дни или за этим сотрудником.")
		case err != nil:
			zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to create rule")
			b.reply(ctx, chatID, "Не удалось закрепить место.")
		default:
			b.reply(ctx, chatID, "Постоянное место закреплено и брони созданы.")
		}
	case session.FlowAdminRuleDrop:
		err := b.recurring.DeleteRule(ctx, userID, st.RuleID)
		b.clearSession(ctx, userID)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to delete rule")
			b.reply(ctx, chatID, "Не удалось убрать постоянное место.")
		} else {
			b.reply(ctx, chatID, "Постоянное место убрано, будущие брони отменены.")
		}
	case session.FlowAdminCancelAll:
		count, err := b.bookings.CancelAll(ctx, userID)
		b.clearSession(ctx, userID)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to cancel all")
			b.reply(ctx, chatID, "Не удалось отменить брони.")
		} else {
			b.reply(ctx, chatID, fmt.Sprintf("Отменено записей: %d.", count))
		}
	}
}
