package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/HRyska/seatbot/internal/models"
)

const (
	btnBook          = "🪑 Забронировать место"
	btnMyBookings    = "📅 Мои брони"
	btnCancelBooking = "❌ Отменить бронь"
	btnChangeBooking = "🔁 Поменять бронь"
	btnOfficeMap     = "🗺 Карта офиса"
	btnAdminPanel    = "⚙️ Админ-панель"
)

const helpText = `Доступные команды:
/book — забронировать место
/my_bookings — мои брони
/map — карта офиса
/cancel — прервать текущую операцию
/help — эта справка`

var mainMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnBook),
		tgbotapi.NewKeyboardButton(btnMyBookings),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnCancelBooking),
		tgbotapi.NewKeyboardButton(btnChangeBooking),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnOfficeMap),
	),
)

var adminMainMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnBook),
		tgbotapi.NewKeyboardButton(btnMyBookings),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnCancelBooking),
		tgbotapi.NewKeyboardButton(btnChangeBooking),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnOfficeMap),
		tgbotapi.NewKeyboardButton(btnAdminPanel),
	),
)

// seatsKeyboard lays free seats out in rows of four.
func seatsKeyboard(seatIDs []int64) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0)
	var row []tgbotapi.InlineKeyboardButton
	for _, id := range seatIDs {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("Место №%d", id), fmt.Sprintf("seat:%d", id),
		))
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", "confirm:no"),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// bookingsKeyboard lists the user's bookings one per row.
func bookingsKeyboard(bookings []models.Booking) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(bookings)+1)
	for _, bk := range bookings {
		label := fmt.Sprintf("%s — Место №%d", models.DisplayDate(bk.Date), bk.SeatID)
		if bk.IsRecurring() {
			label += " 🔁"
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("bk:%d", bk.ID)),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", "confirm:no"),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// confirmKeyboard offers confirm, pick another seat, or abort.
func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ ОК", "confirm:yes"),
			tgbotapi.NewInlineKeyboardButtonData("🔁 Поменять", "confirm:retry"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отменить", "confirm:no"),
		),
	)
}

func yesNoKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Да", "confirm:yes"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Нет", "confirm:no"),
		),
	)
}

// weekdaysKeyboard renders a toggle row per weekday, selected ones
// marked, with a done button once at least one is picked.
func weekdaysKeyboard(selected models.Weekdays) tgbotapi.InlineKeyboardMarkup {
	names := []string{"Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота", "Воскресенье"}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 8)
	for i, name := range names {
		label := name
		if selected.Contains(i) {
			label = "✅ " + name
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("wd:%d", i)),
		})
	}
	if len(selected) > 0 {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("➡️ Готово", "wd:done"),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("❌ Отменить", "confirm:no"),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

var adminPanelKeyboard = tgbotapi.NewInlineKeyboardMarkup(
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📋 Все брони", "adm:list"),
		tgbotapi.NewInlineKeyboardButtonData("📊 Выгрузка в Excel", "adm:export"),
	),
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ Бронь за сотрудника", "adm:book"),
		tgbotapi.NewInlineKeyboardButtonData("➖ Снять бронь", "adm:cancel"),
	),
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔁 Поменять бронь", "adm:change"),
		tgbotapi.NewInlineKeyboardButtonData("🧹 Отменить все брони", "adm:cancel_all"),
	),
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📌 Постоянное место", "adm:rule_new"),
		tgbotapi.NewInlineKeyboardButtonData("🗑 Убрать постоянное", "adm:rule_drop"),
	),
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("👑 Добавить админа", "adm:grant"),
		tgbotapi.NewInlineKeyboardButtonData("🚫 Убрать админа", "adm:revoke"),
	),
)
