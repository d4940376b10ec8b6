// Package audit builds booking reports for administrators.
package audit

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/HRyska/seatbot/internal/models"
)

// BuildBookingReport renders all active bookings into an xlsx workbook
// and returns its bytes, ready to send as a document.
func BuildBookingReport(bookings []models.BookingWithUser) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Брони"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Дата", "Место", "Сотрудник", "Username", "Тип"}
	for i, col := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return nil, err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetCellStyle(sheet, "A1", "E1", style)
	}

	for i, b := range bookings {
		origin := "разовая"
		if b.IsRecurring() {
			origin = "постоянная"
		}
		row := []interface{}{
			models.DisplayDate(b.Date),
			fmt.Sprintf("Место №%d", b.SeatID),
			b.FirstName,
			b.Username,
			origin,
		}
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	return buf.Bytes(), nil
}
