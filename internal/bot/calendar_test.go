package bot

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCalendar(t *testing.T) {
	today := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	kb := generateCalendar(2026, 9, today)

	require.GreaterOrEqual(t, len(kb.InlineKeyboard), 4)

	t.Run("HeaderNavigatesMonths", func(t *testing.T) {
		header := kb.InlineKeyboard[0]
		require.Len(t, header, 3)
		assert.Equal(t, "cal:2026:8", *header[0].CallbackData)
		assert.Equal(t, "Сентябрь 2026", header[1].Text)
		assert.Equal(t, "cal:2026:10", *header[2].CallbackData)
	})

	t.Run("DecemberWrapsYear", func(t *testing.T) {
		dec := generateCalendar(2026, 12, today)
		header := dec.InlineKeyboard[0]
		assert.Equal(t, "cal:2027:1", *header[2].CallbackData)
	})

	var pastInert, futureActive bool
	for _, row := range kb.InlineKeyboard[2:] {
		for _, btn := range row {
			if btn.CallbackData == nil {
				continue
			}
			switch *btn.CallbackData {
			case "noop":
				if btn.Text == "·" {
					pastInert = true
				}
			case "date:2026-09-15":
				futureActive = true
				assert.Equal(t, "15", btn.Text)
			}
		}
	}
	assert.True(t, pastInert, "days before today render inert")
	assert.True(t, futureActive, "future days emit date callbacks")

	t.Run("TodaySelectable", func(t *testing.T) {
		found := false
		want := fmt.Sprintf("date:%s", today.Format("2006-01-02"))
		for _, row := range kb.InlineKeyboard {
			for _, btn := range row {
				if btn.CallbackData != nil && *btn.CallbackData == want {
					found = true
				}
			}
		}
		assert.True(t, found)
	})
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, daysIn(time.February, 2024))
	assert.Equal(t, 28, daysIn(time.February, 2026))
	assert.Equal(t, 30, daysIn(time.September, 2026))
	assert.Equal(t, 31, daysIn(time.December, 2026))
}
