package bot

import (
	"fmt"
	"strconv"
	"time"

	"deskbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data prefixes. Telegram limits callback data to 64 bytes.
const (
	cbNoop          = "noop"
	cbRoom          = "room:"
	cbDate          = "date:"
	cbDesk          = "desk:"
	cbPage          = "page:"
	cbRandom        = "rnd:"
	cbCancelBooking = "xb:"
	cbBack          = "back:"
	cbConfirm       = "confirm"
	cbAbort         = "abort"
)

const (
	desksPerPage = 8
	desksPerRow  = 4
	datesPerRow  = 2
)

func roomsKeyboard(rooms []models.Room) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rooms)+1)
	for _, r := range rooms {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(r.Name, cbRoom+strconv.FormatInt(r.ID, 10)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Cancel", cbAbort),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// datesKeyboard lays out date buttons two per row. Labels carry the weekday,
// callback data only the date in the input format.
func datesKeyboard(dates []time.Time, label, value func(time.Time) string, prefix, back string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, d := range dates {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label(d), prefix+value(d)))
		if len(row) == datesPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, navRow(back))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// desksKeyboard renders one page of desk buttons and reports the clamped page.
func desksKeyboard(desks []string, page int) (tgbotapi.InlineKeyboardMarkup, int) {
	pages := (len(desks) + desksPerPage - 1) / desksPerPage
	if pages == 0 {
		pages = 1
	}
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}
	start := page * desksPerPage
	end := start + desksPerPage
	if end > len(desks) {
		end = len(desks)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, name := range desks[start:end] {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(name, cbDesk+name))
		if len(row) == desksPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	if pages > 1 {
		var nav []tgbotapi.InlineKeyboardButton
		if page > 0 {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Prev", fmt.Sprintf("%s%d", cbPage, page-1)))
		}
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d/%d", page+1, pages), cbNoop))
		if page < pages-1 {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next", fmt.Sprintf("%s%d", cbPage, page+1)))
		}
		rows = append(rows, nav)
	}
	rows = append(rows, navRow("date"))
	return tgbotapi.NewInlineKeyboardMarkup(rows...), page
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Confirm", cbConfirm),
		),
		navRow("desk"),
	)
}

func backKeyboard(back string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(navRow(back))
}

func myBookingsKeyboard(list []models.BookingView) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(list))
	for _, v := range list {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("Cancel #%d %s %s", v.ID, v.Date.Format(models.DateKey), v.DeskName),
				cbCancelBooking+strconv.FormatInt(v.ID, 10),
			),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// navRow is a Back button to the given step plus Cancel. An empty step omits Back.
func navRow(back string) []tgbotapi.InlineKeyboardButton {
	row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
	if back != "" {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Back", cbBack+back))
	}
	return append(row, tgbotapi.NewInlineKeyboardButtonData("Cancel", cbAbort))
}
