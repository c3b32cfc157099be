package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"deskbot/internal/admin"
	"deskbot/internal/booking"
	"deskbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Dialog state keys.
const (
	keyRoom   = "room"
	keyRoomID = "room_id"
	keyDate   = "date"
	keyDesk   = "desk"
	keyPage   = "page"
)

// handleUserCommand reports whether the command was recognised.
func (b *Bot) handleUserCommand(ctx context.Context, msg *tgbotapi.Message) bool {
	chatID, userID := msg.Chat.ID, msg.From.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		_ = b.state.ClearUserState(ctx, userID)
		name := args
		if name == "" {
			name = defaultDisplayName(msg.From)
		}
		b.register(ctx, chatID, userID, name)
	case "help":
		isAdmin := b.access.AdminMiddleware(ctx, userID) == nil
		b.reply(chatID, helpText(isAdmin))
	case "book":
		b.startBooking(ctx, chatID, userID)
	case "random":
		b.startRandom(ctx, chatID, userID)
	case "my":
		b.showMyBookings(ctx, chatID, userID)
	case "cancel":
		if args == "" {
			_ = b.state.ClearUserState(ctx, userID)
			b.reply(chatID, textDialogCancelled)
			return true
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(args, "#"), 10, 64)
		if err != nil {
			b.reply(chatID, "Usage: /cancel <booking id>")
			return true
		}
		b.cancelBooking(ctx, chatID, 0, userID, id)
	case "ooo":
		b.setOutOfOffice(ctx, chatID, userID, args)
	case "plan":
		b.showFloorPlan(ctx, chatID, args)
	default:
		return false
	}
	return true
}

func defaultDisplayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (b *Bot) register(ctx context.Context, chatID, userID int64, name string) {
	u, err := b.admin.Register(ctx, userID, name)
	switch {
	case err == nil:
		_ = b.state.ClearUserState(ctx, userID)
		b.reply(chatID, welcomeText(u))
	case errors.Is(err, admin.ErrDuplicate), errors.Is(err, admin.ErrInvalidInput):
		_ = b.state.SetUserState(ctx, userID, models.StepAwaitName, nil)
		b.reply(chatID, errorText(err)+" "+textAskName)
	default:
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Register failed")
		b.reply(chatID, textInternalError)
	}
}

func (b *Bot) startBooking(ctx context.Context, chatID, userID int64) {
	rooms, err := b.resolver.ListRooms(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("List rooms failed")
		b.reply(chatID, textInternalError)
		return
	}
	if len(rooms) == 0 {
		b.reply(chatID, textNoRooms)
		return
	}
	if err := b.state.SetUserState(ctx, userID, models.StepChooseRoom, nil); err != nil {
		b.reply(chatID, textInternalError)
		return
	}
	b.replyWithMarkup(chatID, textChooseRoom, roomsKeyboard(rooms))
}

func (b *Bot) showRooms(ctx context.Context, chatID int64, messageID int, userID int64) {
	rooms, err := b.resolver.ListRooms(ctx)
	if err != nil || len(rooms) == 0 {
		b.edit(chatID, messageID, textNoRooms, nil)
		return
	}
	_ = b.state.SetUserState(ctx, userID, models.StepChooseRoom, nil)
	kb := roomsKeyboard(rooms)
	b.edit(chatID, messageID, textChooseRoom, &kb)
}

func (b *Bot) handleRoomCallback(ctx context.Context, chatID int64, messageID int, userID int64, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		b.edit(chatID, messageID, textRestart, nil)
		return
	}
	rooms, err := b.resolver.ListRooms(ctx)
	if err != nil {
		b.edit(chatID, messageID, textInternalError, nil)
		return
	}
	var room *models.Room
	for i := range rooms {
		if rooms[i].ID == id {
			room = &rooms[i]
			break
		}
	}
	if room == nil {
		b.edit(chatID, messageID, "This room is no longer open for booking.", nil)
		return
	}

	err = b.state.SetUserState(ctx, userID, models.StepChooseDate, map[string]interface{}{
		keyRoom:   room.Name,
		keyRoomID: room.ID,
	})
	if err != nil {
		b.edit(chatID, messageID, textInternalError, nil)
		return
	}
	b.showDates(chatID, messageID, room.Name)
	if room.FloorPlan != "" {
		b.sendFloorPlan(chatID, room)
	}
}

func (b *Bot) showDates(chatID int64, messageID int, room string) {
	dates := booking.AvailableDates(b.resolver.Today(), b.opts.DateDays)
	kb := datesKeyboard(dates, b.resolver.FormatDate, b.resolver.InputDate, cbDate, "room")
	b.edit(chatID, messageID, chooseDateText(room), &kb)
}

func (b *Bot) handleDateCallback(ctx context.Context, chatID int64, messageID int, userID int64, date string) {
	st, err := b.state.GetUserState(ctx, userID)
	if err != nil || st.GetString(keyRoom) == "" {
		b.edit(chatID, messageID, textRestart, nil)
		return
	}
	st.TempData[keyDate] = date
	st.TempData[keyPage] = 0
	if err := b.state.SetUserState(ctx, userID, models.StepChooseDesk, st.TempData); err != nil {
		b.edit(chatID, messageID, textInternalError, nil)
		return
	}
	b.showDesks(ctx, chatID, messageID, userID, st.GetString(keyRoom), date, 0)
}

func (b *Bot) handlePageCallback(ctx context.Context, chatID int64, messageID int, userID int64, pageStr string) {
	page, err := strconv.Atoi(pageStr)
	if err != nil {
		return
	}
	st, err := b.state.GetUserState(ctx, userID)
	if err != nil || st.GetString(keyDate) == "" {
		b.edit(chatID, messageID, textRestart, nil)
		return
	}
	_ = b.state.UpdateUserStateData(ctx, userID, "", keyPage, page)
	b.showDesks(ctx, chatID, messageID, userID, st.GetString(keyRoom), st.GetString(keyDate), page)
}

// showDesks resolves availability fresh on every render so the list
// reflects bookings made since the previous page.
func (b *Bot) showDesks(ctx context.Context, chatID int64, messageID int, userID int64, room, date string, page int) {
	desks, err := b.resolver.ResolveAvailableDesks(ctx, room, date, userID, b.opts.Mode)
	if err != nil {
		b.replyError(ctx, chatID, messageID, err)
		return
	}
	label := b.dateLabel(date)
	if len(desks) == 0 {
		kb := backKeyboard("date")
		b.edit(chatID, messageID, noDesksText(room, label), &kb)
		return
	}
	kb, _ := desksKeyboard(desks, page)
	b.edit(chatID, messageID, chooseDeskText(room, label, len(desks)), &kb)
}

func (b *Bot) handleDeskCallback(ctx context.Context, chatID int64, messageID int, userID int64, desk string) {
	st, err := b.state.GetUserState(ctx, userID)
	if err != nil || st.GetString(keyDate) == "" {
		b.edit(chatID, messageID, textRestart, nil)
		return
	}
	if err := b.state.UpdateUserStateData(ctx, userID, models.StepConfirm, keyDesk, desk); err != nil {
		b.edit(chatID, messageID, textInternalError, nil)
		return
	}
	kb := confirmKeyboard()
	b.edit(chatID, messageID, confirmText(st.GetString(keyRoom), b.dateLabel(st.GetString(keyDate)), desk), &kb)
}

func (b *Bot) handleConfirmCallback(ctx context.Context, chatID int64, messageID int, userID int64) {
	st, err := b.state.GetUserState(ctx, userID)
	if err != nil || st.CurrentStep() != models.StepConfirm {
		b.edit(chatID, messageID, textRestart, nil)
		return
	}
	conf, err := b.writer.Book(ctx, booking.BookRequest{
		UserID:   userID,
		DeskName: st.GetString(keyDesk),
		Date:     st.GetString(keyDate),
		RoomName: st.GetString(keyRoom),
	})
	if err != nil {
		if errors.Is(err, booking.ErrAlreadyBooked) || errors.Is(err, booking.ErrDeskUnavailable) {
			// Offer the refreshed list so the user can pick again.
			_ = b.state.SetUserState(ctx, userID, models.StepChooseDesk, st.TempData)
			kb := backKeyboard("desk")
			b.edit(chatID, messageID, errorText(err), &kb)
			return
		}
		_ = b.state.ClearUserState(ctx, userID)
		b.replyError(ctx, chatID, messageID, err)
		return
	}
	_ = b.state.ClearUserState(ctx, userID)
	b.edit(chatID, messageID, bookedText(conf, b.resolver.FormatDate(conf.Date)), nil)
}

func (b *Bot) handleBack(ctx context.Context, chatID int64, messageID int, userID int64, step string) {
	st, err := b.state.GetUserState(ctx, userID)
	if err != nil {
		b.edit(chatID, messageID, textInternalError, nil)
		return
	}
	switch step {
	case "date":
		if st.GetString(keyRoom) == "" {
			b.showRooms(ctx, chatID, messageID, userID)
			return
		}
		_ = b.state.SetUserState(ctx, userID, models.StepChooseDate, map[string]interface{}{
			keyRoom:   st.GetString(keyRoom),
			keyRoomID: st.GetInt64(keyRoomID),
		})
		b.showDates(chatID, messageID, st.GetString(keyRoom))
	case "desk":
		if st.GetString(keyDate) == "" {
			b.showRooms(ctx, chatID, messageID, userID)
			return
		}
		_ = b.state.SetUserState(ctx, userID, models.StepChooseDesk, st.TempData)
		b.showDesks(ctx, chatID, messageID, userID, st.GetString(keyRoom), st.GetString(keyDate), int(st.GetInt64(keyPage)))
	default:
		b.showRooms(ctx, chatID, messageID, userID)
	}
}

func (b *Bot) startRandom(ctx context.Context, chatID, userID int64) {
	if err := b.state.SetUserState(ctx, userID, models.StepRandomDate, nil); err != nil {
		b.reply(chatID, textInternalError)
		return
	}
	dates := booking.AvailableDates(b.resolver.Today(), b.opts.DateDays)
	b.replyWithMarkup(chatID, textChooseRandom, datesKeyboard(dates, b.resolver.FormatDate, b.resolver.InputDate, cbRandom, ""))
}

func (b *Bot) handleRandomCallback(ctx context.Context, chatID int64, messageID int, userID int64, date string) {
	_ = b.state.ClearUserState(ctx, userID)
	conf, err := b.writer.BookRandom(ctx, date, userID, b.opts.Mode)
	if err != nil {
		b.replyError(ctx, chatID, messageID, err)
		return
	}
	b.edit(chatID, messageID, bookedText(conf, b.resolver.FormatDate(conf.Date)), nil)
}

func (b *Bot) showMyBookings(ctx context.Context, chatID, userID int64) {
	list, err := b.writer.ListUserBookings(ctx, userID, b.resolver.Today())
	if err != nil {
		b.replyError(ctx, chatID, 0, err)
		return
	}
	if len(list) == 0 {
		b.reply(chatID, textNoBookings)
		return
	}
	b.replyWithMarkup(chatID, myBookingsText(list, b.resolver.FormatDate), myBookingsKeyboard(list))
}

func (b *Bot) handleCancelBookingCallback(ctx context.Context, chatID int64, messageID int, userID int64, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return
	}
	b.cancelBooking(ctx, chatID, messageID, userID, id)
}

func (b *Bot) cancelBooking(ctx context.Context, chatID int64, messageID int, userID, bookingID int64) {
	conf, err := b.writer.Cancel(ctx, userID, bookingID)
	if err != nil {
		b.replyError(ctx, chatID, messageID, err)
		return
	}
	b.edit(chatID, messageID, cancelledText(conf), nil)
}

func (b *Bot) setOutOfOffice(ctx context.Context, chatID, userID int64, arg string) {
	var ooo bool
	switch strings.ToLower(arg) {
	case "on":
		ooo = true
	case "off":
	default:
		b.reply(chatID, "Usage: /ooo on|off")
		return
	}
	if err := b.admin.SetOutOfOffice(ctx, userID, ooo); err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			b.reply(chatID, "Register first with /start.")
			return
		}
		b.replyError(ctx, chatID, 0, err)
		return
	}
	b.reply(chatID, "Out of office: "+onOff(ooo)+".")
}

func (b *Bot) showFloorPlan(ctx context.Context, chatID int64, roomName string) {
	rooms, err := b.resolver.ListRooms(ctx)
	if err != nil {
		b.reply(chatID, textInternalError)
		return
	}
	for i := range rooms {
		if strings.EqualFold(rooms[i].Name, roomName) {
			if rooms[i].FloorPlan == "" {
				b.reply(chatID, "No floor plan for "+rooms[i].Name+".")
				return
			}
			b.sendFloorPlan(chatID, &rooms[i])
			return
		}
	}
	b.reply(chatID, errorText(booking.ErrRoomNotFound))
}

// sendFloorPlan sends the plan as a photo. Plans are URLs or Telegram file ids.
func (b *Bot) sendFloorPlan(chatID int64, room *models.Room) {
	var file tgbotapi.RequestFileData
	if strings.HasPrefix(room.FloorPlan, "http://") || strings.HasPrefix(room.FloorPlan, "https://") {
		file = tgbotapi.FileURL(room.FloorPlan)
	} else {
		file = tgbotapi.FileID(room.FloorPlan)
	}
	photo := tgbotapi.NewPhoto(chatID, file)
	photo.Caption = "Floor plan: " + room.Name
	if _, err := b.tg.Send(photo); err != nil {
		b.logger.Warn().Err(err).Str("room", room.Name).Msg("Send floor plan failed")
	}
}

func (b *Bot) dateLabel(input string) string {
	d, err := b.resolver.ParseDate(input)
	if err != nil {
		return input
	}
	return b.resolver.FormatDate(d)
}

// replyError logs unexpected errors and sends the mapped text.
func (b *Bot) replyError(ctx context.Context, chatID int64, messageID int, err error) {
	text := errorText(err)
	if text == textInternalError {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Request failed")
	}
	b.edit(chatID, messageID, text, nil)
}
