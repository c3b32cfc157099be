package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"deskbot/internal/admin"
	"deskbot/internal/booking"
	"deskbot/internal/database"
	"deskbot/internal/models"
	"deskbot/internal/repository"
	"deskbot/internal/service"
	"deskbot/shared/access"
	"deskbot/shared/reminders"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID = int64(100)

type fakeTelegram struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	sendErr error
	updates chan tgbotapi.Update
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, f.sendErr
}

func (f *fakeTelegram) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeTelegram) StopReceivingUpdates() {}

func (f *fakeTelegram) SelfUser() tgbotapi.User {
	return tgbotapi.User{UserName: "deskbot_test"}
}

// last returns the text and inline keyboard of the most recent text message or edit.
func (f *fakeTelegram) last(t *testing.T) (string, *tgbotapi.InlineKeyboardMarkup) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		switch m := f.sent[i].(type) {
		case tgbotapi.MessageConfig:
			kb, _ := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
			return m.Text, &kb
		case tgbotapi.EditMessageTextConfig:
			return m.Text, m.ReplyMarkup
		}
	}
	t.Fatal("no text message sent")
	return "", nil
}

func callbackData(kb *tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	if kb == nil {
		return out
	}
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}

type testEnv struct {
	bot *Bot
	tg  *fakeTelegram
	db  *database.DB
	w   *booking.Writer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "bot.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := func() time.Time { return time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC) }
	resolver := booking.NewResolver(db, booking.Options{Location: time.UTC, Now: now})
	writer := booking.NewWriter(db, resolver, nil, 14, &logger)

	tg := &fakeTelegram{updates: make(chan tgbotapi.Update)}
	b, err := NewWithTelegramClient(tg, Deps{
		Resolver: resolver,
		Writer:   writer,
		Admin:    admin.NewService(db, logger),
		Access:   access.NewService(db, []int64{adminID}, logger),
		State:    service.NewStateService(repository.NewMemoryStateRepository(time.Hour), logger),
	}, Options{DateDays: 5}, &logger)
	require.NoError(t, err)
	return &testEnv{bot: b, tg: tg, db: db, w: writer}
}

func (e *testEnv) seedOffice(t *testing.T) *models.Room {
	t.Helper()
	ctx := context.Background()
	room, err := e.db.CreateRoom(ctx, "A", true)
	require.NoError(t, err)
	for _, name := range []string{"A1", "A2"} {
		_, err := e.db.CreateDesk(ctx, room.ID, name, true)
		require.NoError(t, err)
	}
	return room
}

func (e *testEnv) command(userID int64, text string) {
	n := strings.IndexByte(text, ' ')
	if n < 0 {
		n = len(text)
	}
	e.bot.handleUpdate(context.Background(), &tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, UserName: fmt.Sprintf("user%d", userID)},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}},
	}})
}

func (e *testEnv) text(userID int64, text string) {
	e.bot.handleUpdate(context.Background(), &tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}})
}

func (e *testEnv) callback(userID int64, data string) {
	e.bot.handleUpdate(context.Background(), &tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}})
}

func TestBot_BookingDialog(t *testing.T) {
	env := newTestEnv(t)
	room := env.seedOffice(t)

	env.command(1, "/start alice")
	text, _ := env.tg.last(t)
	assert.Contains(t, text, "Welcome, alice")

	env.command(1, "/book")
	text, kb := env.tg.last(t)
	assert.Equal(t, textChooseRoom, text)
	assert.Contains(t, callbackData(kb), fmt.Sprintf("room:%d", room.ID))

	env.callback(1, fmt.Sprintf("room:%d", room.ID))
	text, kb = env.tg.last(t)
	assert.Equal(t, chooseDateText("A"), text)
	assert.Contains(t, callbackData(kb), "date:2025-01-10")

	env.callback(1, "date:2025-01-10")
	text, kb = env.tg.last(t)
	assert.Contains(t, text, "2 free desk(s)")
	assert.Contains(t, callbackData(kb), "desk:A1")
	assert.Contains(t, callbackData(kb), "desk:A2")

	env.callback(1, "desk:A1")
	text, kb = env.tg.last(t)
	assert.Equal(t, "Book desk A1 in A on 2025-01-10 (Fri)?", text)
	assert.Contains(t, callbackData(kb), cbConfirm)

	env.callback(1, cbConfirm)
	text, _ = env.tg.last(t)
	assert.Contains(t, text, "Booked desk A1 in A on 2025-01-10 (Fri)")

	list, err := env.w.ListUserBookings(context.Background(), 1, time.Time{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A1", list[0].DeskName)

	// A1 is gone from the next resolution.
	env.command(2, "/start bob")
	env.command(2, "/book")
	env.callback(2, fmt.Sprintf("room:%d", room.ID))
	env.callback(2, "date:2025-01-10")
	_, kb = env.tg.last(t)
	assert.NotContains(t, callbackData(kb), "desk:A1")
	assert.Contains(t, callbackData(kb), "desk:A2")
}

func TestBot_ConfirmAfterDeskTaken(t *testing.T) {
	env := newTestEnv(t)
	room := env.seedOffice(t)
	ctx := context.Background()

	env.command(1, "/start alice")
	env.command(2, "/start bob")

	env.command(2, "/book")
	env.callback(2, fmt.Sprintf("room:%d", room.ID))
	env.callback(2, "date:2025-01-10")
	env.callback(2, "desk:A1")

	_, err := env.w.Book(ctx, booking.BookRequest{UserID: 1, DeskName: "A1", Date: "2025-01-10"})
	require.NoError(t, err)

	env.callback(2, cbConfirm)
	text, kb := env.tg.last(t)
	assert.Equal(t, errorText(booking.ErrAlreadyBooked), text)
	assert.Contains(t, callbackData(kb), "back:desk")

	env.callback(2, "back:desk")
	_, kb = env.tg.last(t)
	assert.Equal(t, []string{"desk:A2", "back:date", cbAbort}, callbackData(kb))
}

func TestBot_UnregisteredUserIsToldToRegister(t *testing.T) {
	env := newTestEnv(t)
	room := env.seedOffice(t)

	env.command(3, "/book")
	env.callback(3, fmt.Sprintf("room:%d", room.ID))
	env.callback(3, "date:2025-01-10")
	env.callback(3, "desk:A1")
	env.callback(3, cbConfirm)

	text, _ := env.tg.last(t)
	assert.Equal(t, "Register first with /start.", text)
}

func TestBot_ConfirmAfterDeskSwitchedOff(t *testing.T) {
	env := newTestEnv(t)
	room := env.seedOffice(t)

	env.command(1, "/start alice")
	env.command(1, "/book")
	env.callback(1, fmt.Sprintf("room:%d", room.ID))
	env.callback(1, "date:2025-01-10")
	env.callback(1, "desk:A1")

	env.command(adminID, "/desk_toggle A1")

	env.callback(1, cbConfirm)
	text, kb := env.tg.last(t)
	assert.Equal(t, errorText(booking.ErrDeskUnavailable), text)
	assert.Contains(t, callbackData(kb), "back:desk")

	env.callback(1, "back:desk")
	_, kb = env.tg.last(t)
	assert.Equal(t, []string{"desk:A2", "back:date", cbAbort}, callbackData(kb))
}

func TestBot_OfferedDatesStayWithinAdvanceLimit(t *testing.T) {
	env := newTestEnv(t)
	room := env.seedOffice(t)
	env.bot.opts.DateDays = 14

	env.command(1, "/start alice")
	env.command(1, "/book")
	env.callback(1, fmt.Sprintf("room:%d", room.ID))
	_, kb := env.tg.last(t)

	var offered []string
	for _, data := range callbackData(kb) {
		if strings.HasPrefix(data, "date:") {
			offered = append(offered, strings.TrimPrefix(data, "date:"))
		}
	}
	require.NotEmpty(t, offered)
	for _, d := range offered {
		_, err := env.w.Book(context.Background(), booking.BookRequest{UserID: 1, DeskName: "A1", Date: d})
		require.NoError(t, err, d)
	}
}

func TestBot_DuplicateNameAsksAgain(t *testing.T) {
	env := newTestEnv(t)

	env.command(1, "/start alice")
	env.command(2, "/start alice")
	text, _ := env.tg.last(t)
	assert.Contains(t, text, textAskName)

	env.text(2, "bob")
	text, _ = env.tg.last(t)
	assert.Contains(t, text, "Welcome, bob")
}

func TestBot_BannedUserRejected(t *testing.T) {
	env := newTestEnv(t)
	env.command(1, "/start alice")
	env.command(adminID, "/start boss")

	env.command(adminID, "/ban alice")
	text, _ := env.tg.last(t)
	assert.Equal(t, "alice banned.", text)

	env.command(1, "/book")
	text, _ = env.tg.last(t)
	assert.Equal(t, "Access to this bot has been revoked.", text)
}

func TestBot_AdminCommands(t *testing.T) {
	env := newTestEnv(t)
	env.command(1, "/start alice")
	env.command(2, "/start bob")

	env.command(1, "/add_room Blue")
	text, _ := env.tg.last(t)
	assert.Equal(t, "This command is available to admins only.", text)

	env.command(adminID, "/add_room Blue")
	text, _ = env.tg.last(t)
	assert.Equal(t, "Room Blue added.", text)

	env.command(adminID, "/add_desk Blue")
	text, _ = env.tg.last(t)
	assert.Equal(t, "Usage: /add_desk <room> <desk>", text)

	env.command(adminID, "/add_desk Blue B1")
	env.command(adminID, "/desk_toggle B1")
	env.command(adminID, "/rooms")
	text, _ = env.tg.last(t)
	assert.Equal(t, "Blue\n  B1 [off]", text)

	env.command(adminID, "/assign alice B1 fri")
	text, _ = env.tg.last(t)
	assert.Equal(t, "alice has desk B1 every Fri.", text)

	env.command(adminID, "/assign bob B1 fri")
	text, _ = env.tg.last(t)
	assert.Equal(t, errorText(admin.ErrDeskAssigned), text)

	env.command(adminID, "/assignments Blue")
	text, _ = env.tg.last(t)
	assert.Equal(t, "Fri: Blue / B1 - alice", text)

	env.command(adminID, "/team core")
	env.command(adminID, "/team_room core Blue")
	text, _ = env.tg.last(t)
	assert.Equal(t, "Team core now prefers Blue.", text)

	env.command(adminID, "/bookings 2025-01-10")
	text, _ = env.tg.last(t)
	assert.Equal(t, "No bookings on 2025-01-10 (Fri).", text)

	env.command(adminID, "/export")
	text, _ = env.tg.last(t)
	assert.Equal(t, "Export is not configured.", text)
}

func TestBot_CancelAndMyBookings(t *testing.T) {
	env := newTestEnv(t)
	env.seedOffice(t)
	ctx := context.Background()
	env.command(1, "/start alice")
	env.command(2, "/start bob")

	conf, err := env.w.Book(ctx, booking.BookRequest{UserID: 1, DeskName: "A2", Date: "2025-01-08"})
	require.NoError(t, err)

	env.command(1, "/my")
	text, kb := env.tg.last(t)
	assert.Contains(t, text, "2025-01-08 (Wed) - A, desk A2")
	assert.Equal(t, []string{fmt.Sprintf("xb:%d", conf.BookingID)}, callbackData(kb))

	env.command(2, fmt.Sprintf("/cancel %d", conf.BookingID))
	text, _ = env.tg.last(t)
	assert.Equal(t, errorText(booking.ErrForbidden), text)

	env.callback(1, fmt.Sprintf("xb:%d", conf.BookingID))
	text, _ = env.tg.last(t)
	assert.Contains(t, text, "cancelled")

	env.command(1, "/my")
	text, _ = env.tg.last(t)
	assert.Equal(t, textNoBookings, text)
}

func TestBot_RandomAndOutOfOffice(t *testing.T) {
	env := newTestEnv(t)
	env.seedOffice(t)
	env.command(1, "/start alice")

	env.command(1, "/random")
	_, kb := env.tg.last(t)
	assert.Contains(t, callbackData(kb), "rnd:2025-01-10")

	env.callback(1, "rnd:2025-01-10")
	text, _ := env.tg.last(t)
	assert.Contains(t, text, "Booked desk A")

	env.command(1, "/ooo on")
	text, _ = env.tg.last(t)
	assert.Equal(t, "Out of office: on.", text)
	u, err := env.db.GetUser(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, u.IsOutOfOffice)
}

func TestBot_RateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.bot.opts.MessagesPerMinute = 1

	env.command(1, "/help")
	env.command(1, "/help")
	text, _ := env.tg.last(t)
	assert.Equal(t, textRateLimited, text)
}

func TestDesksKeyboard(t *testing.T) {
	desks := make([]string, 10)
	for i := range desks {
		desks[i] = fmt.Sprintf("D%02d", i)
	}

	kb, page := desksKeyboard(desks, 0)
	assert.Equal(t, 0, page)
	data := callbackData(&kb)
	assert.Contains(t, data, "desk:D07")
	assert.NotContains(t, data, "desk:D08")
	assert.Contains(t, data, "page:1")

	kb, page = desksKeyboard(desks, 5)
	assert.Equal(t, 1, page)
	data = callbackData(&kb)
	assert.Equal(t, []string{"desk:D08", "desk:D09", "page:0", cbNoop, "back:date", cbAbort}, data)
}

func TestErrorText(t *testing.T) {
	tests := map[string]struct {
		err  error
		want string
	}{
		"wrapped conflict": {fmt.Errorf("book: %w", booking.ErrAlreadyBooked), errorText(booking.ErrAlreadyBooked)},
		"invalid date":     {booking.ErrInvalidDate, "That date is not valid."},
		"access denied":    {&access.AccessDeniedError{Reason: "nope"}, "nope"},
		"assigned":         {admin.ErrUserAssigned, "That user already has a desk on this weekday."},
		"unregistered":     {booking.ErrUserNotFound, "Register first with /start."},
		"switched off":     {fmt.Errorf("%w: A1", booking.ErrDeskUnavailable), errorText(booking.ErrDeskUnavailable)},
		"unknown":          {errors.New("disk full"), textInternalError},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorText(tt.err))
		})
	}
}

func TestNotifier(t *testing.T) {
	env := newTestEnv(t)
	n := env.bot.Notifier([]int64{adminID, 101})

	err := n.SendReminder(context.Background(), models.BookingView{
		UserID: 1, RoomName: "A", DeskName: "A1", Date: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	text, _ := env.tg.last(t)
	assert.Contains(t, text, "desk A1 in A booked for 2025-01-10 (Fri)")

	env.tg.sendErr = &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3}}
	err = n.SendReminder(context.Background(), models.BookingView{UserID: 1})
	tgErr, ok := reminders.IsTelegramError(err)
	require.True(t, ok)
	assert.Equal(t, 429, tgErr.Code)
	assert.Equal(t, 3, tgErr.RetryAfter)

	env.tg.sendErr = nil
	require.NoError(t, n.SendDocument(context.Background(), "deskbot_2025-01.xlsx", strings.NewReader("xlsx"), "Monthly export"))
	env.tg.mu.Lock()
	docs := 0
	for _, c := range env.tg.sent {
		if d, ok := c.(tgbotapi.DocumentConfig); ok {
			docs++
			assert.Equal(t, "Monthly export", d.Caption)
		}
	}
	env.tg.mu.Unlock()
	assert.Equal(t, 2, docs)
}

func TestBot_StartStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.bot.Start(ctx)
		close(done)
	}()

	env.tg.updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}, Text: "hello",
	}}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
	text, _ := env.tg.last(t)
	assert.Equal(t, textUseCommands, text)
}
