package bot

import (
	"context"
	"io"
	"time"

	"deskbot/internal/booking"
	"deskbot/internal/models"
	"deskbot/internal/service"
	"deskbot/shared/access"
	"deskbot/shared/audit"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) StopReceivingUpdates() {
	c.api.StopReceivingUpdates()
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// DeskResolver answers which desks a user may book.
type DeskResolver interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	ResolveAvailableDesks(ctx context.Context, roomName, dateStr string, callerID int64, mode booking.Mode) ([]string, error)
	ParseDate(s string) (time.Time, error)
	FormatDate(d time.Time) string
	InputDate(d time.Time) string
	Today() time.Time
}

// BookingWriter stores and removes bookings.
type BookingWriter interface {
	Book(ctx context.Context, req booking.BookRequest) (*booking.Confirmation, error)
	BookRandom(ctx context.Context, dateStr string, userID int64, mode booking.Mode) (*booking.Confirmation, error)
	Cancel(ctx context.Context, userID, bookingID int64) (*booking.Confirmation, error)
	ListUserBookings(ctx context.Context, userID int64, from time.Time) ([]models.BookingView, error)
}

// StateManager keeps the dialog state between updates.
type StateManager interface {
	GetUserState(ctx context.Context, userID int64) (*models.UserState, error)
	SetUserState(ctx context.Context, userID int64, step string, data map[string]interface{}) error
	ClearUserState(ctx context.Context, userID int64) error
	UpdateUserStateData(ctx context.Context, userID int64, step, key string, value interface{}) error
	Allow(ctx context.Context, userID int64, perMinute int) bool
}

// AccessChecker guards users and admin commands.
type AccessChecker interface {
	Middleware(ctx context.Context, userID int64) error
	AdminMiddleware(ctx context.Context, userID int64) error
	Ban(ctx context.Context, userID, bannedBy int64) error
	Unban(ctx context.Context, userID, by int64) error
	SetAdmin(ctx context.Context, userID int64, isAdmin bool, by int64) error
}

// ReportExporter builds the spreadsheet behind /export.
type ReportExporter interface {
	Export(ctx context.Context, w io.Writer) error
	Filename() string
}

var (
	_ DeskResolver   = (*booking.Resolver)(nil)
	_ BookingWriter  = (*booking.Writer)(nil)
	_ StateManager   = (*service.StateService)(nil)
	_ AccessChecker  = (*access.Service)(nil)
	_ ReportExporter = (*audit.Service)(nil)
)
