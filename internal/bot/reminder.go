package bot

import (
	"context"
	"errors"
	"fmt"
	"io"

	"deskbot/internal/models"
	"deskbot/shared/audit"
	"deskbot/shared/reminders"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier delivers reminders to users and reports to admins over Telegram.
type Notifier struct {
	tg     telegramClient
	admins []int64
	format func(models.BookingView) string
}

var (
	_ reminders.Notifier = (*Notifier)(nil)
	_ audit.Notifier     = (*Notifier)(nil)
)

// Notifier returns a notifier sharing the bot's Telegram client.
func (b *Bot) Notifier(admins []int64) *Notifier {
	return &Notifier{
		tg:     b.tg,
		admins: admins,
		format: func(v models.BookingView) string {
			return formatReminderMessage(v, b.resolver.FormatDate(v.Date))
		},
	}
}

func (n *Notifier) SendReminder(_ context.Context, v models.BookingView) error {
	msg := tgbotapi.NewMessage(v.UserID, n.format(v))
	_, err := n.tg.Send(msg)
	return telegramError(err)
}

// SendDocument sends the same file to every admin. The first failure is returned
// after all admins were tried.
func (n *Notifier) SendDocument(_ context.Context, filename string, data io.Reader, caption string) error {
	if len(n.admins) == 0 {
		return fmt.Errorf("no admins configured")
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	var first error
	for _, id := range n.admins {
		doc := tgbotapi.NewDocument(id, tgbotapi.FileBytes{Name: filename, Bytes: raw})
		doc.Caption = caption
		if _, err := n.tg.Send(doc); err != nil && first == nil {
			first = fmt.Errorf("send to %d: %w", id, telegramError(err))
		}
	}
	return first
}

func formatReminderMessage(v models.BookingView, date string) string {
	return fmt.Sprintf("Reminder: you have desk %s in %s booked for %s. Send /my to manage your bookings.",
		v.DeskName, v.RoomName, date)
}

// telegramError converts API errors so the reminder sender can classify them.
func telegramError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &reminders.TelegramError{
			Code:       apiErr.Code,
			Message:    apiErr.Message,
			RetryAfter: apiErr.RetryAfter,
		}
	}
	return err
}
