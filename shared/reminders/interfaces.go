package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deskbot/internal/models"
)

// BookingSource lists bookings that fall on a date.
type BookingSource interface {
	BookingsOn(ctx context.Context, date time.Time) ([]models.BookingView, error)
}

// Notifier delivers one reminder to the booking's owner.
type Notifier interface {
	SendReminder(ctx context.Context, booking models.BookingView) error
}

// TelegramError represents an error from Telegram API.
type TelegramError struct {
	Code       int
	Message    string
	RetryAfter int // seconds to wait before retrying (for 429 errors)
}

func (e *TelegramError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsTelegramError checks if the error is a TelegramError.
func IsTelegramError(err error) (*TelegramError, bool) {
	var tgErr *TelegramError
	if errors.As(err, &tgErr) {
		return tgErr, true
	}
	return nil, false
}
