package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deskbot/internal/models"

	"github.com/rs/zerolog"
)

// ErrUndeliverable means Telegram refused the message for good (bot blocked, bad chat).
var ErrUndeliverable = errors.New("reminder undeliverable")

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

// Sender delivers reminders with rate limiting and retries.
type Sender struct {
	notifier    Notifier
	rateLimiter *RateLimiter
	retry       RetryConfig
	metrics     *Metrics
	logger      zerolog.Logger
}

func NewSender(notifier Notifier, limiter *RateLimiter, retry RetryConfig, metrics *Metrics, logger zerolog.Logger) *Sender {
	if limiter == nil {
		limiter = NewRateLimiter(DefaultRateLimiterConfig())
	}
	return &Sender{
		notifier:    notifier,
		rateLimiter: limiter,
		retry:       retry,
		metrics:     metrics,
		logger:      logger,
	}
}

// Send delivers one reminder. 429 responses honour RetryAfter; 400 and 403
// are not retried.
func (s *Sender) Send(ctx context.Context, b models.BookingView) error {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ReminderSendDuration.Observe(time.Since(start).Seconds())
		}
	}()

	var lastErr error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		err := s.notifier.SendReminder(ctx, b)
		if err == nil {
			s.metrics.sent("sent")
			return nil
		}
		lastErr = err

		wait := s.delay(attempt)
		if tgErr, ok := IsTelegramError(err); ok {
			switch tgErr.Code {
			case 429:
				if tgErr.RetryAfter > 0 {
					wait = time.Duration(tgErr.RetryAfter) * time.Second
				}
				s.logger.Info().Dur("retry_after", wait).Int("attempt", attempt).Msg("rate limited by Telegram, waiting")
			case 400, 403:
				s.logger.Info().Int64("user_id", b.UserID).Int("code", tgErr.Code).Msg("reminder rejected by Telegram")
				s.metrics.sent("undeliverable")
				return fmt.Errorf("%w: %v", ErrUndeliverable, err)
			}
		}

		if attempt == s.retry.MaxRetries {
			break
		}
		s.metrics.retry()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.metrics.sent("failed")
	s.logger.Error().Err(lastErr).Int64("user_id", b.UserID).Int64("booking_id", b.ID).Msg("max retries exceeded for reminder")
	return lastErr
}

func (s *Sender) delay(attempt int) time.Duration {
	if len(s.retry.RetryDelays) == 0 {
		return time.Second
	}
	if attempt < len(s.retry.RetryDelays) {
		return s.retry.RetryDelays[attempt]
	}
	return s.retry.RetryDelays[len(s.retry.RetryDelays)-1]
}
