package reminders

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SchedulerConfig holds configuration for the reminder scheduler.
type SchedulerConfig struct {
	Location *time.Location
	// DailyHour is the hour (0-23) when reminders for the next day go out.
	DailyHour int
	// CheckInterval is how often to check if it's time to run.
	CheckInterval time.Duration
}

// Scheduler sends reminders for tomorrow's bookings once a day.
type Scheduler struct {
	config   SchedulerConfig
	bookings BookingSource
	sender   *Sender
	metrics  *Metrics
	logger   zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	lastRunDate string // YYYY-MM-DD of last run
}

func NewScheduler(config SchedulerConfig, bookings BookingSource, sender *Sender, metrics *Metrics, logger zerolog.Logger) *Scheduler {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	return &Scheduler{
		config:   config,
		bookings: bookings,
		sender:   sender,
		metrics:  metrics,
		logger:   logger.With().Str("component", "reminders").Logger(),
		now:      time.Now,
	}
}

// Start checks every CheckInterval until ctx is done. It blocks.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Int("hour", s.config.DailyHour).Msg("Reminder scheduler started")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Reminder scheduler stopped")
			return
		case <-ticker.C:
			if s.due() {
				s.RunOnce(ctx)
			}
		}
	}
}

// due reports whether today's run has not happened and the hour has come.
func (s *Scheduler) due() bool {
	now := s.now().In(s.config.Location)
	today := now.Format("2006-01-02")

	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Hour() < s.config.DailyHour || s.lastRunDate == today {
		return false
	}
	s.lastRunDate = today
	return true
}

// RunOnce sends reminders for bookings dated tomorrow and returns how many were delivered.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	now := s.now().In(s.config.Location)
	tomorrow := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, s.config.Location)

	bookings, err := s.bookings.BookingsOn(ctx, tomorrow)
	if err != nil {
		s.logger.Error().Err(err).Msg("reminder: get bookings")
		return 0
	}
	if s.metrics != nil {
		s.metrics.LastRunBookings.Set(float64(len(bookings)))
	}

	sent := 0
	for _, b := range bookings {
		if ctx.Err() != nil {
			break
		}
		if err := s.sender.Send(ctx, b); err != nil {
			s.logger.Warn().Err(err).Int64("booking_id", b.ID).Msg("reminder not delivered")
			continue
		}
		sent++
	}

	s.logger.Info().Int("bookings", len(bookings)).Int("sent", sent).Str("date", tomorrow.Format("2006-01-02")).Msg("Reminders processed")
	return sent
}
