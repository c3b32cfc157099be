package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"deskbot/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	asked    []time.Time
	bookings []models.BookingView
}

func (f *fakeSource) BookingsOn(_ context.Context, date time.Time) ([]models.BookingView, error) {
	f.asked = append(f.asked, date)
	return f.bookings, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	errs  []error
	calls []models.BookingView
}

func (f *fakeNotifier) SendReminder(_ context.Context, b models.BookingView) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, b)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func fastLimiter() *RateLimiter {
	return NewRateLimiter(RateLimiterConfig{Rate: 1000, Burst: 100})
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, RetryDelays: []time.Duration{time.Millisecond}}
}

func TestSender_RetriesThenSucceeds(t *testing.T) {
	n := &fakeNotifier{errs: []error{errors.New("timeout")}}
	m := NewMetrics("test", prometheus.NewRegistry())
	s := NewSender(n, fastLimiter(), fastRetry(), m, zerolog.Nop())

	require.NoError(t, s.Send(context.Background(), models.BookingView{ID: 1, UserID: 5}))
	assert.Len(t, n.calls, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReminderRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemindersSentTotal.WithLabelValues("sent")))
}

func TestSender_ForbiddenIsNotRetried(t *testing.T) {
	n := &fakeNotifier{errs: []error{&TelegramError{Code: 403, Message: "bot was blocked by the user"}}}
	s := NewSender(n, fastLimiter(), fastRetry(), nil, zerolog.Nop())

	err := s.Send(context.Background(), models.BookingView{ID: 1, UserID: 5})
	assert.ErrorIs(t, err, ErrUndeliverable)
	assert.Len(t, n.calls, 1)
}

func TestSender_GivesUp(t *testing.T) {
	boom := errors.New("boom")
	n := &fakeNotifier{errs: []error{boom, boom, boom, boom}}
	s := NewSender(n, fastLimiter(), fastRetry(), nil, zerolog.Nop())

	err := s.Send(context.Background(), models.BookingView{ID: 1})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, n.calls, 3)
}

func TestRateLimiter_TryAcquire(t *testing.T) {
	r := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2})
	assert.True(t, r.TryAcquire())
	assert.True(t, r.TryAcquire())
	assert.False(t, r.TryAcquire())
}

func TestScheduler_RunOnceTargetsTomorrow(t *testing.T) {
	loc := time.UTC
	src := &fakeSource{bookings: []models.BookingView{{ID: 1, UserID: 5}, {ID: 2, UserID: 6}}}
	n := &fakeNotifier{}
	s := NewScheduler(SchedulerConfig{Location: loc, DailyHour: 18}, src,
		NewSender(n, fastLimiter(), fastRetry(), nil, zerolog.Nop()), nil, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2025, 1, 9, 18, 5, 0, 0, loc) }

	assert.Equal(t, 2, s.RunOnce(context.Background()))
	require.Len(t, src.asked, 1)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, loc), src.asked[0])
}

func TestScheduler_DueOncePerDay(t *testing.T) {
	loc := time.UTC
	s := NewScheduler(SchedulerConfig{Location: loc, DailyHour: 18}, &fakeSource{}, nil, nil, zerolog.Nop())

	now := time.Date(2025, 1, 9, 17, 59, 0, 0, loc)
	s.now = func() time.Time { return now }
	assert.False(t, s.due())

	now = now.Add(2 * time.Minute)
	assert.True(t, s.due())
	assert.False(t, s.due())

	now = now.Add(24 * time.Hour)
	assert.True(t, s.due())
}
