package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deskbot/internal/database"
	"deskbot/internal/events"
	"deskbot/internal/metrics"
	"deskbot/internal/models"

	"github.com/rs/zerolog"
)

// BookRequest names the desk and date a user wants. RoomName is optional;
// when set the desk must belong to it.
type BookRequest struct {
	UserID   int64
	DeskName string
	Date     string
	RoomName string
}

// Confirmation describes a stored booking.
type Confirmation struct {
	BookingID int64
	Date      time.Time
	RoomName  string
	DeskName  string
	UserName  string
}

// Writer persists bookings. The storage uniqueness constraints are the only
// serialization point; there is no application-level lock and no retry.
type Writer struct {
	store          Store
	resolver       *Resolver
	bus            EventPublisher
	maxAdvanceDays int
	logger         *zerolog.Logger
}

// NewWriter builds a writer. bus may be nil.
func NewWriter(store Store, resolver *Resolver, bus EventPublisher, maxAdvanceDays int, logger *zerolog.Logger) *Writer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Writer{
		store:          store,
		resolver:       resolver,
		bus:            bus,
		maxAdvanceDays: maxAdvanceDays,
		logger:         logger,
	}
}

// ValidateDate rejects past dates and dates beyond the advance limit.
func (w *Writer) ValidateDate(date time.Time) error {
	today := w.resolver.Today()
	if date.Before(today) {
		return ErrPastDate
	}
	if w.maxAdvanceDays > 0 && date.After(today.AddDate(0, 0, w.maxAdvanceDays)) {
		return ErrDateTooFar
	}
	return nil
}

// Book stores a booking for the request. Conflicts on the desk or on the user
// for that date are reported as ErrAlreadyBooked and ErrUserAlreadyBooked
// whether caught by the pre-check or by the storage constraint.
func (w *Writer) Book(ctx context.Context, req BookRequest) (*Confirmation, error) {
	date, err := w.resolver.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if err := w.ValidateDate(date); err != nil {
		return nil, err
	}

	desk, err := w.store.GetDeskByName(ctx, req.DeskName)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDeskNotFound, req.DeskName)
	}
	if err != nil {
		return nil, fmt.Errorf("get desk %s: %w", req.DeskName, err)
	}

	room, err := w.store.GetRoom(ctx, desk.RoomID)
	if err != nil {
		return nil, fmt.Errorf("get room of desk %s: %w", req.DeskName, err)
	}
	if req.RoomName != "" && room.Name != req.RoomName {
		return nil, fmt.Errorf("%w: %s in room %s", ErrDeskNotFound, req.DeskName, req.RoomName)
	}
	if !desk.IsAvailable || !room.IsAvailable {
		return nil, fmt.Errorf("%w: %s", ErrDeskUnavailable, req.DeskName)
	}

	user, err := w.store.GetUser(ctx, req.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", req.UserID, err)
	}

	existing, err := w.store.FindDeskBooking(ctx, desk.ID, date)
	if err != nil {
		return nil, fmt.Errorf("check desk booking: %w", err)
	}
	if existing != nil {
		metrics.IncBookingConflict("desk_taken")
		return nil, ErrAlreadyBooked
	}

	mine, err := w.store.FindUserBooking(ctx, req.UserID, date)
	if err != nil {
		return nil, fmt.Errorf("check user booking: %w", err)
	}
	if mine != nil {
		metrics.IncBookingConflict("user_taken")
		return nil, ErrUserAlreadyBooked
	}

	b := &models.Booking{UserID: req.UserID, DeskID: desk.ID, Date: date}
	switch err := w.store.CreateBooking(ctx, b); {
	case err == nil:
	case errors.Is(err, database.ErrDeskDateTaken):
		metrics.IncBookingConflict("desk_taken")
		return nil, ErrAlreadyBooked
	case errors.Is(err, database.ErrUserDateTaken):
		metrics.IncBookingConflict("user_taken")
		return nil, ErrUserAlreadyBooked
	default:
		return nil, err
	}

	metrics.IncBookingCreated("desk")
	w.log(ctx).Info().
		Int64("booking_id", b.ID).
		Int64("user_id", req.UserID).
		Str("room", room.Name).
		Str("desk", desk.Name).
		Str("date", date.Format(models.DateKey)).
		Msg("Booking created")

	conf := &Confirmation{BookingID: b.ID, Date: date, RoomName: room.Name, DeskName: desk.Name, UserName: user.DisplayName}
	w.publish(events.BookingCreated, req.UserID, conf)
	return conf, nil
}

// BookRandom resolves a random desk for the date and books it.
func (w *Writer) BookRandom(ctx context.Context, dateStr string, userID int64, mode Mode) (*Confirmation, error) {
	pick, err := w.resolver.ResolveRandomDesk(ctx, dateStr, userID, mode)
	if err != nil {
		return nil, err
	}
	return w.Book(ctx, BookRequest{
		UserID:   userID,
		DeskName: pick.DeskName,
		RoomName: pick.RoomName,
		Date:     w.resolver.InputDate(pick.Date),
	})
}

// Cancel deletes a booking owned by userID.
func (w *Writer) Cancel(ctx context.Context, userID, bookingID int64) (*Confirmation, error) {
	views, err := w.store.ListBookings(ctx, database.BookingFilter{ID: &bookingID})
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", bookingID, err)
	}
	if len(views) == 0 {
		return nil, ErrBookingNotFound
	}
	v := views[0]
	if v.UserID != userID {
		return nil, ErrForbidden
	}

	if err := w.store.DeleteBooking(ctx, bookingID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("delete booking %d: %w", bookingID, err)
	}

	metrics.IncBookingCancelled()
	w.log(ctx).Info().Int64("booking_id", bookingID).Int64("user_id", userID).Msg("Booking cancelled")

	conf := &Confirmation{BookingID: v.ID, Date: v.Date, RoomName: v.RoomName, DeskName: v.DeskName, UserName: v.UserName}
	w.publish(events.BookingCancelled, userID, conf)
	return conf, nil
}

// ListUserBookings returns the user's bookings from the given date onwards.
// A zero from means today.
func (w *Writer) ListUserBookings(ctx context.Context, userID int64, from time.Time) ([]models.BookingView, error) {
	if from.IsZero() {
		from = w.resolver.Today()
	}
	views, err := w.store.ListBookings(ctx, database.BookingFilter{UserID: &userID, From: from})
	if err != nil {
		return nil, fmt.Errorf("list bookings of %d: %w", userID, err)
	}
	return views, nil
}

func (w *Writer) publish(eventType string, userID int64, c *Confirmation) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(events.NewBookingEvent(eventType, events.BookingPayload{
		BookingID: c.BookingID,
		UserID:    userID,
		UserName:  c.UserName,
		Date:      c.Date.Format(models.DateKey),
		RoomName:  c.RoomName,
		DeskName:  c.DeskName,
	}))
}

func (w *Writer) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return w.logger
}
