package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"deskbot/internal/config"
	"deskbot/internal/database"
	"deskbot/internal/metrics"
	"deskbot/internal/models"

	"github.com/rs/zerolog"
)

// Mode selects between plain availability and the advanced access window.
type Mode struct {
	Advanced bool
	// StandardAccessDays is the number of workdays ahead within which any
	// user may book any room in advanced mode.
	StandardAccessDays int
}

func ModeFromConfig(cfg config.BookingConfig) Mode {
	return Mode{Advanced: cfg.AdvancedMode, StandardAccessDays: cfg.StandardAccessDays}
}

// Pick is the outcome of a random desk resolution.
type Pick struct {
	RoomName string
	DeskName string
	Date     time.Time
}

type Options struct {
	DateFormat string
	Location   *time.Location
	Now        func() time.Time
	Rand       *rand.Rand
	Logger     *zerolog.Logger
}

// Resolver computes which desks a user may book on a date.
type Resolver struct {
	store  Store
	layout string
	loc    *time.Location
	now    func() time.Time
	logger *zerolog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewResolver(store Store, opts Options) *Resolver {
	if opts.DateFormat == "" {
		opts.DateFormat = models.DateKey
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	return &Resolver{
		store:  store,
		layout: opts.DateFormat,
		loc:    opts.Location,
		now:    opts.Now,
		rnd:    opts.Rand,
		logger: opts.Logger,
	}
}

// ParseDate parses a date under the configured format.
func (r *Resolver) ParseDate(s string) (time.Time, error) {
	return ParseDate(r.layout, s, r.loc)
}

// FormatDate renders a date with its weekday label.
func (r *Resolver) FormatDate(d time.Time) string {
	return FormatDate(r.layout, d)
}

// InputDate renders d in the configured format without the weekday label.
func (r *Resolver) InputDate(d time.Time) string {
	return d.Format(r.layout)
}

// Today returns the current date in the office timezone.
func (r *Resolver) Today() time.Time {
	return truncateDay(r.now().In(r.loc))
}

// DateOptions returns labels for the workdays up to days calendar days ahead.
func (r *Resolver) DateOptions(days int) []string {
	dates := AvailableDates(r.Today(), days)
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = r.FormatDate(d)
	}
	return out
}

// ListRooms returns rooms open for booking ordered by name.
func (r *Resolver) ListRooms(ctx context.Context) ([]models.Room, error) {
	rooms, err := r.store.ListRooms(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ResolveAvailableDesks returns the sorted names of desks in roomName the
// caller may book on dateStr. A desk is excluded when it carries a booking on
// that date or a weekday assignment held by a user who is in the office.
// In advanced mode, users outside the room's preferred team only see desks
// once the date is within the standard access window.
func (r *Resolver) ResolveAvailableDesks(ctx context.Context, roomName, dateStr string, callerID int64, mode Mode) ([]string, error) {
	date, err := r.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}

	room, err := r.store.GetRoomByName(ctx, roomName)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomName)
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomName, err)
	}
	if !room.IsAvailable {
		metrics.IncResolution("empty")
		return []string{}, nil
	}

	if mode.Advanced {
		open, err := r.windowOpen(ctx, room.ID, date, callerID, mode)
		if err != nil {
			return nil, err
		}
		if !open {
			metrics.IncResolution("window_closed")
			r.log(ctx).Debug().
				Str("room", roomName).
				Str("date", date.Format(models.DateKey)).
				Int64("user_id", callerID).
				Msg("Access window closed")
			return []string{}, nil
		}
	}

	desks, err := r.candidates(ctx, room.ID, date)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(desks))
	for _, d := range desks {
		names = append(names, d.Name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		metrics.IncResolution("empty")
	} else {
		metrics.IncResolution("available")
	}
	return names, nil
}

// ResolveRandomDesk picks uniformly among every desk the caller could book on
// dateStr across available rooms. In advanced mode with the window closed,
// only the caller's preferred room is searched and nothing else is tried.
func (r *Resolver) ResolveRandomDesk(ctx context.Context, dateStr string, callerID int64, mode Mode) (*Pick, error) {
	date, err := r.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}

	rooms, err := r.store.ListRooms(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	if mode.Advanced && WorkdaysBetween(r.Today(), date) > mode.StandardAccessDays {
		team, err := r.store.GetUserTeam(ctx, callerID)
		if err != nil {
			return nil, fmt.Errorf("get team of %d: %w", callerID, err)
		}
		rooms = preferredOnly(rooms, team)
	}

	type option struct{ room, desk string }
	var options []option
	for _, room := range rooms {
		desks, err := r.candidates(ctx, room.ID, date)
		if err != nil {
			return nil, err
		}
		for _, d := range desks {
			options = append(options, option{room: room.Name, desk: d.Name})
		}
	}

	if len(options) == 0 {
		metrics.IncResolution("empty")
		return nil, ErrNoDesks
	}
	metrics.IncResolution("available")

	r.mu.Lock()
	chosen := options[r.rnd.Intn(len(options))]
	r.mu.Unlock()

	return &Pick{RoomName: chosen.room, DeskName: chosen.desk, Date: date}, nil
}

// windowOpen reports whether the caller may see desks of roomID on date.
func (r *Resolver) windowOpen(ctx context.Context, roomID int64, date time.Time, callerID int64, mode Mode) (bool, error) {
	team, err := r.store.GetUserTeam(ctx, callerID)
	if err != nil {
		return false, fmt.Errorf("get team of %d: %w", callerID, err)
	}
	if team != nil && team.PreferredRoomID != nil && *team.PreferredRoomID == roomID {
		return true, nil
	}
	return WorkdaysBetween(r.Today(), date) <= mode.StandardAccessDays, nil
}

// candidates returns available desks of the room minus booked and assigned ones.
func (r *Resolver) candidates(ctx context.Context, roomID int64, date time.Time) ([]models.Desk, error) {
	desks, err := r.store.ListDesks(ctx, roomID, true)
	if err != nil {
		return nil, fmt.Errorf("list desks: %w", err)
	}
	if len(desks) == 0 {
		return nil, nil
	}

	booked, err := r.store.BookedDeskIDs(ctx, roomID, date)
	if err != nil {
		return nil, fmt.Errorf("booked desks: %w", err)
	}
	assigned, err := r.store.AssignedDeskIDs(ctx, roomID, models.WeekdayOf(date))
	if err != nil {
		return nil, fmt.Errorf("assigned desks: %w", err)
	}

	// Either reason excludes the desk; the caller is not told which.
	excluded := make(map[int64]struct{}, len(booked)+len(assigned))
	for _, id := range booked {
		excluded[id] = struct{}{}
	}
	for _, id := range assigned {
		excluded[id] = struct{}{}
	}

	out := make([]models.Desk, 0, len(desks))
	for _, d := range desks {
		if _, ok := excluded[d.ID]; ok {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func preferredOnly(rooms []models.Room, team *models.Team) []models.Room {
	if team == nil || team.PreferredRoomID == nil {
		return nil
	}
	for _, room := range rooms {
		if room.ID == *team.PreferredRoomID {
			return []models.Room{room}
		}
	}
	return nil
}

func (r *Resolver) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return r.logger
}
