// Package admin holds the office management operations behind the admin commands.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deskbot/internal/database"
	"deskbot/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a named room, desk, user or team does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a name or assignment slot is already taken.
	ErrDuplicate = errors.New("already exists")
	// ErrInvalidInput is returned for empty names and malformed arguments.
	ErrInvalidInput = errors.New("invalid input")

	ErrDeskAssigned = fmt.Errorf("%w: desk is already assigned on this weekday", ErrDuplicate)
	ErrUserAssigned = fmt.Errorf("%w: user already has a desk on this weekday", ErrDuplicate)
)

// Store is the storage surface used by the admin operations.
type Store interface {
	RegisterUser(ctx context.Context, telegramID int64, displayName string) (*models.User, error)
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	GetUserByName(ctx context.Context, displayName string) (*models.User, error)
	ListUsers(ctx context.Context, filter database.UserFilter) ([]models.User, error)
	SetUserAdmin(ctx context.Context, telegramID int64, isAdmin bool) error
	SetUserBanned(ctx context.Context, telegramID int64, banned bool) error
	SetUserOutOfOffice(ctx context.Context, telegramID int64, ooo bool) error

	CreateRoom(ctx context.Context, name string, available bool) (*models.Room, error)
	GetRoomByName(ctx context.Context, name string) (*models.Room, error)
	ListRooms(ctx context.Context, onlyAvailable bool) ([]models.Room, error)
	RenameRoom(ctx context.Context, id int64, name string) error
	SetRoomAvailable(ctx context.Context, id int64, available bool) error
	SetRoomFloorPlan(ctx context.Context, id int64, plan string) error
	DeleteRoom(ctx context.Context, id int64) error

	CreateDesk(ctx context.Context, roomID int64, name string, available bool) (*models.Desk, error)
	GetDeskByName(ctx context.Context, name string) (*models.Desk, error)
	ListDesks(ctx context.Context, roomID int64, onlyAvailable bool) ([]models.Desk, error)
	SetDeskAvailable(ctx context.Context, id int64, available bool) error
	DeleteDesk(ctx context.Context, id int64) error

	CreateTeam(ctx context.Context, name string) (*models.Team, error)
	GetTeamByName(ctx context.Context, name string) (*models.Team, error)
	ListTeams(ctx context.Context) ([]models.Team, error)
	SetTeamPreferredRoom(ctx context.Context, teamID int64, roomID *int64) error
	AddTeamMember(ctx context.Context, m models.TeamMember) error
	RemoveTeamMember(ctx context.Context, userID int64) error

	CreateAssignment(ctx context.Context, a models.DeskAssignment) (*models.DeskAssignment, error)
	DeleteAssignment(ctx context.Context, userID int64, weekday models.Weekday) error
	ListAssignments(ctx context.Context, filter database.AssignmentFilter) ([]models.AssignmentView, error)

	ListBookings(ctx context.Context, filter database.BookingFilter) ([]models.BookingView, error)
}

var _ Store = (*database.DB)(nil)

// Service performs admin changes to the office layout, users, teams and assignments.
// Callers are expected to have passed the admin access check.
type Service struct {
	store  Store
	logger zerolog.Logger
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "admin").Logger(),
	}
}

func mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, database.ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	case errors.Is(err, database.ErrDeskWeekdayTaken):
		return ErrDeskAssigned
	case errors.Is(err, database.ErrUserWeekdayTaken):
		return ErrUserAssigned
	}
	return fmt.Errorf("%s: %w", op, err)
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}
	return name, nil
}

// Rooms

func (s *Service) AddRoom(ctx context.Context, name string) (*models.Room, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	room, err := s.store.CreateRoom(ctx, name, true)
	if err != nil {
		return nil, mapErr("add room", err)
	}
	s.logger.Info().Str("room", name).Msg("Room added")
	return room, nil
}

func (s *Service) RenameRoom(ctx context.Context, oldName, newName string) error {
	newName, err := cleanName(newName)
	if err != nil {
		return err
	}
	room, err := s.store.GetRoomByName(ctx, oldName)
	if err != nil {
		return mapErr("rename room", err)
	}
	return mapErr("rename room", s.store.RenameRoom(ctx, room.ID, newName))
}

// ToggleRoom flips room availability and returns the new value.
func (s *Service) ToggleRoom(ctx context.Context, name string) (bool, error) {
	room, err := s.store.GetRoomByName(ctx, name)
	if err != nil {
		return false, mapErr("toggle room", err)
	}
	if err := s.store.SetRoomAvailable(ctx, room.ID, !room.IsAvailable); err != nil {
		return false, mapErr("toggle room", err)
	}
	s.logger.Info().Str("room", name).Bool("available", !room.IsAvailable).Msg("Room toggled")
	return !room.IsAvailable, nil
}

// SetFloorPlan stores a URL or Telegram file id. An empty plan clears it.
func (s *Service) SetFloorPlan(ctx context.Context, roomName, plan string) error {
	room, err := s.store.GetRoomByName(ctx, roomName)
	if err != nil {
		return mapErr("set floor plan", err)
	}
	return mapErr("set floor plan", s.store.SetRoomFloorPlan(ctx, room.ID, strings.TrimSpace(plan)))
}

// DeleteRoom removes the room together with its desks.
func (s *Service) DeleteRoom(ctx context.Context, name string) error {
	room, err := s.store.GetRoomByName(ctx, name)
	if err != nil {
		return mapErr("delete room", err)
	}
	if err := s.store.DeleteRoom(ctx, room.ID); err != nil {
		return mapErr("delete room", err)
	}
	s.logger.Info().Str("room", name).Msg("Room deleted")
	return nil
}

// RoomLayout is a room with all of its desks.
type RoomLayout struct {
	Room  models.Room
	Desks []models.Desk
}

// Layout lists every room, available or not, with its desks.
func (s *Service) Layout(ctx context.Context) ([]RoomLayout, error) {
	rooms, err := s.store.ListRooms(ctx, false)
	if err != nil {
		return nil, mapErr("list rooms", err)
	}
	out := make([]RoomLayout, 0, len(rooms))
	for _, r := range rooms {
		desks, err := s.store.ListDesks(ctx, r.ID, false)
		if err != nil {
			return nil, mapErr("list desks", err)
		}
		out = append(out, RoomLayout{Room: r, Desks: desks})
	}
	return out, nil
}

// Desks

func (s *Service) AddDesk(ctx context.Context, roomName, deskName string) (*models.Desk, error) {
	deskName, err := cleanName(deskName)
	if err != nil {
		return nil, err
	}
	room, err := s.store.GetRoomByName(ctx, roomName)
	if err != nil {
		return nil, mapErr("add desk", err)
	}
	desk, err := s.store.CreateDesk(ctx, room.ID, deskName, true)
	if err != nil {
		return nil, mapErr("add desk", err)
	}
	s.logger.Info().Str("room", roomName).Str("desk", deskName).Msg("Desk added")
	return desk, nil
}

func (s *Service) ToggleDesk(ctx context.Context, name string) (bool, error) {
	desk, err := s.store.GetDeskByName(ctx, name)
	if err != nil {
		return false, mapErr("toggle desk", err)
	}
	if err := s.store.SetDeskAvailable(ctx, desk.ID, !desk.IsAvailable); err != nil {
		return false, mapErr("toggle desk", err)
	}
	return !desk.IsAvailable, nil
}

func (s *Service) DeleteDesk(ctx context.Context, name string) error {
	desk, err := s.store.GetDeskByName(ctx, name)
	if err != nil {
		return mapErr("delete desk", err)
	}
	return mapErr("delete desk", s.store.DeleteDesk(ctx, desk.ID))
}

// Users

// Register creates the user or updates the display name. Display names are unique.
func (s *Service) Register(ctx context.Context, telegramID int64, displayName string) (*models.User, error) {
	displayName, err := cleanName(displayName)
	if err != nil {
		return nil, err
	}
	u, err := s.store.RegisterUser(ctx, telegramID, displayName)
	if err != nil {
		return nil, mapErr("register user", err)
	}
	return u, nil
}

// ResolveUser finds a user by "@name", display name or numeric Telegram id.
func (s *Service) ResolveUser(ctx context.Context, ref string) (*models.User, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "@")
	if ref == "" {
		return nil, fmt.Errorf("%w: user reference must not be empty", ErrInvalidInput)
	}
	if u, err := s.store.GetUserByName(ctx, ref); err == nil {
		return u, nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, mapErr("resolve user", err)
	}
	var id int64
	if _, err := fmt.Sscan(ref, &id); err != nil {
		return nil, fmt.Errorf("resolve user %q: %w", ref, ErrNotFound)
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, mapErr("resolve user", err)
	}
	return u, nil
}

func (s *Service) SetOutOfOffice(ctx context.Context, telegramID int64, ooo bool) error {
	if err := s.store.SetUserOutOfOffice(ctx, telegramID, ooo); err != nil {
		return mapErr("set out of office", err)
	}
	s.logger.Info().Int64("user_id", telegramID).Bool("out_of_office", ooo).Msg("Out of office changed")
	return nil
}

// ListUsers returns users matching the filter.
func (s *Service) ListUsers(ctx context.Context, filter database.UserFilter) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx, filter)
	return users, mapErr("list users", err)
}

// Teams

func (s *Service) CreateTeam(ctx context.Context, name string) (*models.Team, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	team, err := s.store.CreateTeam(ctx, name)
	if err != nil {
		return nil, mapErr("create team", err)
	}
	s.logger.Info().Str("team", name).Msg("Team created")
	return team, nil
}

// SetPreferredRoom points the team at a room. An empty room name clears the preference.
func (s *Service) SetPreferredRoom(ctx context.Context, teamName, roomName string) error {
	team, err := s.store.GetTeamByName(ctx, teamName)
	if err != nil {
		return mapErr("set preferred room", err)
	}
	var roomID *int64
	if strings.TrimSpace(roomName) != "" {
		room, err := s.store.GetRoomByName(ctx, roomName)
		if err != nil {
			return mapErr("set preferred room", err)
		}
		roomID = &room.ID
	}
	return mapErr("set preferred room", s.store.SetTeamPreferredRoom(ctx, team.ID, roomID))
}

// AddMember moves the user into the team. A user belongs to at most one team.
func (s *Service) AddMember(ctx context.Context, teamName string, userID int64, role string) error {
	team, err := s.store.GetTeamByName(ctx, teamName)
	if err != nil {
		return mapErr("add team member", err)
	}
	err = s.store.AddTeamMember(ctx, models.TeamMember{UserID: userID, TeamID: team.ID, Role: strings.TrimSpace(role)})
	if err != nil {
		return mapErr("add team member", err)
	}
	s.logger.Info().Str("team", teamName).Int64("user_id", userID).Msg("Team member added")
	return nil
}

func (s *Service) RemoveMember(ctx context.Context, userID int64) error {
	return mapErr("remove team member", s.store.RemoveTeamMember(ctx, userID))
}

func (s *Service) ListTeams(ctx context.Context) ([]models.Team, error) {
	teams, err := s.store.ListTeams(ctx)
	return teams, mapErr("list teams", err)
}

// Assignments

// Assign gives the user a recurring weekday claim on the desk.
func (s *Service) Assign(ctx context.Context, userID int64, deskName string, weekday models.Weekday) (*models.DeskAssignment, error) {
	if !weekday.Valid() {
		return nil, fmt.Errorf("%w: weekday %d", ErrInvalidInput, weekday)
	}
	desk, err := s.store.GetDeskByName(ctx, deskName)
	if err != nil {
		return nil, mapErr("assign desk", err)
	}
	a, err := s.store.CreateAssignment(ctx, models.DeskAssignment{UserID: userID, DeskID: desk.ID, Weekday: weekday})
	if err != nil {
		return nil, mapErr("assign desk", err)
	}
	s.logger.Info().Int64("user_id", userID).Str("desk", deskName).Stringer("weekday", weekday).Msg("Desk assigned")
	return a, nil
}

func (s *Service) Unassign(ctx context.Context, userID int64, weekday models.Weekday) error {
	return mapErr("unassign desk", s.store.DeleteAssignment(ctx, userID, weekday))
}

// Assignments lists assignments, optionally for one room.
func (s *Service) Assignments(ctx context.Context, roomName string) ([]models.AssignmentView, error) {
	var filter database.AssignmentFilter
	if roomName != "" {
		room, err := s.store.GetRoomByName(ctx, roomName)
		if err != nil {
			return nil, mapErr("list assignments", err)
		}
		filter.RoomID = &room.ID
	}
	list, err := s.store.ListAssignments(ctx, filter)
	return list, mapErr("list assignments", err)
}

// BookingsOn lists every booking on the given day.
func (s *Service) BookingsOn(ctx context.Context, date time.Time) ([]models.BookingView, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	list, err := s.store.ListBookings(ctx, database.BookingFilter{From: day, To: day})
	return list, mapErr("list bookings", err)
}

// DeskLabels lists every desk as "room/desk" in layout order.
func (s *Service) DeskLabels(ctx context.Context) ([]string, error) {
	layout, err := s.Layout(ctx)
	if err != nil {
		return nil, err
	}
	var labels []string
	for _, rl := range layout {
		for _, d := range rl.Desks {
			labels = append(labels, rl.Room.Name+"/"+d.Name)
		}
	}
	return labels, nil
}

// UpcomingBookings lists bookings from today on.
func (s *Service) UpcomingBookings(ctx context.Context) ([]models.BookingView, error) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	list, err := s.store.ListBookings(ctx, database.BookingFilter{From: today})
	return list, mapErr("list upcoming bookings", err)
}
