package admin

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"deskbot/internal/database"
	"deskbot/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "admin.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db, logger), db
}

func TestRoomsAndDesks(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.AddRoom(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.AddRoom(ctx, "Blue")
	require.NoError(t, err)
	_, err = svc.AddRoom(ctx, "Blue")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = svc.AddDesk(ctx, "Blue", "B1")
	require.NoError(t, err)
	_, err = svc.AddDesk(ctx, "Nope", "X1")
	assert.ErrorIs(t, err, ErrNotFound)

	available, err := svc.ToggleRoom(ctx, "Blue")
	require.NoError(t, err)
	assert.False(t, available)

	available, err = svc.ToggleDesk(ctx, "B1")
	require.NoError(t, err)
	assert.False(t, available)

	require.NoError(t, svc.RenameRoom(ctx, "Blue", "Green"))
	require.NoError(t, svc.SetFloorPlan(ctx, "Green", "https://example.org/green.png"))

	layout, err := svc.Layout(ctx)
	require.NoError(t, err)
	require.Len(t, layout, 1)
	assert.Equal(t, "Green", layout[0].Room.Name)
	assert.Equal(t, "https://example.org/green.png", layout[0].Room.FloorPlan)
	require.Len(t, layout[0].Desks, 1)
	assert.False(t, layout[0].Desks[0].IsAvailable)

	labels, err := svc.DeskLabels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Green/B1"}, labels)

	require.NoError(t, svc.DeleteRoom(ctx, "Green"))
	assert.ErrorIs(t, svc.DeleteDesk(ctx, "B1"), ErrNotFound)
}

func TestUsersAndTeams(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	_, err := svc.Register(ctx, 1, "alice")
	require.NoError(t, err)
	_, err = svc.Register(ctx, 2, "alice")
	assert.ErrorIs(t, err, ErrDuplicate)

	u, err := svc.ResolveUser(ctx, "@alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.TelegramID)
	u, err = svc.ResolveUser(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.DisplayName)
	_, err = svc.ResolveUser(ctx, "carol")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.SetOutOfOffice(ctx, 1, true))
	ooo := true
	users, err := svc.ListUsers(ctx, database.UserFilter{OutOfOffice: &ooo})
	require.NoError(t, err)
	require.Len(t, users, 1)

	_, err = svc.AddRoom(ctx, "Blue")
	require.NoError(t, err)
	_, err = svc.CreateTeam(ctx, "core")
	require.NoError(t, err)
	require.NoError(t, svc.SetPreferredRoom(ctx, "core", "Blue"))
	require.NoError(t, svc.AddMember(ctx, "core", 1, ""))

	team, err := db.GetUserTeam(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, team)
	require.NotNil(t, team.PreferredRoomID)

	require.NoError(t, svc.SetPreferredRoom(ctx, "core", ""))
	teams, err := svc.ListTeams(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Nil(t, teams[0].PreferredRoomID)

	require.NoError(t, svc.RemoveMember(ctx, 1))
	assert.ErrorIs(t, svc.RemoveMember(ctx, 1), ErrNotFound)
	assert.ErrorIs(t, svc.AddMember(ctx, "ghosts", 1, ""), ErrNotFound)
}

func TestAssignments(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.AddRoom(ctx, "A")
	require.NoError(t, err)
	_, err = svc.AddDesk(ctx, "A", "A1")
	require.NoError(t, err)
	_, err = svc.AddDesk(ctx, "A", "A2")
	require.NoError(t, err)
	_, err = svc.Register(ctx, 1, "alice")
	require.NoError(t, err)
	_, err = svc.Register(ctx, 2, "bob")
	require.NoError(t, err)

	_, err = svc.Assign(ctx, 1, "A1", models.Friday)
	require.NoError(t, err)

	_, err = svc.Assign(ctx, 2, "A1", models.Friday)
	assert.ErrorIs(t, err, ErrDeskAssigned)
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = svc.Assign(ctx, 1, "A2", models.Friday)
	assert.ErrorIs(t, err, ErrUserAssigned)

	_, err = svc.Assign(ctx, 1, "A2", models.Weekday(9))
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, err := svc.Assignments(ctx, "A")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A1", list[0].DeskName)
	assert.Equal(t, models.Friday, list[0].Weekday)

	require.NoError(t, svc.Unassign(ctx, 1, models.Friday))
	assert.ErrorIs(t, svc.Unassign(ctx, 1, models.Friday), ErrNotFound)
}

func TestBookingsOn(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	_, err := svc.AddRoom(ctx, "A")
	require.NoError(t, err)
	desk, err := svc.AddDesk(ctx, "A", "A1")
	require.NoError(t, err)
	_, err = svc.Register(ctx, 1, "alice")
	require.NoError(t, err)

	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.CreateBooking(ctx, &models.Booking{UserID: 1, DeskID: desk.ID, Date: date}))

	list, err := svc.BookingsOn(ctx, date.Add(15*time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].UserName)

	list, err = svc.BookingsOn(ctx, date.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, list)
}
