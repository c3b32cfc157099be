package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deskbot/internal/config"
	"deskbot/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func day(s string) time.Time {
	d, err := time.Parse(models.DateKey, s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	room   *models.Room
	deskA1 *models.Desk
	deskA2 *models.Desk
	alice  *models.User
	bob    *models.User
}

func seed(t *testing.T, db *DB) fixture {
	t.Helper()
	ctx := context.Background()

	room, err := db.CreateRoom(ctx, "A", true)
	require.NoError(t, err)
	a1, err := db.CreateDesk(ctx, room.ID, "A1", true)
	require.NoError(t, err)
	a2, err := db.CreateDesk(ctx, room.ID, "A2", true)
	require.NoError(t, err)
	alice, err := db.RegisterUser(ctx, 1, "alice")
	require.NoError(t, err)
	bob, err := db.RegisterUser(ctx, 2, "bob")
	require.NoError(t, err)

	return fixture{room: room, deskA1: a1, deskA2: a2, alice: alice, bob: bob}
}

func TestUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, err := db.RegisterUser(ctx, 10, "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol", u.DisplayName)
	assert.False(t, u.IsAdmin)

	_, err = db.RegisterUser(ctx, 11, "carol")
	assert.ErrorIs(t, err, ErrDuplicate)

	u, err = db.RegisterUser(ctx, 10, "carol2")
	require.NoError(t, err)
	assert.Equal(t, "carol2", u.DisplayName)

	require.NoError(t, db.SetUserAdmin(ctx, 10, true))
	require.NoError(t, db.SetUserOutOfOffice(ctx, 10, true))
	u, err = db.GetUserByName(ctx, "carol2")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	assert.True(t, u.IsOutOfOffice)

	assert.ErrorIs(t, db.SetUserBanned(ctx, 999, true), ErrNotFound)
	_, err = db.GetUser(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	yes := true
	admins, err := db.ListUsers(ctx, UserFilter{Admins: &yes})
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, int64(10), admins[0].TelegramID)
}

func TestRoomsAndDesks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seed(t, db)

	_, err := db.CreateRoom(ctx, "A", true)
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = db.CreateDesk(ctx, f.room.ID, "A1", true)
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, db.SetDeskAvailable(ctx, f.deskA2.ID, false))
	desks, err := db.ListDesks(ctx, f.room.ID, true)
	require.NoError(t, err)
	require.Len(t, desks, 1)
	assert.Equal(t, "A1", desks[0].Name)

	require.NoError(t, db.SetRoomFloorPlan(ctx, f.room.ID, "https://example.org/a.png"))
	require.NoError(t, db.SetRoomAvailable(ctx, f.room.ID, false))
	room, err := db.GetRoomByName(ctx, "A")
	require.NoError(t, err)
	assert.False(t, room.IsAvailable)
	assert.Equal(t, "https://example.org/a.png", room.FloorPlan)

	rooms, err := db.ListRooms(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	require.NoError(t, db.DeleteRoom(ctx, f.room.ID))
	_, err = db.GetDeskByName(ctx, "A1")
	assert.ErrorIs(t, err, ErrNotFound, "desks cascade with their room")
}

func TestTeams(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seed(t, db)

	team, err := db.CreateTeam(ctx, "core")
	require.NoError(t, err)

	none, err := db.GetUserTeam(ctx, f.alice.TelegramID)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, db.SetTeamPreferredRoom(ctx, team.ID, &f.room.ID))
	require.NoError(t, db.AddTeamMember(ctx, models.TeamMember{UserID: f.alice.TelegramID, TeamID: team.ID}))

	got, err := db.GetUserTeam(ctx, f.alice.TelegramID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.PreferredRoomID)
	assert.Equal(t, f.room.ID, *got.PreferredRoomID)

	// Deleting the room clears the preference but keeps the team.
	require.NoError(t, db.DeleteRoom(ctx, f.room.ID))
	got, err = db.GetTeamByName(ctx, "core")
	require.NoError(t, err)
	assert.Nil(t, got.PreferredRoomID)

	require.NoError(t, db.RemoveTeamMember(ctx, f.alice.TelegramID))
	assert.ErrorIs(t, db.RemoveTeamMember(ctx, f.alice.TelegramID), ErrNotFound)
}

func TestAssignments(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seed(t, db)

	_, err := db.CreateAssignment(ctx, models.DeskAssignment{UserID: f.alice.TelegramID, DeskID: f.deskA1.ID, Weekday: models.Friday})
	require.NoError(t, err)

	_, err = db.CreateAssignment(ctx, models.DeskAssignment{UserID: f.bob.TelegramID, DeskID: f.deskA1.ID, Weekday: models.Friday})
	assert.ErrorIs(t, err, ErrDeskWeekdayTaken)

	_, err = db.CreateAssignment(ctx, models.DeskAssignment{UserID: f.alice.TelegramID, DeskID: f.deskA2.ID, Weekday: models.Friday})
	assert.ErrorIs(t, err, ErrUserWeekdayTaken)

	_, err = db.CreateAssignment(ctx, models.DeskAssignment{UserID: f.alice.TelegramID, DeskID: f.deskA2.ID, Weekday: 9})
	assert.Error(t, err)

	ids, err := db.AssignedDeskIDs(ctx, f.room.ID, models.Friday)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.deskA1.ID}, ids)

	require.NoError(t, db.SetUserOutOfOffice(ctx, f.alice.TelegramID, true))
	ids, err = db.AssignedDeskIDs(ctx, f.room.ID, models.Friday)
	require.NoError(t, err)
	assert.Empty(t, ids)

	views, err := db.ListAssignments(ctx, AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "alice", views[0].UserName)
	assert.Equal(t, "A1", views[0].DeskName)
	assert.Equal(t, "A", views[0].RoomName)
	assert.True(t, views[0].OutOfOffice)

	require.NoError(t, db.DeleteAssignment(ctx, f.alice.TelegramID, models.Friday))
	assert.ErrorIs(t, db.DeleteAssignment(ctx, f.alice.TelegramID, models.Friday), ErrNotFound)
}

func TestBookings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seed(t, db)
	date := day("2025-01-10")

	b := &models.Booking{UserID: f.alice.TelegramID, DeskID: f.deskA1.ID, Date: date}
	require.NoError(t, db.CreateBooking(ctx, b))
	assert.NotZero(t, b.ID)

	err := db.CreateBooking(ctx, &models.Booking{UserID: f.bob.TelegramID, DeskID: f.deskA1.ID, Date: date})
	assert.ErrorIs(t, err, ErrDeskDateTaken)

	err = db.CreateBooking(ctx, &models.Booking{UserID: f.alice.TelegramID, DeskID: f.deskA2.ID, Date: date})
	assert.ErrorIs(t, err, ErrUserDateTaken)

	found, err := db.FindDeskBooking(ctx, f.deskA1.ID, date)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, b.ID, found.ID)
	assert.Equal(t, "2025-01-10", found.Date.Format(models.DateKey))

	missing, err := db.FindUserBooking(ctx, f.bob.TelegramID, date)
	require.NoError(t, err)
	assert.Nil(t, missing)

	ids, err := db.BookedDeskIDs(ctx, f.room.ID, date)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.deskA1.ID}, ids)

	require.NoError(t, db.CreateBooking(ctx, &models.Booking{UserID: f.bob.TelegramID, DeskID: f.deskA2.ID, Date: day("2025-01-13")}))

	views, err := db.ListBookings(ctx, BookingFilter{From: day("2025-01-11")})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "bob", views[0].UserName)
	assert.Equal(t, "A2", views[0].DeskName)

	views, err = db.ListBookings(ctx, BookingFilter{UserID: &f.alice.TelegramID})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "A", views[0].RoomName)

	require.NoError(t, db.DeleteBooking(ctx, b.ID))
	_, err = db.GetBooking(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncOfficeFromConfig(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	off := false
	cfg := &config.OfficeConfig{
		Rooms: []config.RoomConfig{
			{Name: "A", Desks: []string{"A1", "A2"}},
			{Name: "B", Available: &off, Desks: []string{"B1"}},
		},
		Teams: []config.TeamConfig{{Name: "core", PreferredRoom: "A"}},
	}
	require.NoError(t, db.SyncOfficeFromConfig(ctx, cfg))
	// Second sync is a no-op.
	require.NoError(t, db.SyncOfficeFromConfig(ctx, cfg))

	rooms, err := db.ListRooms(ctx, false)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.True(t, rooms[0].IsAvailable)
	assert.False(t, rooms[1].IsAvailable)

	desks, err := db.ListDesks(ctx, rooms[0].ID, false)
	require.NoError(t, err)
	assert.Len(t, desks, 2)

	team, err := db.GetTeamByName(ctx, "core")
	require.NoError(t, err)
	require.NotNil(t, team.PreferredRoomID)
	assert.Equal(t, rooms[0].ID, *team.PreferredRoomID)
}

func TestGetTableData(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seed(t, db)

	data, cols, err := db.GetTableData(ctx, "desks")
	require.NoError(t, err)
	assert.Contains(t, cols, "name")
	assert.Len(t, data, 2)

	_, _, err = db.GetTableData(ctx, "sqlite_master")
	assert.Error(t, err)
}

func TestBackupService(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	logger := zerolog.Nop()
	dir := t.TempDir()

	svc := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: dir, RetentionDays: 1}, &logger)
	path, err := svc.PerformBackup(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.True(t, strings.HasPrefix(filepath.Base(path), snapshotPrefix))

	old := filepath.Join(dir, snapshotPrefix+"old.db")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o600))
	past := time.Now().AddDate(0, 0, -3)
	require.NoError(t, os.Chtimes(old, past, past))

	unrelated := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(unrelated, past, past))

	assert.Equal(t, 1, svc.CleanupOldBackups())
	assert.NoFileExists(t, old)
	assert.FileExists(t, path)
	assert.FileExists(t, unrelated)
}

func TestBackupCleanupKeepsNewest(t *testing.T) {
	logger := zerolog.Nop()
	dir := t.TempDir()
	svc := NewBackupService(nil, config.BackupConfig{StoragePath: dir, RetentionDays: 1}, &logger)

	only := filepath.Join(dir, snapshotPrefix+"only.db")
	require.NoError(t, os.WriteFile(only, []byte("x"), 0o600))
	past := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(only, past, past))

	assert.Equal(t, 0, svc.CleanupOldBackups())
	assert.FileExists(t, only)
}
