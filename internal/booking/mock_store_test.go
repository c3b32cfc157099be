package booking

import (
	"context"
	"time"

	"deskbot/internal/database"
	"deskbot/internal/events"
	"deskbot/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *mockStore) GetRoomByName(ctx context.Context, name string) (*models.Room, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *mockStore) ListRooms(ctx context.Context, onlyAvailable bool) ([]models.Room, error) {
	args := m.Called(ctx, onlyAvailable)
	return args.Get(0).([]models.Room), args.Error(1)
}

func (m *mockStore) ListDesks(ctx context.Context, roomID int64, onlyAvailable bool) ([]models.Desk, error) {
	args := m.Called(ctx, roomID, onlyAvailable)
	return args.Get(0).([]models.Desk), args.Error(1)
}

func (m *mockStore) GetDeskByName(ctx context.Context, name string) (*models.Desk, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Desk), args.Error(1)
}

func (m *mockStore) BookedDeskIDs(ctx context.Context, roomID int64, date time.Time) ([]int64, error) {
	args := m.Called(ctx, roomID, date)
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockStore) AssignedDeskIDs(ctx context.Context, roomID int64, weekday models.Weekday) ([]int64, error) {
	args := m.Called(ctx, roomID, weekday)
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockStore) GetUserTeam(ctx context.Context, userID int64) (*models.Team, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Team), args.Error(1)
}

func (m *mockStore) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockStore) FindDeskBooking(ctx context.Context, deskID int64, date time.Time) (*models.Booking, error) {
	args := m.Called(ctx, deskID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockStore) FindUserBooking(ctx context.Context, userID int64, date time.Time) (*models.Booking, error) {
	args := m.Called(ctx, userID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockStore) DeleteBooking(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) ListBookings(ctx context.Context, filter database.BookingFilter) ([]models.BookingView, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.BookingView), args.Error(1)
}

type mockBus struct {
	mock.Mock
}

func (m *mockBus) Publish(e events.Event) { m.Called(e) }
