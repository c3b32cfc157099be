package booking

import (
	"context"
	"time"

	"deskbot/internal/database"
	"deskbot/internal/events"
	"deskbot/internal/models"
)

// Store is the persistence surface the resolver and writer depend on.
// *database.DB implements it.
type Store interface {
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	GetRoomByName(ctx context.Context, name string) (*models.Room, error)
	ListRooms(ctx context.Context, onlyAvailable bool) ([]models.Room, error)
	ListDesks(ctx context.Context, roomID int64, onlyAvailable bool) ([]models.Desk, error)
	GetDeskByName(ctx context.Context, name string) (*models.Desk, error)

	BookedDeskIDs(ctx context.Context, roomID int64, date time.Time) ([]int64, error)
	AssignedDeskIDs(ctx context.Context, roomID int64, weekday models.Weekday) ([]int64, error)
	GetUserTeam(ctx context.Context, userID int64) (*models.Team, error)
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)

	FindDeskBooking(ctx context.Context, deskID int64, date time.Time) (*models.Booking, error)
	FindUserBooking(ctx context.Context, userID int64, date time.Time) (*models.Booking, error)
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
	ListBookings(ctx context.Context, filter database.BookingFilter) ([]models.BookingView, error)
}

// EventPublisher receives booking lifecycle events.
type EventPublisher interface {
	Publish(event events.Event)
}

var _ Store = (*database.DB)(nil)
