package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"deskbot/internal/models"

	sq "github.com/Masterminds/squirrel"
)

// CreateBooking inserts the booking. Unique index rejections are reported as
// ErrDeskDateTaken or ErrUserDateTaken so callers racing on the same slot
// see the same outcome as the pre-check.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO bookings (user_id, desk_id, date, created_at) VALUES (?, ?, ?, ?)`,
		b.UserID, b.DeskID, b.Date.Format(models.DateKey), b.CreatedAt,
	)
	switch {
	case err == nil:
	case uniqueViolation(err, "bookings.desk_id", "bookings.date"):
		return ErrDeskDateTaken
	case uniqueViolation(err, "bookings.user_id", "bookings.date"):
		return ErrUserDateTaken
	default:
		return fmt.Errorf("create booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT id, user_id, desk_id, date, created_at FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

// FindDeskBooking returns the booking holding the desk on date, or nil.
func (db *DB) FindDeskBooking(ctx context.Context, deskID int64, date time.Time) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, user_id, desk_id, date, created_at FROM bookings WHERE desk_id = ? AND date = ?`,
		deskID, date.Format(models.DateKey))
	return optionalBooking(scanBooking(row))
}

// FindUserBooking returns the user's booking on date, or nil.
func (db *DB) FindUserBooking(ctx context.Context, userID int64, date time.Time) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, user_id, desk_id, date, created_at FROM bookings WHERE user_id = ? AND date = ?`,
		userID, date.Format(models.DateKey))
	return optionalBooking(scanBooking(row))
}

func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return expectAffected(res, "delete booking")
}

// BookedDeskIDs returns desks of the room that carry a booking on date.
func (db *DB) BookedDeskIDs(ctx context.Context, roomID int64, date time.Time) ([]int64, error) {
	return db.queryIDs(ctx, `
		SELECT b.desk_id
		FROM bookings b
		JOIN desks d ON d.id = b.desk_id
		WHERE d.room_id = ? AND b.date = ?`,
		roomID, date.Format(models.DateKey),
	)
}

// BookingFilter narrows ListBookings. Zero values are ignored; From and To are inclusive.
type BookingFilter struct {
	ID     *int64
	UserID *int64
	RoomID *int64
	From   time.Time
	To     time.Time
	Limit  uint64
}

// ListBookings returns flattened bookings ordered by date, room and desk.
func (db *DB) ListBookings(ctx context.Context, filter BookingFilter) ([]models.BookingView, error) {
	qb := sq.Select("b.id", "b.user_id", "u.display_name", "b.date", "r.name", "d.name").
		From("bookings b").
		Join("users u ON u.telegram_id = b.user_id").
		Join("desks d ON d.id = b.desk_id").
		Join("rooms r ON r.id = d.room_id")

	if filter.ID != nil {
		qb = qb.Where(sq.Eq{"b.id": *filter.ID})
	}
	if filter.UserID != nil {
		qb = qb.Where(sq.Eq{"b.user_id": *filter.UserID})
	}
	if filter.RoomID != nil {
		qb = qb.Where(sq.Eq{"d.room_id": *filter.RoomID})
	}
	// Dates are stored as YYYY-MM-DD so text comparison orders them correctly.
	if !filter.From.IsZero() {
		qb = qb.Where(sq.GtOrEq{"b.date": filter.From.Format(models.DateKey)})
	}
	if !filter.To.IsZero() {
		qb = qb.Where(sq.LtOrEq{"b.date": filter.To.Format(models.DateKey)})
	}
	qb = qb.OrderBy("b.date", "r.name", "d.name")
	if filter.Limit > 0 {
		qb = qb.Limit(filter.Limit)
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("list bookings - build query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []models.BookingView
	for rows.Next() {
		var (
			v    models.BookingView
			date string
		)
		if err := rows.Scan(&v.ID, &v.UserID, &v.UserName, &date, &v.RoomName, &v.DeskName); err != nil {
			return nil, err
		}
		if v.Date, err = time.Parse(models.DateKey, date); err != nil {
			return nil, fmt.Errorf("booking %d: bad date %q: %w", v.ID, date, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b    models.Booking
		date string
	)
	err := row.Scan(&b.ID, &b.UserID, &b.DeskID, &date, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if b.Date, err = time.Parse(models.DateKey, date); err != nil {
		return nil, fmt.Errorf("booking %d: bad date %q: %w", b.ID, date, err)
	}
	return &b, nil
}

func optionalBooking(b *models.Booking, err error) (*models.Booking, error) {
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return b, err
}
