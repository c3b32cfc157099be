package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"deskbot/internal/models"

	sq "github.com/Masterminds/squirrel"
)

func (db *DB) CreateRoom(ctx context.Context, name string, available bool) (*models.Room, error) {
	res, err := db.ExecContext(ctx, `INSERT INTO rooms (name, is_available) VALUES (?, ?)`, name, available)
	if err != nil {
		return nil, mapWriteErr("create room", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Room{ID: id, Name: name, IsAvailable: available}, nil
}

func (db *DB) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	row := db.QueryRowContext(ctx, `SELECT id, name, is_available, floor_plan FROM rooms WHERE id = ?`, id)
	return scanRoom(row)
}

func (db *DB) GetRoomByName(ctx context.Context, name string) (*models.Room, error) {
	row := db.QueryRowContext(ctx, `SELECT id, name, is_available, floor_plan FROM rooms WHERE name = ?`, name)
	return scanRoom(row)
}

// ListRooms returns rooms ordered by name, optionally only available ones.
func (db *DB) ListRooms(ctx context.Context, onlyAvailable bool) ([]models.Room, error) {
	qb := sq.Select("id", "name", "is_available", "floor_plan").From("rooms")
	if onlyAvailable {
		qb = qb.Where(sq.Eq{"is_available": true})
	}
	query, args, err := qb.OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("list rooms - build query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *r)
	}
	return rooms, rows.Err()
}

func (db *DB) RenameRoom(ctx context.Context, id int64, name string) error {
	res, err := db.ExecContext(ctx, `UPDATE rooms SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return mapWriteErr("rename room", err)
	}
	return expectAffected(res, "rename room")
}

func (db *DB) SetRoomAvailable(ctx context.Context, id int64, available bool) error {
	res, err := db.ExecContext(ctx, `UPDATE rooms SET is_available = ? WHERE id = ?`, available, id)
	if err != nil {
		return fmt.Errorf("set room availability: %w", err)
	}
	return expectAffected(res, "set room availability")
}

// SetRoomFloorPlan stores a URL or Telegram file id; empty clears it.
func (db *DB) SetRoomFloorPlan(ctx context.Context, id int64, plan string) error {
	var value interface{}
	if plan != "" {
		value = plan
	}
	res, err := db.ExecContext(ctx, `UPDATE rooms SET floor_plan = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("set floor plan: %w", err)
	}
	return expectAffected(res, "set floor plan")
}

// DeleteRoom removes the room together with its desks and their bookings.
func (db *DB) DeleteRoom(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return expectAffected(res, "delete room")
}

func scanRoom(row rowScanner) (*models.Room, error) {
	var (
		r    models.Room
		plan sql.NullString
	)
	err := row.Scan(&r.ID, &r.Name, &r.IsAvailable, &plan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.FloorPlan = plan.String
	return &r, nil
}

func (db *DB) CreateDesk(ctx context.Context, roomID int64, name string, available bool) (*models.Desk, error) {
	res, err := db.ExecContext(ctx, `INSERT INTO desks (name, room_id, is_available) VALUES (?, ?, ?)`, name, roomID, available)
	if err != nil {
		return nil, mapWriteErr("create desk", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Desk{ID: id, Name: name, RoomID: roomID, IsAvailable: available}, nil
}

func (db *DB) GetDeskByName(ctx context.Context, name string) (*models.Desk, error) {
	var d models.Desk
	err := db.QueryRowContext(ctx,
		`SELECT id, name, room_id, is_available FROM desks WHERE name = ?`, name,
	).Scan(&d.ID, &d.Name, &d.RoomID, &d.IsAvailable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDesks returns the desks of a room ordered by name.
func (db *DB) ListDesks(ctx context.Context, roomID int64, onlyAvailable bool) ([]models.Desk, error) {
	qb := sq.Select("id", "name", "room_id", "is_available").
		From("desks").
		Where(sq.Eq{"room_id": roomID})
	if onlyAvailable {
		qb = qb.Where(sq.Eq{"is_available": true})
	}
	query, args, err := qb.OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("list desks - build query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list desks: %w", err)
	}
	defer rows.Close()

	var desks []models.Desk
	for rows.Next() {
		var d models.Desk
		if err := rows.Scan(&d.ID, &d.Name, &d.RoomID, &d.IsAvailable); err != nil {
			return nil, err
		}
		desks = append(desks, d)
	}
	return desks, rows.Err()
}

func (db *DB) SetDeskAvailable(ctx context.Context, id int64, available bool) error {
	res, err := db.ExecContext(ctx, `UPDATE desks SET is_available = ? WHERE id = ?`, available, id)
	if err != nil {
		return fmt.Errorf("set desk availability: %w", err)
	}
	return expectAffected(res, "set desk availability")
}

func (db *DB) DeleteDesk(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM desks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete desk: %w", err)
	}
	return expectAffected(res, "delete desk")
}
