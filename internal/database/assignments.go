package database

import (
	"context"
	"errors"
	"fmt"

	"deskbot/internal/models"

	sq "github.com/Masterminds/squirrel"
)

var (
	ErrDeskWeekdayTaken = errors.New("desk already assigned on weekday")
	ErrUserWeekdayTaken = errors.New("user already assigned on weekday")
)

// CreateAssignment stores a recurring weekday claim. The two unique indexes
// surface as ErrDeskWeekdayTaken and ErrUserWeekdayTaken.
func (db *DB) CreateAssignment(ctx context.Context, a models.DeskAssignment) (*models.DeskAssignment, error) {
	if !a.Weekday.Valid() {
		return nil, fmt.Errorf("create assignment: invalid weekday %d", a.Weekday)
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO desk_assignments (user_id, desk_id, weekday) VALUES (?, ?, ?)`,
		a.UserID, a.DeskID, int(a.Weekday),
	)
	switch {
	case err == nil:
	case uniqueViolation(err, "desk_assignments.desk_id", "desk_assignments.weekday"):
		return nil, ErrDeskWeekdayTaken
	case uniqueViolation(err, "desk_assignments.user_id", "desk_assignments.weekday"):
		return nil, ErrUserWeekdayTaken
	default:
		return nil, fmt.Errorf("create assignment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	a.ID = id
	return &a, nil
}

// DeleteAssignment removes the user's claim on the given weekday.
func (db *DB) DeleteAssignment(ctx context.Context, userID int64, weekday models.Weekday) error {
	res, err := db.ExecContext(ctx,
		`DELETE FROM desk_assignments WHERE user_id = ? AND weekday = ?`, userID, int(weekday))
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return expectAffected(res, "delete assignment")
}

// AssignmentFilter narrows ListAssignments. Nil fields are ignored.
type AssignmentFilter struct {
	UserID  *int64
	RoomID  *int64
	Weekday *models.Weekday
}

func (db *DB) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]models.AssignmentView, error) {
	qb := sq.Select(
		"a.id", "a.weekday", "u.telegram_id", "u.display_name", "u.is_out_of_office", "d.name", "r.name",
	).
		From("desk_assignments a").
		Join("users u ON u.telegram_id = a.user_id").
		Join("desks d ON d.id = a.desk_id").
		Join("rooms r ON r.id = d.room_id")

	if filter.UserID != nil {
		qb = qb.Where(sq.Eq{"a.user_id": *filter.UserID})
	}
	if filter.RoomID != nil {
		qb = qb.Where(sq.Eq{"d.room_id": *filter.RoomID})
	}
	if filter.Weekday != nil {
		qb = qb.Where(sq.Eq{"a.weekday": int(*filter.Weekday)})
	}

	query, args, err := qb.OrderBy("a.weekday", "r.name", "d.name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("list assignments - build query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []models.AssignmentView
	for rows.Next() {
		var (
			v  models.AssignmentView
			wd int
		)
		if err := rows.Scan(&v.ID, &wd, &v.UserID, &v.UserName, &v.OutOfOffice, &v.DeskName, &v.RoomName); err != nil {
			return nil, err
		}
		v.Weekday = models.Weekday(wd)
		out = append(out, v)
	}
	return out, rows.Err()
}

// AssignedDeskIDs returns desks of the room claimed on weekday by users who
// are currently in the office.
func (db *DB) AssignedDeskIDs(ctx context.Context, roomID int64, weekday models.Weekday) ([]int64, error) {
	return db.queryIDs(ctx, `
		SELECT a.desk_id
		FROM desk_assignments a
		JOIN desks d ON d.id = a.desk_id
		JOIN users u ON u.telegram_id = a.user_id
		WHERE d.room_id = ? AND a.weekday = ? AND u.is_out_of_office = 0`,
		roomID, int(weekday),
	)
}

func (db *DB) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
