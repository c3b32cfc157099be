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

const userColumns = "telegram_id, display_name, is_admin, is_banned, is_out_of_office, created_at, updated_at"

// RegisterUser creates the user or refreshes the display name of an existing one.
// Display names are unique across users.
func (db *DB) RegisterUser(ctx context.Context, telegramID int64, displayName string) (*models.User, error) {
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			display_name = excluded.display_name,
			updated_at = excluded.updated_at`,
		telegramID, displayName, now, now,
	)
	if err != nil {
		return nil, mapWriteErr("register user", err)
	}
	return db.GetUser(ctx, telegramID)
}

func (db *DB) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	row := db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE telegram_id = ?", telegramID)
	return scanUser(row)
}

func (db *DB) GetUserByName(ctx context.Context, displayName string) (*models.User, error) {
	row := db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE display_name = ?", displayName)
	return scanUser(row)
}

// UserFilter narrows ListUsers. Nil fields are ignored.
type UserFilter struct {
	Admins      *bool
	Banned      *bool
	OutOfOffice *bool
	TeamID      *int64
}

func (db *DB) ListUsers(ctx context.Context, filter UserFilter) ([]models.User, error) {
	qb := sq.Select(
		"u.telegram_id", "u.display_name", "u.is_admin", "u.is_banned",
		"u.is_out_of_office", "u.created_at", "u.updated_at",
	).From("users u")

	if filter.Admins != nil {
		qb = qb.Where(sq.Eq{"u.is_admin": *filter.Admins})
	}
	if filter.Banned != nil {
		qb = qb.Where(sq.Eq{"u.is_banned": *filter.Banned})
	}
	if filter.OutOfOffice != nil {
		qb = qb.Where(sq.Eq{"u.is_out_of_office": *filter.OutOfOffice})
	}
	if filter.TeamID != nil {
		qb = qb.Join("team_members tm ON tm.user_id = u.telegram_id").
			Where(sq.Eq{"tm.team_id": *filter.TeamID})
	}

	query, args, err := qb.OrderBy("u.display_name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("list users - build query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (db *DB) SetUserAdmin(ctx context.Context, telegramID int64, isAdmin bool) error {
	return db.setUserFlag(ctx, "is_admin", telegramID, isAdmin)
}

func (db *DB) SetUserBanned(ctx context.Context, telegramID int64, banned bool) error {
	return db.setUserFlag(ctx, "is_banned", telegramID, banned)
}

func (db *DB) SetUserOutOfOffice(ctx context.Context, telegramID int64, ooo bool) error {
	return db.setUserFlag(ctx, "is_out_of_office", telegramID, ooo)
}

func (db *DB) setUserFlag(ctx context.Context, column string, telegramID int64, value bool) error {
	query, args, err := sq.Update("users").
		Set(column, value).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"telegram_id": telegramID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("set %s - build query: %w", column, err)
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	return expectAffected(res, "set "+column)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.TelegramID, &u.DisplayName, &u.IsAdmin, &u.IsBanned, &u.IsOutOfOffice, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
