package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps the sqlite connection pool used by every repository method.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")

	// ErrDeskDateTaken and ErrUserDateTaken are returned when the bookings
	// unique indexes reject an insert.
	ErrDeskDateTaken = errors.New("desk already booked for date")
	ErrUserDateTaken = errors.New("user already booked for date")
)

// NewDB opens the database at path and creates tables if they don't exist.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL with a busy timeout lets concurrent writers queue instead of failing fast.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			telegram_id INTEGER PRIMARY KEY,
			display_name TEXT UNIQUE NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT 0,
			is_banned BOOLEAN NOT NULL DEFAULT 0,
			is_out_of_office BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			is_available BOOLEAN NOT NULL DEFAULT 1,
			floor_plan TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS desks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			room_id INTEGER NOT NULL,
			is_available BOOLEAN NOT NULL DEFAULT 1,
			FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS teams (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			preferred_room_id INTEGER,
			FOREIGN KEY (preferred_room_id) REFERENCES rooms(id) ON DELETE SET NULL
		)`,
		`CREATE TABLE IF NOT EXISTS team_members (
			user_id INTEGER PRIMARY KEY,
			team_id INTEGER NOT NULL,
			role TEXT NOT NULL DEFAULT 'member',
			FOREIGN KEY (user_id) REFERENCES users(telegram_id) ON DELETE CASCADE,
			FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS desk_assignments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			desk_id INTEGER NOT NULL,
			weekday INTEGER NOT NULL CHECK (weekday BETWEEN 0 AND 6),
			UNIQUE (desk_id, weekday),
			UNIQUE (user_id, weekday),
			FOREIGN KEY (user_id) REFERENCES users(telegram_id) ON DELETE CASCADE,
			FOREIGN KEY (desk_id) REFERENCES desks(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			desk_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (desk_id, date),
			UNIQUE (user_id, date),
			FOREIGN KEY (user_id) REFERENCES users(telegram_id) ON DELETE CASCADE,
			FOREIGN KEY (desk_id) REFERENCES desks(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_desks_room ON desks(room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date)`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_weekday ON desk_assignments(weekday)`,
		`CREATE INDEX IF NOT EXISTS idx_team_members_team ON team_members(team_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// Ping reports whether the database answers within ctx.
func (db *DB) Ping(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// uniqueViolation reports whether err is a sqlite unique constraint failure.
// When columns are given, the failing index must name all of them.
func uniqueViolation(err error, columns ...string) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique &&
		sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
		return false
	}
	msg := sqliteErr.Error()
	for _, c := range columns {
		if !strings.Contains(msg, c) {
			return false
		}
	}
	return true
}

// mapWriteErr converts constraint failures on simple admin writes.
func mapWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if uniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
