package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"deskbot/internal/models"
)

func (db *DB) CreateTeam(ctx context.Context, name string) (*models.Team, error) {
	res, err := db.ExecContext(ctx, `INSERT INTO teams (name) VALUES (?)`, name)
	if err != nil {
		return nil, mapWriteErr("create team", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Team{ID: id, Name: name}, nil
}

func (db *DB) GetTeamByName(ctx context.Context, name string) (*models.Team, error) {
	row := db.QueryRowContext(ctx, `SELECT id, name, preferred_room_id FROM teams WHERE name = ?`, name)
	return scanTeam(row)
}

// GetUserTeam returns the team the user belongs to, or nil when the user has none.
func (db *DB) GetUserTeam(ctx context.Context, userID int64) (*models.Team, error) {
	row := db.QueryRowContext(ctx, `
		SELECT t.id, t.name, t.preferred_room_id
		FROM team_members tm
		JOIN teams t ON t.id = tm.team_id
		WHERE tm.user_id = ?`, userID)
	team, err := scanTeam(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return team, err
}

func (db *DB) ListTeams(ctx context.Context) ([]models.Team, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, preferred_room_id FROM teams ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *t)
	}
	return teams, rows.Err()
}

// SetTeamPreferredRoom points the team at a room; nil clears the preference.
func (db *DB) SetTeamPreferredRoom(ctx context.Context, teamID int64, roomID *int64) error {
	res, err := db.ExecContext(ctx, `UPDATE teams SET preferred_room_id = ? WHERE id = ?`, roomID, teamID)
	if err != nil {
		return fmt.Errorf("set preferred room: %w", err)
	}
	return expectAffected(res, "set preferred room")
}

// AddTeamMember puts the user into the team, moving them out of any previous one.
func (db *DB) AddTeamMember(ctx context.Context, m models.TeamMember) error {
	if m.Role == "" {
		m.Role = "member"
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO team_members (user_id, team_id, role) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET team_id = excluded.team_id, role = excluded.role`,
		m.UserID, m.TeamID, m.Role,
	)
	if err != nil {
		return fmt.Errorf("add team member: %w", err)
	}
	return nil
}

func (db *DB) RemoveTeamMember(ctx context.Context, userID int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM team_members WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("remove team member: %w", err)
	}
	return expectAffected(res, "remove team member")
}

func scanTeam(row rowScanner) (*models.Team, error) {
	var (
		t    models.Team
		room sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.Name, &room)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if room.Valid {
		id := room.Int64
		t.PreferredRoomID = &id
	}
	return &t, nil
}
