package database

import (
	"context"
	"errors"
	"fmt"

	"deskbot/internal/config"
)

// SyncOfficeFromConfig applies office.yaml to the database. Rooms, desks and
// teams are upserted by name; rows created through admin commands are kept.
func (db *DB) SyncOfficeFromConfig(ctx context.Context, cfg *config.OfficeConfig) error {
	if cfg == nil {
		return fmt.Errorf("office config is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	roomIDs := make(map[string]int64, len(cfg.Rooms))
	for _, room := range cfg.Rooms {
		var plan interface{}
		if room.FloorPlan != "" {
			plan = room.FloorPlan
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rooms (name, is_available, floor_plan) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				is_available = excluded.is_available,
				floor_plan = COALESCE(excluded.floor_plan, rooms.floor_plan)`,
			room.Name, room.IsAvailable(), plan,
		)
		if err != nil {
			return fmt.Errorf("sync room %s: %w", room.Name, err)
		}

		var id int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM rooms WHERE name = ?`, room.Name).Scan(&id); err != nil {
			return fmt.Errorf("sync room %s: %w", room.Name, err)
		}
		roomIDs[room.Name] = id

		for _, desk := range room.Desks {
			// A desk moved between rooms in the file follows the file.
			_, err := tx.ExecContext(ctx, `
				INSERT INTO desks (name, room_id) VALUES (?, ?)
				ON CONFLICT(name) DO UPDATE SET room_id = excluded.room_id`,
				desk, id,
			)
			if err != nil {
				return fmt.Errorf("sync desk %s: %w", desk, err)
			}
		}
	}

	for _, team := range cfg.Teams {
		var preferred interface{}
		if team.PreferredRoom != "" {
			id, ok := roomIDs[team.PreferredRoom]
			if !ok {
				return errors.New("sync team " + team.Name + ": unknown room " + team.PreferredRoom)
			}
			preferred = id
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO teams (name, preferred_room_id) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET preferred_room_id = excluded.preferred_room_id`,
			team.Name, preferred,
		)
		if err != nil {
			return fmt.Errorf("sync team %s: %w", team.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sync office: %w", err)
	}

	db.logger.Info().Str("office", cfg.String()).Msg("Office layout synced")
	return nil
}
