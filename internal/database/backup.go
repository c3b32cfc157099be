package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"deskbot/internal/config"

	"github.com/rs/zerolog"
)

const snapshotPrefix = "deskbot_"

// BackupService snapshots the bookings database on a fixed interval.
type BackupService struct {
	db     *DB
	config config.BackupConfig
	logger zerolog.Logger
	now    func() time.Time
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "backup").Logger()
	}
	return &BackupService{db: db, config: cfg, logger: l, now: time.Now}
}

// Start takes a snapshot right away and then every interval until ctx is done.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backups disabled")
		return
	}

	interval := time.Duration(s.config.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	s.logger.Info().Dur("interval", interval).Str("dir", s.config.StoragePath).Msg("Backups scheduled")

	s.cycle(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *BackupService) cycle(ctx context.Context) {
	if _, err := s.PerformBackup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Backup failed")
		return
	}
	if n := s.CleanupOldBackups(); n > 0 {
		s.logger.Info().Int("removed", n).Msg("Old backups removed")
	}
}

// PerformBackup writes a consistent snapshot with VACUUM INTO and returns its path.
// Copying the file directly would miss pages that are still in the WAL.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	name := snapshotPrefix + s.now().Format("20060102_150405.000") + ".db"
	path := filepath.Join(s.config.StoragePath, name)
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", path, err)
	}

	s.logger.Info().Str("path", path).Msg("Snapshot written")
	return path, nil
}

// CleanupOldBackups deletes snapshots older than the retention window and
// returns how many were removed. The newest snapshot is always kept.
func (s *BackupService) CleanupOldBackups() int {
	if s.config.RetentionDays <= 0 {
		return 0
	}

	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list backups")
		return 0
	}

	type snapshot struct {
		name string
		mod  time.Time
	}
	var snaps []snapshot
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), snapshotPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		snaps = append(snaps, snapshot{name: e.Name(), mod: info.ModTime()})
	}
	if len(snaps) <= 1 {
		return 0
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].mod.After(snaps[j].mod) })

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0
	for _, snap := range snaps[1:] {
		if !snap.mod.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.StoragePath, snap.name)); err != nil {
			s.logger.Warn().Err(err).Str("file", snap.name).Msg("Failed to delete backup")
			continue
		}
		removed++
	}
	return removed
}
