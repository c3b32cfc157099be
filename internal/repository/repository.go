// Package repository stores dialog state and rate limit counters.
package repository

import (
	"context"
	"time"

	"deskbot/internal/models"
)

// StateRepository persists the per-user dialog state of the bot.
type StateRepository interface {
	// GetState returns nil, nil when the user has no state.
	GetState(ctx context.Context, userID int64) (*models.UserState, error)
	SetState(ctx context.Context, state *models.UserState) error
	ClearState(ctx context.Context, userID int64) error
	// CheckRateLimit counts one hit and reports whether the user is still within limit per window.
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}
