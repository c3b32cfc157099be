// Package service wraps dialog state handling for the bot handlers.
package service

import (
	"context"
	"time"

	"deskbot/internal/models"
	"deskbot/internal/repository"

	"github.com/rs/zerolog"
)

type StateService struct {
	stateRepo repository.StateRepository
	logger    zerolog.Logger
}

func NewStateService(stateRepo repository.StateRepository, logger zerolog.Logger) *StateService {
	return &StateService{
		stateRepo: stateRepo,
		logger:    logger.With().Str("component", "state").Logger(),
	}
}

// GetUserState returns nil when the user is not in a dialog.
func (s *StateService) GetUserState(ctx context.Context, userID int64) (*models.UserState, error) {
	state, err := s.stateRepo.GetState(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error getting state")
		return nil, err
	}
	return state, nil
}

func (s *StateService) SetUserState(ctx context.Context, userID int64, step string, data map[string]interface{}) error {
	if data == nil {
		data = make(map[string]interface{})
	}
	state := &models.UserState{
		UserID:   userID,
		Step:     step,
		TempData: data,
	}
	return s.stateRepo.SetState(ctx, state)
}

func (s *StateService) ClearUserState(ctx context.Context, userID int64) error {
	return s.stateRepo.ClearState(ctx, userID)
}

// UpdateUserStateData sets one key and optionally advances the step. An empty step keeps the current one.
func (s *StateService) UpdateUserStateData(ctx context.Context, userID int64, step, key string, value interface{}) error {
	state, err := s.stateRepo.GetState(ctx, userID)
	if err != nil {
		return err
	}
	if state == nil {
		state = &models.UserState{UserID: userID}
	}
	if state.TempData == nil {
		state.TempData = make(map[string]interface{})
	}
	state.TempData[key] = value
	if step != "" {
		state.Step = step
	}
	return s.stateRepo.SetState(ctx, state)
}

// Allow reports whether the user is within the per-minute message limit.
// Storage errors let the message through.
func (s *StateService) Allow(ctx context.Context, userID int64, perMinute int) bool {
	if perMinute <= 0 {
		return true
	}
	ok, err := s.stateRepo.CheckRateLimit(ctx, userID, perMinute, time.Minute)
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Rate limit check failed")
		return true
	}
	return ok
}
