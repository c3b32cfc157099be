// Package access decides who may use the bot and who may administer it.
package access

import (
	"context"
	"errors"
	"fmt"

	"deskbot/internal/database"
	"deskbot/internal/models"

	"github.com/rs/zerolog"
)

// UserRepository is the subset of storage the access checks need.
type UserRepository interface {
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	SetUserBanned(ctx context.Context, telegramID int64, banned bool) error
	SetUserAdmin(ctx context.Context, telegramID int64, isAdmin bool) error
}

// Service combines the users table flags with the admins listed in config.
type Service struct {
	users  UserRepository
	admins map[int64]struct{}
	logger zerolog.Logger
}

func NewService(users UserRepository, configAdmins []int64, logger zerolog.Logger) *Service {
	admins := make(map[int64]struct{}, len(configAdmins))
	for _, id := range configAdmins {
		admins[id] = struct{}{}
	}
	return &Service{
		users:  users,
		admins: admins,
		logger: logger.With().Str("component", "access").Logger(),
	}
}

// IsAdmin reports whether the user is a configured admin or flagged in the database.
func (s *Service) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	if _, ok := s.admins[userID]; ok {
		return true, nil
	}
	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin, nil
}

// CanAccess returns false with a reason if the user is banned.
// Unknown users may access the bot so they can register.
func (s *Service) CanAccess(ctx context.Context, userID int64) (bool, string, error) {
	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return true, "", nil
	}
	if err != nil {
		return false, "", err
	}
	if u.IsBanned {
		return false, "Access to this bot has been revoked.", nil
	}
	return true, "", nil
}

// Middleware checks access before handling any update.
func (s *Service) Middleware(ctx context.Context, userID int64) error {
	ok, reason, err := s.CanAccess(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking access: %w", err)
	}
	if !ok {
		return &AccessDeniedError{Reason: reason}
	}
	return nil
}

// AdminMiddleware checks admin permissions.
func (s *Service) AdminMiddleware(ctx context.Context, userID int64) error {
	ok, err := s.IsAdmin(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking admin status: %w", err)
	}
	if !ok {
		return &AccessDeniedError{Reason: "This command is available to admins only."}
	}
	return nil
}

// Ban blocks a user. Configured admins cannot be banned.
func (s *Service) Ban(ctx context.Context, userID, bannedBy int64) error {
	if err := s.AdminMiddleware(ctx, bannedBy); err != nil {
		return err
	}
	if _, ok := s.admins[userID]; ok {
		return &AccessDeniedError{Reason: "Configured admins cannot be banned."}
	}
	if err := s.users.SetUserBanned(ctx, userID, true); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", userID).Int64("banned_by", bannedBy).Msg("user banned")
	return nil
}

func (s *Service) Unban(ctx context.Context, userID, by int64) error {
	if err := s.AdminMiddleware(ctx, by); err != nil {
		return err
	}
	if err := s.users.SetUserBanned(ctx, userID, false); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", userID).Int64("unbanned_by", by).Msg("user unbanned")
	return nil
}

// SetAdmin grants or revokes the database admin flag.
func (s *Service) SetAdmin(ctx context.Context, userID int64, isAdmin bool, by int64) error {
	if err := s.AdminMiddleware(ctx, by); err != nil {
		return err
	}
	if err := s.users.SetUserAdmin(ctx, userID, isAdmin); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", userID).Bool("admin", isAdmin).Int64("by", by).Msg("admin flag changed")
	return nil
}

// AdminIDs returns the admins from configuration.
func (s *Service) AdminIDs() []int64 {
	ids := make([]int64, 0, len(s.admins))
	for id := range s.admins {
		ids = append(ids, id)
	}
	return ids
}

// AccessDeniedError is returned when user access is denied.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}
