package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shenikar/mutual_aid_system/internal/models"
	"github.com/sirupsen/logrus"
)

// UserService определяет контракт для профиля и трекинга пользователя
type UserService interface {
	UpdateLocation(ctx context.Context, userID uuid.UUID, lat, lon float64) error
	Profile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	UpdateSettings(ctx context.Context, userID uuid.UUID, settings models.UserSettings) error
}

type userService struct {
	users  UserRepository
	logger *logrus.Logger
}

func NewUserService(users UserRepository, logger *logrus.Logger) UserService {
	return &userService{
		users:  users,
		logger: logger,
	}
}

// UpdateLocation сохраняет последнюю позицию и отметку активности пользователя.
// Отметка питает счётчик "активных помощников" в ListActive.
func (s *userService) UpdateLocation(ctx context.Context, userID uuid.UUID, lat, lon float64) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "user",
		"method":  "UpdateLocation",
		"user_id": userID,
	})

	if err := s.users.UpdateLocation(ctx, userID, lat, lon); err != nil {
		log.WithError(err).Error("Failed to update user location")
		return fmt.Errorf("service: could not update location: %w", err)
	}

	log.Debug("User location updated")
	return nil
}

// Profile возвращает свежую проекцию профиля с локальным рангом
func (s *userService) Profile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "user",
		"method":  "Profile",
		"user_id": userID,
	})

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		log.WithError(err).Error("Failed to get user from repository")
		return nil, fmt.Errorf("service: could not get user: %w", err)
	}

	return &models.UserProfile{
		FullName:   user.FullName,
		Points:     user.Points,
		HelpsGiven: user.HelpsGiven,
		LocalRank:  localRank(user.HelpsGiven),
		Verified:   user.Verified,
	}, nil
}

// UpdateSettings сохраняет настройки пользователя
func (s *userService) UpdateSettings(ctx context.Context, userID uuid.UUID, settings models.UserSettings) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "user",
		"method":  "UpdateSettings",
		"user_id": userID,
	})

	if err := s.users.UpdateSettings(ctx, userID, settings); err != nil {
		log.WithError(err).Error("Failed to update user settings")
		return fmt.Errorf("service: could not update settings: %w", err)
	}

	log.Info("User settings updated")
	return nil
}

// localRank - упрощённый расчёт локального ранга по числу оказанных помощей
func localRank(helpsGiven int) int {
	switch {
	case helpsGiven > 10:
		return 1
	case helpsGiven > 5:
		return 3
	default:
		return 8
	}
}
