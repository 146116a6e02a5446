package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shenikar/mutual_aid_system/internal/models"
	"github.com/sirupsen/logrus"
)

// HistoryService определяет контракт для ленты истории пользователя
type HistoryService interface {
	For(ctx context.Context, userID uuid.UUID) ([]*models.HistoryEntry, error)
}

type historyService struct {
	repo   EmergencyRepository
	logger *logrus.Logger
}

func NewHistoryService(repo EmergencyRepository, logger *logrus.Logger) HistoryService {
	return &historyService{
		repo:   repo,
		logger: logger,
	}
}

// For сливает заявки пользователя и случаи его помощи в одну ленту,
// отсортированную по убыванию времени создания. Чтение без побочных эффектов.
func (s *historyService) For(ctx context.Context, userID uuid.UUID) ([]*models.HistoryEntry, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "history",
		"method":  "For",
		"user_id": userID,
	})

	requested, err := s.repo.FindByRequester(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Failed to list requested emergencies")
		return nil, fmt.Errorf("service: could not list requested emergencies: %w", err)
	}

	responded, err := s.repo.FindByHelper(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Failed to list responded emergencies")
		return nil, fmt.Errorf("service: could not list responded emergencies: %w", err)
	}

	entries := make([]*models.HistoryEntry, 0, len(requested)+len(responded))
	for _, e := range requested {
		counterparty := ""
		if e.HelperName != nil {
			counterparty = *e.HelperName
		}
		entries = append(entries, &models.HistoryEntry{
			EmergencyID:  e.ID,
			Role:         models.HistoryRoleRequested,
			Category:     e.Category,
			Description:  e.Description,
			Counterparty: counterparty,
			Status:       e.Status,
			CreatedAt:    e.CreatedAt,
		})
	}
	for _, e := range responded {
		points := 0
		if e.Status == models.EmergencyStatusResolved {
			points = RewardPoints
		}
		entries = append(entries, &models.HistoryEntry{
			EmergencyID:  e.ID,
			Role:         models.HistoryRoleResponded,
			Category:     e.Category,
			Description:  e.Description,
			Counterparty: e.RequesterName,
			Status:       e.Status,
			PointsEarned: points,
			CreatedAt:    e.CreatedAt,
		})
	}

	// Новые записи первыми; равные метки времени остаются в порядке слияния
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	log.WithField("count", len(entries)).Info("History assembled")
	return entries, nil
}
