package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/mutual_aid_system/internal/config"
	"github.com/shenikar/mutual_aid_system/internal/fanout"
	"github.com/shenikar/mutual_aid_system/internal/models"
	"github.com/sirupsen/logrus"
)

// RewardPoints - фиксированное вознаграждение помощнику за разрешённую заявку
const RewardPoints = 20

// EmergencyRepository определяет контракт для работы с бд заявок.
// Accept и Resolve - условные обновления: совпадение по текущему статусу
// является единственным механизмом взаимного исключения между запросами.
type EmergencyRepository interface {
	Create(ctx context.Context, emergency *models.Emergency) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Emergency, error)
	// Accept атомарно переводит active -> accepted и записывает снимок помощника.
	// Возвращает nil, nil если условие не совпало (заявка не найдена либо уже занята).
	Accept(ctx context.Context, id, helperID uuid.UUID, helperName string) (*models.Emergency, error)
	// Resolve переводит заявку в resolved, если она ещё не разрешена.
	// false - условие не совпало, заявка уже в терминальном статусе.
	Resolve(ctx context.Context, id uuid.UUID) (bool, error)
	FindActive(ctx context.Context) ([]*models.Emergency, error)
	FindByRequester(ctx context.Context, userID uuid.UUID) ([]*models.Emergency, error)
	FindByHelper(ctx context.Context, userID uuid.UUID) ([]*models.Emergency, error)
	GetActiveFromCache(ctx context.Context) ([]*models.Emergency, error)
	SetActiveCache(ctx context.Context, emergencies []*models.Emergency) error
	InvalidateActiveCache(ctx context.Context) error
}

// EmergencyService определяет контракт для бизнес-логики жизненного цикла заявок
type EmergencyService interface {
	Create(ctx context.Context, requester *models.User, category, description string, lat, lon float64) (*models.Emergency, error)
	ListActive(ctx context.Context) ([]*models.Emergency, int, error)
	Accept(ctx context.Context, id uuid.UUID, helper *models.User) (*models.Emergency, error)
	Complete(ctx context.Context, id uuid.UUID, closer *models.User) error
}

type emergencyService struct {
	repo          EmergencyRepository
	users         UserRepository
	notifications NotificationRepository
	publisher     fanout.AlertPublisher
	logger        *logrus.Logger
	cfg           *config.Config
}

func NewEmergencyService(
	repo EmergencyRepository,
	users UserRepository,
	notifications NotificationRepository,
	publisher fanout.AlertPublisher,
	logger *logrus.Logger,
	cfg *config.Config,
) EmergencyService {
	return &emergencyService{
		repo:          repo,
		users:         users,
		notifications: notifications,
		publisher:     publisher,
		logger:        logger,
		cfg:           cfg,
	}
}

// Create создает заявку в статусе active и ставит событие оповещения в очередь рассылки.
// Рассылка - best-effort: сбой публикации логируется, но не откатывает уже записанную заявку.
func (s *emergencyService) Create(ctx context.Context, requester *models.User, category, description string, lat, lon float64) (*models.Emergency, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "emergency",
		"method":   "Create",
		"user_id":  requester.ID,
		"category": category,
	})
	log.Info("Creating a new emergency")

	emergency := &models.Emergency{
		Category:      category,
		Description:   description,
		Latitude:      lat,
		Longitude:     lon,
		RequesterID:   requester.ID,
		RequesterName: requester.FullName, // снимок имени на момент создания
		Status:        models.EmergencyStatusActive,
	}

	if err := s.repo.Create(ctx, emergency); err != nil {
		log.WithError(err).Error("Failed to create emergency in repository")
		return nil, fmt.Errorf("service: could not create emergency: %w", err)
	}

	if err := s.repo.InvalidateActiveCache(ctx); err != nil {
		log.WithError(err).Warn("Failed to invalidate active emergencies cache")
	}

	event := fanout.AlertEvent{
		EmergencyID:   emergency.ID,
		RequesterID:   emergency.RequesterID,
		RequesterName: emergency.RequesterName,
		Category:      emergency.Category,
		Description:   emergency.Description,
		CreatedAt:     emergency.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// Заявка уже записана, ответ клиенту не блокируем
		log.WithError(err).Error("Failed to enqueue alert fan-out event")
	}

	log.WithField("emergency_id", emergency.ID).Info("Emergency created successfully")
	return emergency, nil
}

// ListActive возвращает все активные заявки и число пользователей,
// проявлявших активность в скользящем окне
func (s *emergencyService) ListActive(ctx context.Context) ([]*models.Emergency, int, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "emergency",
		"method":  "ListActive",
	})

	emergencies, err := s.repo.GetActiveFromCache(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to read active emergencies cache")
	}

	if emergencies == nil {
		emergencies, err = s.repo.FindActive(ctx)
		if err != nil {
			log.WithError(err).Error("Failed to list active emergencies from repository")
			return nil, 0, fmt.Errorf("service: could not list active emergencies: %w", err)
		}
		if err := s.repo.SetActiveCache(ctx, emergencies); err != nil {
			log.WithError(err).Warn("Failed to store active emergencies cache")
		}
	}

	since := time.Now().Add(-time.Duration(s.cfg.ActiveWindowMinutes) * time.Minute)
	activeHelpers, err := s.users.CountActiveSince(ctx, since)
	if err != nil {
		log.WithError(err).Error("Failed to count active users")
		return nil, 0, fmt.Errorf("service: could not count active users: %w", err)
	}

	log.WithFields(logrus.Fields{"count": len(emergencies), "active_helpers": activeHelpers}).Info("Active emergencies listed")
	return emergencies, activeHelpers, nil
}

// Accept - единственная гонкоопасная операция: одно условное обновление
// active -> accepted. Среди любых конкурентных вызовов выигрывает ровно один,
// остальные получают ErrEmergencyConflict. "Не найдено" и "уже занято"
// намеренно не различаются.
func (s *emergencyService) Accept(ctx context.Context, id uuid.UUID, helper *models.User) (*models.Emergency, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "emergency",
		"method":       "Accept",
		"emergency_id": id,
		"helper_id":    helper.ID,
	})
	log.Info("Attempting to accept emergency")

	emergency, err := s.repo.Accept(ctx, id, helper.ID, helper.FullName)
	if err != nil {
		log.WithError(err).Error("Failed to accept emergency in repository")
		return nil, fmt.Errorf("service: could not accept emergency: %w", err)
	}
	if emergency == nil {
		log.Warn("Emergency already taken or not found")
		return nil, ErrEmergencyConflict
	}

	if err := s.repo.InvalidateActiveCache(ctx); err != nil {
		log.WithError(err).Warn("Failed to invalidate active emergencies cache")
	}

	// Уведомляем автора заявки о смене статуса; заявка уже принята,
	// сбой доставки не откатывает принятие
	notification := &models.Notification{
		UserID: emergency.RequesterID,
		Title:  "Help Accepted",
		Body:   fmt.Sprintf("%s accepted your SOS and is on the way.", helper.FullName),
		Kind:   models.NotificationKindHelp,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		log.WithError(err).Error("Failed to notify requester about acceptance")
	}

	log.Info("Emergency accepted successfully")
	return emergency, nil
}

// Complete завершает заявку. Закрыть заявку может только её автор:
// завершение моделирует подтверждение помощи, а не самоотчёт помощника.
// Если помощник назначен - начисляет ему RewardPoints и уведомление kind=reward,
// иначе награда молча пропускается.
func (s *emergencyService) Complete(ctx context.Context, id uuid.UUID, closer *models.User) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "emergency",
		"method":       "Complete",
		"emergency_id": id,
		"closer_id":    closer.ID,
	})
	log.Info("Attempting to complete emergency")

	emergency, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEmergencyNotFound) {
			log.Warn("Emergency not found for completion")
			return ErrEmergencyNotFound
		}
		log.WithError(err).Error("Failed to get emergency from repository")
		return fmt.Errorf("service: could not get emergency: %w", err)
	}

	if emergency.RequesterID != closer.ID {
		log.Warn("Completion attempted by a non-requester")
		return ErrNotRequester
	}

	resolved, err := s.repo.Resolve(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to resolve emergency in repository")
		return fmt.Errorf("service: could not resolve emergency: %w", err)
	}
	if !resolved {
		// Статус уже терминальный: повторное завершение не совпадает с условием
		log.Warn("Emergency is already resolved")
		return ErrEmergencyNotFound
	}

	if err := s.repo.InvalidateActiveCache(ctx); err != nil {
		log.WithError(err).Warn("Failed to invalidate active emergencies cache")
	}

	if emergency.HelperID == nil {
		// Вырожденный путь: заявка закрыта до принятия, награждать некого
		log.Info("Emergency resolved without a helper, reward skipped")
		return nil
	}

	if err := s.users.IncrementRewards(ctx, *emergency.HelperID, RewardPoints, 1); err != nil {
		log.WithError(err).Error("Failed to award reward points to helper")
		return fmt.Errorf("service: could not award reward points: %w", err)
	}

	helperName := ""
	if emergency.HelperName != nil {
		helperName = *emergency.HelperName
	}
	notification := &models.Notification{
		UserID: *emergency.HelperID,
		Title:  "Reward Earned",
		Body:   fmt.Sprintf("%s confirmed your help. You earned %d points!", emergency.RequesterName, RewardPoints),
		Kind:   models.NotificationKindReward,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		log.WithError(err).Error("Failed to notify helper about reward")
		return fmt.Errorf("service: could not notify helper: %w", err)
	}

	log.WithFields(logrus.Fields{"helper_id": *emergency.HelperID, "helper_name": helperName}).
		Info("Emergency resolved and reward awarded")
	return nil
}
