package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shenikar/mutual_aid_system/internal/config"
	"github.com/shenikar/mutual_aid_system/internal/models"
	"github.com/sirupsen/logrus"
)

// NotificationRepository определяет контракт для работы с бд уведомлений.
// Create - чистая вставка без дедупликации. MarkRead обновляет запись только
// если она принадлежит пользователю; несовпадение - молчаливый no-op.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}

// NotificationService определяет контракт для ящика уведомлений пользователя
type NotificationService interface {
	Inbox(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}

type notificationService struct {
	repo   NotificationRepository
	logger *logrus.Logger
	cfg    *config.Config
}

func NewNotificationService(repo NotificationRepository, logger *logrus.Logger, cfg *config.Config) NotificationService {
	return &notificationService{
		repo:   repo,
		logger: logger,
		cfg:    cfg,
	}
}

// Inbox возвращает уведомления пользователя, новые первыми, не больше InboxLimit.
// Курсорной пагинации нет: ограниченного "последние N" для этого домена достаточно.
func (s *notificationService) Inbox(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "notification",
		"method":  "Inbox",
		"user_id": userID,
	})

	notifications, err := s.repo.ListByUser(ctx, userID, s.cfg.InboxLimit)
	if err != nil {
		log.WithError(err).Error("Failed to list notifications from repository")
		return nil, fmt.Errorf("service: could not list notifications: %w", err)
	}

	log.WithField("count", len(notifications)).Info("Inbox listed")
	return notifications, nil
}

// MarkRead помечает уведомление прочитанным. Чужое либо несуществующее
// уведомление не совпадает с фильтром обновления - это не ошибка.
func (s *notificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":         "notification",
		"method":          "MarkRead",
		"notification_id": id,
		"user_id":         userID,
	})

	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		log.WithError(err).Error("Failed to mark notification as read")
		return fmt.Errorf("service: could not mark notification as read: %w", err)
	}

	log.Debug("Notification marked as read")
	return nil
}
