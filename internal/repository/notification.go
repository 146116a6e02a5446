package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/mutual_aid_system/internal/models"
	"github.com/shenikar/mutual_aid_system/internal/service"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) service.NotificationRepository {
	return &NotificationRepository{
		db: db,
	}
}

// Create добавляет запись в ящик получателя. Чистая вставка:
// повторный вызов создаёт второе уведомление.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, title, body, kind)
		VALUES ($1, $2, $3, $4) RETURNING id, is_read, created_at;
	`
	err := r.db.QueryRow(ctx, query,
		notification.UserID,
		notification.Title,
		notification.Body,
		notification.Kind,
	).Scan(&notification.ID, &notification.IsRead, &notification.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListByUser возвращает уведомления пользователя, новые первыми, не больше limit
func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, title, body, kind, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2;
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*models.Notification, 0)
	for rows.Next() {
		notification := &models.Notification{}
		err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.Title,
			&notification.Body,
			&notification.Kind,
			&notification.IsRead,
			&notification.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration in ListByUser: %w", err)
	}
	return notifications, nil
}

// MarkRead помечает уведомление прочитанным, только если оно принадлежит пользователю.
// Фильтр, не совпавший ни с одной строкой, - молчаливый no-op, а не ошибка.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	query := `
		UPDATE notifications SET
			is_read = TRUE
		WHERE id = $1 AND user_id = $2;
	`
	if _, err := r.db.Exec(ctx, query, id, userID); err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return nil
}
