package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/mutual_aid_system/internal/models"
	"github.com/sirupsen/logrus"
)

const popRetryDelay = 5 * time.Second

// UserDirectory отдает получателей рассылки
type UserDirectory interface {
	ListIDsExcept(ctx context.Context, exclude uuid.UUID) ([]uuid.UUID, error)
}

// Outbox - приёмник уведомлений
type Outbox interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// AlertWorker разбирает очередь событий и раскладывает alert-уведомления
// по ящикам всех пользователей, кроме автора заявки
type AlertWorker struct {
	redisClient *redis.Client
	users       UserDirectory
	outbox      Outbox
	logger      *logrus.Logger
}

// NewAlertWorker создает новый AlertWorker
func NewAlertWorker(redisClient *redis.Client, users UserDirectory, outbox Outbox, logger *logrus.Logger) *AlertWorker {
	return &AlertWorker{
		redisClient: redisClient,
		users:       users,
		outbox:      outbox,
		logger:      logger,
	}
}

// Start запускает горутину для обработки очереди рассылки
func (w *AlertWorker) Start(ctx context.Context) {
	w.logger.Info("Starting alert fan-out worker...")
	go func() {
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Stopping alert fan-out worker.")
				return
			default:
				// BRPop - блокирующее извлечение из правой части списка (очереди)
				// 0 означает бесконечное ожидание
				result, err := w.redisClient.BRPop(ctx, 0, alertQueueKey).Result()
				if err != nil {
					if errors.Is(err, context.Canceled) {
						continue // Контекст отменен, но не ошибка Redis
					}
					w.logger.WithError(err).Error("Failed to pop alert event from Redis")
					time.Sleep(popRetryDelay) // Ждем перед повторной попыткой
					continue
				}

				// result[0] - ключ, result[1] - значение
				var event AlertEvent
				if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
					w.logger.WithError(err).Error("Failed to unmarshal alert event from Redis")
					continue
				}

				w.Deliver(ctx, event)
			}
		}
	}()
}

// Deliver рассылает alert-уведомления по одному на получателя.
// Сбой доставки одному получателю логируется и не прерывает остальных;
// повторных попыток нет.
func (w *AlertWorker) Deliver(ctx context.Context, event AlertEvent) {
	log := w.logger.WithFields(logrus.Fields{
		"worker":       "fanout",
		"emergency_id": event.EmergencyID,
	})
	log.Debug("Delivering alert notifications...")

	recipients, err := w.users.ListIDsExcept(ctx, event.RequesterID)
	if err != nil {
		log.WithError(err).Error("Failed to list alert recipients")
		return
	}

	body := fmt.Sprintf("%s triggered an SOS nearby: %s", event.RequesterName, event.Description)
	delivered := 0
	for _, recipient := range recipients {
		notification := &models.Notification{
			UserID: recipient,
			Title:  "Emergency Alert",
			Body:   body,
			Kind:   models.NotificationKindAlert,
		}
		if err := w.outbox.Create(ctx, notification); err != nil {
			log.WithError(err).WithField("recipient", recipient).Warn("Failed to deliver alert notification")
			continue
		}
		delivered++
	}

	log.WithFields(logrus.Fields{"recipients": len(recipients), "delivered": delivered}).
		Info("Alert fan-out finished")
}
