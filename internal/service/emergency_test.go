package service_test

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/mutual_aid_system/internal/config"
	"github.com/shenikar/mutual_aid_system/internal/fanout"
	fanout_mocks "github.com/shenikar/mutual_aid_system/internal/fanout/mocks"
	"github.com/shenikar/mutual_aid_system/internal/models"
	"github.com/shenikar/mutual_aid_system/internal/service"
	"github.com/shenikar/mutual_aid_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newTestEmergencyService - вспомогательная функция для создания инстанса сервиса с моками.
func newTestEmergencyService(t *testing.T) (service.EmergencyService, *mocks.MockEmergencyRepository, *mocks.MockUserRepository, *mocks.MockNotificationRepository, *fanout_mocks.MockAlertPublisher) {
	ctrl := gomock.NewController(t)
	repoMock := mocks.NewMockEmergencyRepository(ctrl)
	usersMock := mocks.NewMockUserRepository(ctrl)
	notificationsMock := mocks.NewMockNotificationRepository(ctrl)
	publisherMock := fanout_mocks.NewMockAlertPublisher(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		ActiveWindowMinutes: 60,
		InboxLimit:          50,
	}

	svc := service.NewEmergencyService(repoMock, usersMock, notificationsMock, publisherMock, logger, cfg)
	return svc, repoMock, usersMock, notificationsMock, publisherMock
}

func TestCreateEmergency_Success(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, publisherMock := newTestEmergencyService(t)
	ctx := context.Background()
	requester := &models.User{
		ID:       uuid.New(),
		FullName: "Мария Петрова",
	}
	emergencyID := uuid.New()
	createdAt := time.Now()

	// Ожидания
	repoMock.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, e *models.Emergency) error {
			e.ID = emergencyID
			e.CreatedAt = createdAt
			return nil
		}).
		Times(1)

	repoMock.EXPECT().
		InvalidateActiveCache(ctx).
		Return(nil).
		Times(1)

	publisherMock.EXPECT().
		Publish(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, event fanout.AlertEvent) error {
			assert.Equal(t, emergencyID, event.EmergencyID)
			assert.Equal(t, requester.ID, event.RequesterID)
			assert.Equal(t, "Мария Петрова", event.RequesterName)
			assert.Equal(t, "medical", event.Category)
			return nil
		}).
		Times(1)

	// Действие
	emergency, err := svc.Create(ctx, requester, "medical", "Нужна помощь", 55.75, 37.61)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, emergencyID, emergency.ID)
	assert.Equal(t, models.EmergencyStatusActive, emergency.Status)
	assert.Equal(t, requester.ID, emergency.RequesterID)
	assert.Equal(t, "Мария Петрова", emergency.RequesterName)
	assert.Nil(t, emergency.HelperID)
}

func TestCreateEmergency_PublishFailureDoesNotFailCreate(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, publisherMock := newTestEmergencyService(t)
	ctx := context.Background()
	requester := &models.User{ID: uuid.New(), FullName: "Иван Иванов"}

	// Ожидания: заявка записана, но очередь рассылки недоступна
	repoMock.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)
	repoMock.EXPECT().InvalidateActiveCache(ctx).Return(nil).Times(1)
	publisherMock.EXPECT().
		Publish(ctx, gomock.Any()).
		Return(fmt.Errorf("redis недоступен")).
		Times(1)

	// Действие
	emergency, err := svc.Create(ctx, requester, "fire", "", 55.0, 37.0)

	// Проверки: сбой публикации не откатывает создание
	require.NoError(t, err)
	assert.NotNil(t, emergency)
}

func TestCreateEmergency_RepositoryError(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestEmergencyService(t)
	ctx := context.Background()
	requester := &models.User{ID: uuid.New(), FullName: "Иван Иванов"}

	// Ожидания
	repoMock.EXPECT().
		Create(ctx, gomock.Any()).
		Return(fmt.Errorf("ошибка БД")).
		Times(1)

	// Действие
	emergency, err := svc.Create(ctx, requester, "fire", "", 55.0, 37.0)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, emergency)
}

func TestListActive_FromCache(t *testing.T) {
	// Подготовка
	svc, repoMock, usersMock, _, _ := newTestEmergencyService(t)
	ctx := context.Background()
	cached := []*models.Emergency{
		{ID: uuid.New(), Status: models.EmergencyStatusActive},
	}

	// Ожидания
	repoMock.EXPECT().
		GetActiveFromCache(ctx).
		Return(cached, nil).
		Times(1)

	usersMock.EXPECT().
		CountActiveSince(ctx, gomock.Any()).
		Return(3, nil).
		Times(1)

	// Действие
	emergencies, activeHelpers, err := svc.ListActive(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, cached, emergencies)
	assert.Equal(t, 3, activeHelpers)
}

func TestListActive_FromDB(t *testing.T) {
	// Подготовка
	svc, repoMock, usersMock, _, _ := newTestEmergencyService(t)
	ctx := context.Background()
	fromDB := []*models.Emergency{
		{ID: uuid.New(), Status: models.EmergencyStatusActive},
		{ID: uuid.New(), Status: models.EmergencyStatusActive},
	}

	// Ожидания
	// 1. Промах кеша
	repoMock.EXPECT().
		GetActiveFromCache(ctx).
		Return(nil, nil).
		Times(1)

	// 2. Попадание в БД
	repoMock.EXPECT().
		FindActive(ctx).
		Return(fromDB, nil).
		Times(1)

	// 3. Запись в кеш
	repoMock.EXPECT().
		SetActiveCache(ctx, fromDB).
		Return(nil).
		Times(1)

	usersMock.EXPECT().
		CountActiveSince(ctx, gomock.Any()).
		Return(1, nil).
		Times(1)

	// Действие
	emergencies, activeHelpers, err := svc.ListActive(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, fromDB, emergencies)
	assert.Equal(t, 1, activeHelpers)
}

func TestAcceptEmergency_Success(t *testing.T) {
	// Подготовка
	svc, repoMock, _, notificationsMock, _ := newTestEmergencyService(t)
	ctx := context.Background()
	emergencyID := uuid.New()
	requesterID := uuid.New()
	helper := &models.User{ID: uuid.New(), FullName: "Пётр Сидоров"}
	helperName := helper.FullName
	accepted := &models.Emergency{
		ID:          emergencyID,
		RequesterID: requesterID,
		Status:      models.EmergencyStatusAccepted,
		HelperID:    &helper.ID,
		HelperName:  &helperName,
	}

	// Ожидания
	repoMock.EXPECT().
		Accept(ctx, emergencyID, helper.ID, helper.FullName).
		Return(accepted, nil).
		Times(1)

	repoMock.EXPECT().
		InvalidateActiveCache(ctx).
		Return(nil).
		Times(1)

	notificationsMock.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, n *models.Notification) error {
			assert.Equal(t, requesterID, n.UserID)
			assert.Equal(t, models.NotificationKindHelp, n.Kind)
			assert.Contains(t, n.Body, "Пётр Сидоров")
			return nil
		}).
		Times(1)

	// Действие
	emergency, err := svc.Accept(ctx, emergencyID, helper)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.EmergencyStatusAccepted, emergency.Status)
	require.NotNil(t, emergency.HelperID)
	assert.Equal(t, helper.ID, *emergency.HelperID)
}

func TestAcceptEmergency_Conflict(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestEmergencyService(t)
	ctx := context.Background()
	emergencyID := uuid.New()
	helper := &models.User{ID: uuid.New(), FullName: "Пётр Сидоров"}

	// Ожидания: условное обновление не совпало - заявка занята либо не существует
	repoMock.EXPECT().
		Accept(ctx, emergencyID, helper.ID, helper.FullName).
		Return(nil, nil).
		Times(1)

	// Действие
	emergency, err := svc.Accept(ctx, emergencyID, helper)

	// Проверки
	require.ErrorIs(t, err, service.ErrEmergencyConflict)
	assert.Nil(t, emergency)
}

func TestAcceptEmergency_OnlyOneConcurrentWinner(t *testing.T) {
	// Подготовка
	svc, repoMock, _, notificationsMock, _ := newTestEmergencyService(t)
	emergencyID := uuid.New()
	requesterID := uuid.New()
	const helpers = 16

	// Ожидания: репозиторий ведёт себя как условное обновление -
	// совпадает ровно у первого вызова
	var taken int32
	repoMock.EXPECT().
		Accept(gomock.Any(), emergencyID, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id, helperID uuid.UUID, helperName string) (*models.Emergency, error) {
			if !atomic.CompareAndSwapInt32(&taken, 0, 1) {
				return nil, nil
			}
			name := helperName
			return &models.Emergency{
				ID:          id,
				RequesterID: requesterID,
				Status:      models.EmergencyStatusAccepted,
				HelperID:    &helperID,
				HelperName:  &name,
			}, nil
		}).
		Times(helpers)

	repoMock.EXPECT().InvalidateActiveCache(gomock.Any()).Return(nil).Times(1)
	notificationsMock.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	// Действие: все помощники пытаются принять заявку одновременно
	var wg sync.WaitGroup
	var wins, conflicts int32
	for i := 0; i < helpers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			helper := &models.User{ID: uuid.New(), FullName: fmt.Sprintf("Helper %d", n)}
			_, err := svc.Accept(context.Background(), emergencyID, helper)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case err == service.ErrEmergencyConflict:
				atomic.AddInt32(&conflicts, 1)
			}
		}(i)
	}
	wg.Wait()

	// Проверки: ровно один победитель, остальные получают конфликт
	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(helpers-1), conflicts)
}

func TestCompleteEmergency_Success_AwardsReward(t *testing.T) {
	// Подготовка
	svc, repoMock, usersMock, notificationsMock, _ := newTestEmergencyService(t)
	ctx := context.Background()
	emergencyID := uuid.New()
	helperID := uuid.New()
	helperName := "Пётр Сидоров"
	requester := &models.User{ID: uuid.New(), FullName: "Мария Петрова"}
	accepted := &models.Emergency{
		ID:            emergencyID,
		RequesterID:   requester.ID,
		RequesterName: requester.FullName,
		Status:        models.EmergencyStatusAccepted,
		HelperID:      &helperID,
		HelperName:    &helperName,
	}

	// Ожидания
	repoMock.EXPECT().GetByID(ctx, emergencyID).Return(accepted, nil).Times(1)
	repoMock.EXPECT().Resolve(ctx, emergencyID).Return(true, nil).Times(1)
	repoMock.EXPECT().InvalidateActiveCache(ctx).Return(nil).Times(1)

	// Награда начисляется ровно один раз
	usersMock.EXPECT().
		IncrementRewards(ctx, helperID, service.RewardPoints, 1).
		Return(nil).
		Times(1)

	notificationsMock.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, n *models.Notification) error {
			assert.Equal(t, helperID, n.UserID)
			assert.Equal(t, models.NotificationKindReward, n.Kind)
			assert.Contains(t, n.Body, "20 points")
			assert.Contains(t, n.Body, "Мария Петрова")
			return nil
		}).
		Times(1)

	// Действие
	err := svc.Complete(ctx, emergencyID, requester)

	// Проверки
	require.NoError(t, err)
}

func TestCompleteEmergency_NotRequester(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestEmergencyService(t)
	ctx := context.Background()
	emergencyID := uuid.New()
	stranger := &models.User{ID: uuid.New(), FullName: "Посторонний"}
	accepted := &models.Emergency{
		ID:          emergencyID,
		RequesterID: uuid.New(),
		Status:      models.EmergencyStatusAccepted,
	}

	// Ожидания: до условного обновления дело не доходит
	repoMock.EXPECT().GetByID(ctx, emergencyID).Return(accepted, nil).Times(1)

	// Действие
	err := svc.Complete(ctx, emergencyID, stranger)

	// Проверки
	require.ErrorIs(t, err, service.ErrNotRequester)
}

func TestCompleteEmergency_NotFound(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestEmergencyService(t)
	ctx := context.Background()
	emergencyID := uuid.New()
	requester := &models.User{ID: uuid.New()}

	// Ожидания
	repoMock.EXPECT().GetByID(ctx, emergencyID).Return(nil, service.ErrEmergencyNotFound).Times(1)

	// Действие
	err := svc.Complete(ctx, emergencyID, requester)

	// Проверки
	require.ErrorIs(t, err, service.ErrEmergencyNotFound)
}

func TestCompleteEmergency_AlreadyResolved(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestEmergencyService(t)
	ctx := context.Background()
	emergencyID := uuid.New()
	helperID := uuid.New()
	requester := &models.User{ID: uuid.New()}
	resolved := &models.Emergency{
		ID:          emergencyID,
		RequesterID: requester.ID,
		Status:      models.EmergencyStatusResolved,
		HelperID:    &helperID,
	}

	// Ожидания: условие Resolve не совпало, награда не начисляется повторно
	repoMock.EXPECT().GetByID(ctx, emergencyID).Return(resolved, nil).Times(1)
	repoMock.EXPECT().Resolve(ctx, emergencyID).Return(false, nil).Times(1)

	// Действие
	err := svc.Complete(ctx, emergencyID, requester)

	// Проверки
	require.ErrorIs(t, err, service.ErrEmergencyNotFound)
}

func TestCompleteEmergency_NoHelper_SkipsReward(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestEmergencyService(t)
	ctx := context.Background()
	emergencyID := uuid.New()
	requester := &models.User{ID: uuid.New(), FullName: "Мария Петрова"}
	active := &models.Emergency{
		ID:            emergencyID,
		RequesterID:   requester.ID,
		RequesterName: requester.FullName,
		Status:        models.EmergencyStatusActive,
	}

	// Ожидания: помощник не назначен - IncrementRewards не вызывается
	repoMock.EXPECT().GetByID(ctx, emergencyID).Return(active, nil).Times(1)
	repoMock.EXPECT().Resolve(ctx, emergencyID).Return(true, nil).Times(1)
	repoMock.EXPECT().InvalidateActiveCache(ctx).Return(nil).Times(1)

	// Действие
	err := svc.Complete(ctx, emergencyID, requester)

	// Проверки
	require.NoError(t, err)
}
