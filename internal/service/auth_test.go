package service_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shenikar/mutual_aid_system/internal/models"
	"github.com/shenikar/mutual_aid_system/internal/service"
	"github.com/shenikar/mutual_aid_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"
)

// newTestAuthService - вспомогательная функция для создания инстанса сервиса с моками.
func newTestAuthService(t *testing.T) (service.AuthService, *mocks.MockUserRepository, *mocks.MockTokenManager) {
	ctrl := gomock.NewController(t)
	usersMock := mocks.NewMockUserRepository(ctrl)
	tokensMock := mocks.NewMockTokenManager(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	svc := service.NewAuthService(usersMock, tokensMock, logger)
	return svc, usersMock, tokensMock
}

func TestRegister_Success(t *testing.T) {
	// Подготовка
	svc, usersMock, tokensMock := newTestAuthService(t)
	ctx := context.Background()
	input := service.RegisterInput{
		FullName:    "Мария Петрова",
		PhoneNumber: "+79001234567",
		Password:    "secret123",
		GetHelp:     true,
		OfferHelp:   true,
	}
	userID := uuid.New()

	// Ожидания
	usersMock.EXPECT().
		ExistsByPhoneOrEmail(ctx, input.PhoneNumber, gomock.Nil()).
		Return(false, nil).
		Times(1)

	usersMock.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.User) error {
			// Пароль хранится только в виде bcrypt-хеша
			assert.NotEqual(t, input.Password, u.PasswordHash)
			require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Password)))
			assert.True(t, u.Settings.PushEnabled)
			u.ID = userID
			return nil
		}).
		Times(1)

	tokensMock.EXPECT().
		Issue(input.PhoneNumber).
		Return("access-token", nil).
		Times(1)

	// Действие
	token, user, err := svc.Register(ctx, input)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "access-token", token)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "Мария Петрова", user.FullName)
}

func TestRegister_Duplicate(t *testing.T) {
	// Подготовка
	svc, usersMock, _ := newTestAuthService(t)
	ctx := context.Background()
	input := service.RegisterInput{
		FullName:    "Мария Петрова",
		PhoneNumber: "+79001234567",
		Password:    "secret123",
	}

	// Ожидания
	usersMock.EXPECT().
		ExistsByPhoneOrEmail(ctx, input.PhoneNumber, gomock.Nil()).
		Return(true, nil).
		Times(1)

	// Действие
	token, user, err := svc.Register(ctx, input)

	// Проверки
	require.ErrorIs(t, err, service.ErrUserExists)
	assert.Empty(t, token)
	assert.Nil(t, user)
}

func TestLogin_Success(t *testing.T) {
	// Подготовка
	svc, usersMock, tokensMock := newTestAuthService(t)
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		FullName:     "Мария Петрова",
		PhoneNumber:  "+79001234567",
		PasswordHash: string(hash),
	}

	// Ожидания
	usersMock.EXPECT().
		FindByLogin(ctx, "+79001234567").
		Return(user, nil).
		Times(1)

	tokensMock.EXPECT().
		Issue(user.PhoneNumber).
		Return("access-token", nil).
		Times(1)

	// Действие
	token, loggedIn, err := svc.Login(ctx, "+79001234567", "secret123")

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "access-token", token)
	assert.Equal(t, user.ID, loggedIn.ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	// Подготовка
	svc, usersMock, _ := newTestAuthService(t)
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		PhoneNumber:  "+79001234567",
		PasswordHash: string(hash),
	}

	// Ожидания
	usersMock.EXPECT().
		FindByLogin(ctx, "+79001234567").
		Return(user, nil).
		Times(1)

	// Действие
	token, loggedIn, err := svc.Login(ctx, "+79001234567", "wrong-password")

	// Проверки
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
	assert.Empty(t, token)
	assert.Nil(t, loggedIn)
}

func TestLogin_UnknownUser(t *testing.T) {
	// Подготовка
	svc, usersMock, _ := newTestAuthService(t)
	ctx := context.Background()

	// Ожидания: неизвестный логин даёт тот же отказ, что и неверный пароль
	usersMock.EXPECT().
		FindByLogin(ctx, "nobody@example.com").
		Return(nil, nil).
		Times(1)

	// Действие
	token, loggedIn, err := svc.Login(ctx, "nobody@example.com", "secret123")

	// Проверки
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
	assert.Empty(t, token)
	assert.Nil(t, loggedIn)
}

func TestIdentify_Success(t *testing.T) {
	// Подготовка
	svc, usersMock, tokensMock := newTestAuthService(t)
	ctx := context.Background()
	user := &models.User{
		ID:          uuid.New(),
		PhoneNumber: "+79001234567",
	}

	// Ожидания
	tokensMock.EXPECT().
		Verify("access-token").
		Return("+79001234567", nil).
		Times(1)

	usersMock.EXPECT().
		FindByLogin(ctx, "+79001234567").
		Return(user, nil).
		Times(1)

	// Действие
	identified, err := svc.Identify(ctx, "access-token")

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, user.ID, identified.ID)
}

func TestIdentify_InvalidToken(t *testing.T) {
	// Подготовка
	svc, _, tokensMock := newTestAuthService(t)
	ctx := context.Background()

	// Ожидания
	tokensMock.EXPECT().
		Verify("garbage").
		Return("", fmt.Errorf("подпись не совпала")).
		Times(1)

	// Действие
	identified, err := svc.Identify(ctx, "garbage")

	// Проверки
	require.ErrorIs(t, err, service.ErrInvalidToken)
	assert.Nil(t, identified)
}

func TestIdentify_SubjectGone(t *testing.T) {
	// Подготовка
	svc, usersMock, tokensMock := newTestAuthService(t)
	ctx := context.Background()

	// Ожидания: токен валиден, но пользователь уже удалён
	tokensMock.EXPECT().
		Verify("access-token").
		Return("+79001234567", nil).
		Times(1)

	usersMock.EXPECT().
		FindByLogin(ctx, "+79001234567").
		Return(nil, nil).
		Times(1)

	// Действие
	identified, err := svc.Identify(ctx, "access-token")

	// Проверки
	require.ErrorIs(t, err, service.ErrInvalidToken)
	assert.Nil(t, identified)
}
