package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/mutual_aid_system/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository определяет контракт для работы с бд пользователей,
// включая счётчики вознаграждений
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// FindByLogin ищет пользователя по email либо номеру телефона.
	// Возвращает nil, nil если пользователь не найден.
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	ExistsByPhoneOrEmail(ctx context.Context, phone string, email *string) (bool, error)
	// IncrementRewards атомарно увеличивает счётчики points и helps_given
	IncrementRewards(ctx context.Context, userID uuid.UUID, points, helps int) error
	CountActiveSince(ctx context.Context, since time.Time) (int, error)
	UpdateLocation(ctx context.Context, userID uuid.UUID, lat, lon float64) error
	UpdateSettings(ctx context.Context, userID uuid.UUID, settings models.UserSettings) error
	ListIDsExcept(ctx context.Context, exclude uuid.UUID) ([]uuid.UUID, error)
}

// TokenManager выпускает и проверяет бирки доступа
type TokenManager interface {
	Issue(subject string) (string, error)
	Verify(token string) (string, error)
}

// RegisterInput - данные регистрации нового пользователя
type RegisterInput struct {
	FullName    string
	PhoneNumber string
	Email       *string
	Password    string
	GetHelp     bool
	OfferHelp   bool
}

// AuthService определяет контракт для регистрации, входа и проверки личности
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (string, *models.User, error)
	Login(ctx context.Context, username, password string) (string, *models.User, error)
	// Identify разрешает bearer-токен в пользователя; любая причина отказа
	// сворачивается в ErrInvalidToken
	Identify(ctx context.Context, accessToken string) (*models.User, error)
}

type authService struct {
	users  UserRepository
	tokens TokenManager
	logger *logrus.Logger
}

func NewAuthService(users UserRepository, tokens TokenManager, logger *logrus.Logger) AuthService {
	return &authService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// Register регистрирует пользователя и сразу выдает токен доступа
func (s *authService) Register(ctx context.Context, input RegisterInput) (string, *models.User, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "auth",
		"method":  "Register",
		"phone":   input.PhoneNumber,
	})
	log.Info("Registering a new user")

	exists, err := s.users.ExistsByPhoneOrEmail(ctx, input.PhoneNumber, input.Email)
	if err != nil {
		log.WithError(err).Error("Failed to check user existence")
		return "", nil, fmt.Errorf("service: could not check user existence: %w", err)
	}
	if exists {
		log.Warn("User already exists")
		return "", nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.WithError(err).Error("Failed to hash password")
		return "", nil, fmt.Errorf("service: could not hash password: %w", err)
	}

	user := &models.User{
		FullName:     input.FullName,
		PhoneNumber:  input.PhoneNumber,
		Email:        input.Email,
		PasswordHash: string(hash),
		GetHelp:      input.GetHelp,
		OfferHelp:    input.OfferHelp,
		Settings: models.UserSettings{
			GetHelp:     input.GetHelp,
			OfferHelp:   input.OfferHelp,
			PushEnabled: true,
		},
	}
	if err := s.users.Create(ctx, user); err != nil {
		log.WithError(err).Error("Failed to create user in repository")
		return "", nil, fmt.Errorf("service: could not create user: %w", err)
	}

	accessToken, err := s.tokens.Issue(user.PhoneNumber)
	if err != nil {
		log.WithError(err).Error("Failed to issue access token")
		return "", nil, fmt.Errorf("service: could not issue access token: %w", err)
	}

	log.WithField("user_id", user.ID).Info("User registered successfully")
	return accessToken, user, nil
}

// Login проверяет пару логин/пароль и выдает токен доступа.
// Неизвестный логин и неверный пароль дают одинаковый отказ.
func (s *authService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "auth",
		"method":  "Login",
	})
	log.Info("User login attempt")

	user, err := s.users.FindByLogin(ctx, username)
	if err != nil {
		log.WithError(err).Error("Failed to find user in repository")
		return "", nil, fmt.Errorf("service: could not find user: %w", err)
	}
	if user == nil {
		log.Warn("Login attempt for unknown user")
		return "", nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Warn("Login attempt with wrong password")
		return "", nil, ErrInvalidCredentials
	}

	accessToken, err := s.tokens.Issue(user.PhoneNumber)
	if err != nil {
		log.WithError(err).Error("Failed to issue access token")
		return "", nil, fmt.Errorf("service: could not issue access token: %w", err)
	}

	log.WithField("user_id", user.ID).Info("User logged in successfully")
	return accessToken, user, nil
}

// Identify разрешает токен доступа в пользователя
func (s *authService) Identify(ctx context.Context, accessToken string) (*models.User, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "auth",
		"method":  "Identify",
	})

	subject, err := s.tokens.Verify(accessToken)
	if err != nil {
		log.WithError(err).Warn("Access token verification failed")
		return nil, ErrInvalidToken
	}

	user, err := s.users.FindByLogin(ctx, subject)
	if err != nil {
		log.WithError(err).Error("Failed to find token subject in repository")
		return nil, fmt.Errorf("service: could not find user: %w", err)
	}
	if user == nil {
		log.Warn("Token subject no longer exists")
		return nil, ErrInvalidToken
	}

	return user, nil
}
