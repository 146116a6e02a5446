package v1

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest DTO для регистрации пользователя
// @Description DTO для регистрации пользователя
type RegisterRequest struct {
	FullName    string  `json:"full_name" validate:"required,min=2,max=255"`
	PhoneNumber string  `json:"phone_number" validate:"required,min=5,max=32"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Password    string  `json:"password" validate:"required,min=6"`
	GetHelp     bool    `json:"get_help"`
	OfferHelp   bool    `json:"offer_help"`
}

// LoginRequest DTO для входа: username - email либо номер телефона
// @Description DTO для входа
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse DTO с выданным токеном доступа
// @Description DTO с выданным токеном доступа
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	FullName    string `json:"full_name"`
}

// CreateEmergencyRequest DTO для создания SOS-заявки
// @Description DTO для создания SOS-заявки
type CreateEmergencyRequest struct {
	Category    string  `json:"category" validate:"required,min=2,max=64"`
	Description string  `json:"description,omitempty"`
	Latitude    float64 `json:"latitude" validate:"required,latitude"`
	Longitude   float64 `json:"longitude" validate:"required,longitude"`
}

// EmergencyResponse DTO для ответа с информацией о заявке
// @Description DTO для ответа с информацией о заявке
type EmergencyResponse struct {
	ID          uuid.UUID `json:"id"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	CreatedBy   string    `json:"created_by"`
	HelperName  string    `json:"helper_name,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// NearbyResponse DTO для ленты активных заявок
// @Description DTO для ленты активных заявок
type NearbyResponse struct {
	Emergencies   []*EmergencyResponse `json:"emergencies"`
	ActiveHelpers int                  `json:"active_helpers"`
}

// NotificationResponse DTO для уведомления в ящике
// @Description DTO для уведомления в ящике
type NotificationResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Kind      string    `json:"kind"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryEntryResponse DTO для записи ленты истории
// @Description DTO для записи ленты истории
type HistoryEntryResponse struct {
	EmergencyID  uuid.UUID `json:"emergency_id"`
	Role         string    `json:"role"`
	Category     string    `json:"category"`
	Description  string    `json:"description,omitempty"`
	Counterparty string    `json:"counterparty,omitempty"`
	Status       string    `json:"status"`
	PointsEarned int       `json:"points_earned"`
	CreatedAt    time.Time `json:"created_at"`
}

// LocationUpdateRequest DTO для обновления позиции пользователя
// @Description DTO для обновления позиции пользователя
type LocationUpdateRequest struct {
	Latitude  float64 `json:"latitude" validate:"required,latitude"`
	Longitude float64 `json:"longitude" validate:"required,longitude"`
}

// SettingsRequest DTO для обновления настроек пользователя
// @Description DTO для обновления настроек пользователя
type SettingsRequest struct {
	GetHelp     bool `json:"get_help"`
	OfferHelp   bool `json:"offer_help"`
	PushEnabled bool `json:"push_enabled"`
}

// ProfileResponse DTO для профиля пользователя
// @Description DTO для профиля пользователя
type ProfileResponse struct {
	FullName   string `json:"full_name"`
	Points     int    `json:"points"`
	HelpsGiven int    `json:"helps_given"`
	LocalRank  int    `json:"local_rank"`
	Verified   bool   `json:"verified"`
}
