package models

import (
	"time"

	"github.com/google/uuid"
)

// UserSettings - пользовательские настройки, хранятся как jsonb
type UserSettings struct {
	GetHelp     bool `json:"get_help"`
	OfferHelp   bool `json:"offer_help"`
	PushEnabled bool `json:"push_enabled"`
}

type User struct {
	ID            uuid.UUID    `json:"id"`
	FullName      string       `json:"full_name"`
	PhoneNumber   string       `json:"phone_number"`
	Email         *string      `json:"email,omitempty"`
	PasswordHash  string       `json:"-"`
	GetHelp       bool         `json:"get_help"`
	OfferHelp     bool         `json:"offer_help"`
	Points        int          `json:"points"`
	HelpsGiven    int          `json:"helps_given"`
	Verified      bool         `json:"verified"`
	Settings      UserSettings `json:"settings"`
	LastLatitude  *float64     `json:"last_latitude,omitempty"`
	LastLongitude *float64     `json:"last_longitude,omitempty"`
	LastActive    *time.Time   `json:"last_active,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// UserProfile - проекция пользователя для экрана профиля
type UserProfile struct {
	FullName   string `json:"full_name"`
	Points     int    `json:"points"`
	HelpsGiven int    `json:"helps_given"`
	LocalRank  int    `json:"local_rank"`
	Verified   bool   `json:"verified"`
}
