package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotificationKindAlert  NotificationKind = "alert"
	NotificationKindHelp   NotificationKind = "help"
	NotificationKindReward NotificationKind = "reward"
)

// Notification - одна запись доставки, адресованная ровно одному пользователю
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Kind      NotificationKind `json:"kind"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
