package models

import (
	"time"

	"github.com/google/uuid"
)

type HistoryRole string

const (
	HistoryRoleRequested HistoryRole = "requested"
	HistoryRoleResponded HistoryRole = "responded"
)

// HistoryEntry - нормализованная запись ленты истории: заявки пользователя
// и случаи, где он выступал помощником, в одном списке
type HistoryEntry struct {
	EmergencyID  uuid.UUID       `json:"emergency_id"`
	Role         HistoryRole     `json:"role"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Counterparty string          `json:"counterparty"`
	Status       EmergencyStatus `json:"status"`
	PointsEarned int             `json:"points_earned"`
	CreatedAt    time.Time       `json:"created_at"`
}
