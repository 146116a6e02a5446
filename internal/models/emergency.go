package models

import (
	"time"

	"github.com/google/uuid"
)

type EmergencyStatus string

const (
	EmergencyStatusActive   EmergencyStatus = "active"
	EmergencyStatusAccepted EmergencyStatus = "accepted"
	EmergencyStatusResolved EmergencyStatus = "resolved"
)

// Emergency представляет один SOS-запрос с жизненным циклом active -> accepted -> resolved.
// Имена заявителя и помощника - снимки на момент создания/принятия, они не перечитываются из users.
type Emergency struct {
	ID            uuid.UUID       `json:"id"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Latitude      float64         `json:"latitude"`
	Longitude     float64         `json:"longitude"`
	RequesterID   uuid.UUID       `json:"requester_id"`
	RequesterName string          `json:"requester_name"`
	Status        EmergencyStatus `json:"status"`
	HelperID      *uuid.UUID      `json:"helper_id,omitempty"`
	HelperName    *string         `json:"helper_name,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}
