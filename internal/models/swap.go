package models

import (
	"time"

	"github.com/google/uuid"
)

// SwapStatus представляет статус предложения обмена навыками
type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"
	SwapAccepted  SwapStatus = "accepted"
	SwapRejected  SwapStatus = "rejected"
	SwapCancelled SwapStatus = "cancelled"
	SwapCompleted SwapStatus = "completed"
)

// IsTerminal сообщает, является ли статус конечным
func (s SwapStatus) IsTerminal() bool {
	switch s {
	case SwapRejected, SwapCancelled, SwapCompleted:
		return true
	}
	return false
}

// Valid сообщает, известен ли статус системе
func (s SwapStatus) Valid() bool {
	switch s {
	case SwapPending, SwapAccepted, SwapRejected, SwapCancelled, SwapCompleted:
		return true
	}
	return false
}

// SwapRequest представляет предложение обмена навыками между двумя пользователями
type SwapRequest struct {
	ID             uuid.UUID  `json:"id"`
	FromUserID     uuid.UUID  `json:"from_user_id"`
	ToUserID       uuid.UUID  `json:"to_user_id"`
	OfferedSkillID uuid.UUID  `json:"offered_skill_id"`
	WantedSkillID  uuid.UUID  `json:"wanted_skill_id"`
	Message        string     `json:"message,omitempty"`
	Status         SwapStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Дополнительные поля для API
	FromUser     *User  `json:"from_user,omitempty"`
	ToUser       *User  `json:"to_user,omitempty"`
	OfferedSkill *Skill `json:"offered_skill,omitempty"`
	WantedSkill  *Skill `json:"wanted_skill,omitempty"`
}

// OtherParty возвращает ID второго участника обмена относительно userID
func (sr *SwapRequest) OtherParty(userID uuid.UUID) uuid.UUID {
	if sr.FromUserID == userID {
		return sr.ToUserID
	}
	return sr.FromUserID
}

// Involves сообщает, участвует ли пользователь в обмене
func (sr *SwapRequest) Involves(userID uuid.UUID) bool {
	return sr.FromUserID == userID || sr.ToUserID == userID
}
