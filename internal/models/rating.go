package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating представляет оценку, оставленную после завершённого обмена
type Rating struct {
	ID         uuid.UUID `json:"id"`
	SwapID     uuid.UUID `json:"swap_id"`
	FromUserID uuid.UUID `json:"from_user_id"`
	ToUserID   uuid.UUID `json:"to_user_id"`
	Rating     int       `json:"rating"` // 1-5
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	// Дополнительные поля для API
	FromUser *User `json:"from_user,omitempty"`
}
