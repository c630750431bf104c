package models

import (
	"time"

	"github.com/google/uuid"
)

// Skill представляет навык, который пользователь предлагает или ищет
type Skill struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"`  // offered, wanted
	Level       string    `json:"level"` // beginner, intermediate, advanced, expert
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
