package models

import (
	"time"

	"github.com/google/uuid"
)

// User представляет пользователя платформы
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email,omitempty"`
	Name         string    `json:"name"`
	Location     string    `json:"location,omitempty"`
	ProfilePhoto string    `json:"profile_photo,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	Availability string    `json:"availability,omitempty"`
	IsPublic     bool      `json:"is_public"`
	Role         string    `json:"role,omitempty"` // user, admin
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`

	// Агрегаты рейтинга для API
	AverageRating float64 `json:"average_rating,omitempty"`
	RatingCount   int     `json:"rating_count,omitempty"`
}

// PublicProfile возвращает копию пользователя без приватных полей
func (u User) PublicProfile() User {
	u.Email = ""
	u.Role = ""
	return u
}
