package rating

import (
	"github.com/gofiber/fiber/v3"
	"github.com/skillswap/skillswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API оценок
func (s *RatingService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/ratings")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Post("/", s.RateSwap)
	api.Get("/user/:id", s.GetUserRatings)
}
