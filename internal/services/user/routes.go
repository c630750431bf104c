package user

import (
	"github.com/gofiber/fiber/v3"
	"github.com/skillswap/skillswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API пользователей
func (s *UserService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/users")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Get("/me", s.GetProfile)
	api.Put("/me", s.UpdateProfile)
	api.Get("/", s.BrowseUsers)
	api.Get("/:id", s.GetUser)
}
