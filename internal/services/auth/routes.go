package auth

import (
	"github.com/gofiber/fiber/v3"
	"github.com/skillswap/skillswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API авторизации
func (s *AuthService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/auth")

	api.Post("/register", s.Register)
	api.Post("/login", s.Login)

	// Защищенные маршруты (требуют авторизации)
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(s.jwtService))
	protected.Get("/me", s.Me)
}
