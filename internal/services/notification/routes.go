package notification

import (
	"github.com/gofiber/fiber/v3"
	"github.com/skillswap/skillswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API уведомлений
func (s *NotificationService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/notifications")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Get("/", s.GetNotifications)
	api.Get("/unread-count", s.GetUnreadCount)
	api.Put("/:id/read", s.MarkRead)
	api.Put("/read-all", s.MarkAllRead)
}
