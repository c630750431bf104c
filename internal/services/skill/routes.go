package skill

import (
	"github.com/gofiber/fiber/v3"
	"github.com/skillswap/skillswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API навыков
func (s *SkillService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/skills")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Post("/", s.CreateSkill)
	api.Get("/", s.GetMySkills)
	api.Get("/user/:id", s.GetUserSkills)
	api.Put("/:id", s.UpdateSkill)
	api.Delete("/:id", s.DeleteSkill)
}
