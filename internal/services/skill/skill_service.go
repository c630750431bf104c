package skill

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillswap/skillswap-api/internal/config"
	"github.com/skillswap/skillswap-api/internal/db"
	"github.com/skillswap/skillswap-api/internal/models"
	"github.com/skillswap/skillswap-api/internal/utils"
)

// SkillService представляет сервис для работы с навыками
type SkillService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
}

// NewSkillService создает новый экземпляр SkillService
func NewSkillService(cfg *config.Config) *SkillService {
	return &SkillService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
	}
}

var validLevels = map[string]bool{
	"beginner":     true,
	"intermediate": true,
	"advanced":     true,
	"expert":       true,
}

// CreateSkill создает новый навык пользователя
func (s *SkillService) CreateSkill(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	var payload struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Type        string `json:"type"`
		Level       string `json:"level"`
	}

	if err := c.Bind().Body(&payload); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Необходимо указать название навыка"})
	}

	if payload.Type != "offered" && payload.Type != "wanted" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Тип навыка должен быть offered или wanted"})
	}

	if payload.Level == "" {
		payload.Level = "beginner"
	}
	if !validLevels[payload.Level] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Недопустимый уровень навыка"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	skillID := uuid.New()
	now := time.Now()

	_, err = db.Pool.Exec(ctx, `
        INSERT INTO skills (id, user_id, name, description, type, level, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, true, $7, $8)
    `, skillID, userUUID, payload.Name, payload.Description, payload.Type, payload.Level, now, now)

	if err != nil {
		log.Printf("Ошибка создания навыка: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка сохранения навыка"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"skill_id": skillID,
	})
}

// GetMySkills возвращает навыки текущего пользователя
func (s *SkillService) GetMySkills(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	skillType := c.Query("type", "all") // all, offered, wanted

	ctx, cancel := db.GetContext()
	defer cancel()

	query := `
        SELECT id, user_id, name, COALESCE(description, ''), type, level, is_active, created_at, updated_at
        FROM skills
        WHERE user_id = $1 AND is_active = true
    `
	args := []interface{}{userUUID}

	if skillType == "offered" || skillType == "wanted" {
		query += " AND type = $2"
		args = append(args, skillType)
	}

	query += " ORDER BY created_at DESC"

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		log.Printf("Ошибка запроса навыков: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения навыков"})
	}
	defer rows.Close()

	var skills []models.Skill
	for rows.Next() {
		var skill models.Skill
		if err := rows.Scan(
			&skill.ID,
			&skill.UserID,
			&skill.Name,
			&skill.Description,
			&skill.Type,
			&skill.Level,
			&skill.IsActive,
			&skill.CreatedAt,
			&skill.UpdatedAt,
		); err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}
		skills = append(skills, skill)
	}

	return c.JSON(fiber.Map{
		"skills": skills,
		"count":  len(skills),
	})
}

// GetUserSkills возвращает навыки другого пользователя (только публичный профиль)
func (s *SkillService) GetUserSkills(c fiber.Ctx) error {
	targetID := c.Params("id")
	targetUUID, err := uuid.Parse(targetID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var isPublic bool
	err = db.Pool.QueryRow(ctx, `
        SELECT is_public FROM users WHERE id = $1
    `, targetUUID).Scan(&isPublic)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Пользователь не найден"})
		}
		log.Printf("Ошибка запроса пользователя: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка базы данных"})
	}

	if !isPublic {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Профиль пользователя скрыт"})
	}

	rows, err := db.Pool.Query(ctx, `
        SELECT id, user_id, name, COALESCE(description, ''), type, level, is_active, created_at, updated_at
        FROM skills
        WHERE user_id = $1 AND is_active = true
        ORDER BY type, name
    `, targetUUID)

	if err != nil {
		log.Printf("Ошибка запроса навыков: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения навыков"})
	}
	defer rows.Close()

	var skills []models.Skill
	for rows.Next() {
		var skill models.Skill
		if err := rows.Scan(
			&skill.ID,
			&skill.UserID,
			&skill.Name,
			&skill.Description,
			&skill.Type,
			&skill.Level,
			&skill.IsActive,
			&skill.CreatedAt,
			&skill.UpdatedAt,
		); err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}
		skills = append(skills, skill)
	}

	return c.JSON(fiber.Map{
		"skills": skills,
		"count":  len(skills),
	})
}

// UpdateSkill обновляет навык пользователя
func (s *SkillService) UpdateSkill(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	skillID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID навыка"})
	}

	var payload struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Level       string `json:"level"`
	}

	if err := c.Bind().Body(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	if payload.Level != "" && !validLevels[payload.Level] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Недопустимый уровень навыка"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	tag, err := db.Pool.Exec(ctx, `
        UPDATE skills
        SET name = COALESCE(NULLIF($1, ''), name),
            description = COALESCE(NULLIF($2, ''), description),
            level = COALESCE(NULLIF($3, ''), level),
            updated_at = NOW()
        WHERE id = $4 AND user_id = $5 AND is_active = true
    `, payload.Name, payload.Description, payload.Level, skillID, userUUID)

	if err != nil {
		log.Printf("Ошибка обновления навыка: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка обновления навыка"})
	}

	if tag.RowsAffected() == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Навык не найден"})
	}

	return c.JSON(fiber.Map{"success": true})
}

// DeleteSkill деактивирует навык пользователя
func (s *SkillService) DeleteSkill(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	skillID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID навыка"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	// Мягкое удаление: ссылки из существующих обменов остаются валидными
	tag, err := db.Pool.Exec(ctx, `
        UPDATE skills SET is_active = false, updated_at = NOW()
        WHERE id = $1 AND user_id = $2
    `, skillID, userUUID)

	if err != nil {
		log.Printf("Ошибка удаления навыка: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка удаления навыка"})
	}

	if tag.RowsAffected() == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Навык не найден"})
	}

	return c.JSON(fiber.Map{"success": true})
}
