package user

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillswap/skillswap-api/internal/config"
	"github.com/skillswap/skillswap-api/internal/db"
	"github.com/skillswap/skillswap-api/internal/models"
	"github.com/skillswap/skillswap-api/internal/utils"
)

// UserService представляет сервис для работы с профилями пользователей
type UserService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
}

// NewUserService создает новый экземпляр UserService
func NewUserService(cfg *config.Config) *UserService {
	return &UserService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
	}
}

// GetProfile возвращает профиль текущего пользователя
func (s *UserService) GetProfile(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var u models.User
	err = db.Pool.QueryRow(ctx, `
        SELECT u.id, u.email, u.name, COALESCE(u.location, ''), COALESCE(u.profile_photo, ''),
               COALESCE(u.bio, ''), COALESCE(u.availability, ''), u.is_public, u.role,
               u.created_at, u.updated_at,
               COALESCE((SELECT AVG(rating) FROM ratings WHERE to_user_id = u.id), 0),
               (SELECT COUNT(*) FROM ratings WHERE to_user_id = u.id)
        FROM users u
        WHERE u.id = $1
    `, userUUID).Scan(
		&u.ID, &u.Email, &u.Name, &u.Location, &u.ProfilePhoto,
		&u.Bio, &u.Availability, &u.IsPublic, &u.Role,
		&u.CreatedAt, &u.UpdatedAt,
		&u.AverageRating, &u.RatingCount,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Пользователь не найден"})
		}
		log.Printf("Ошибка запроса профиля: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения профиля"})
	}

	return c.JSON(fiber.Map{"user": u})
}

// UpdateProfile обновляет профиль текущего пользователя
func (s *UserService) UpdateProfile(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	var payload struct {
		Name         string `json:"name"`
		Location     string `json:"location"`
		ProfilePhoto string `json:"profile_photo"`
		Bio          string `json:"bio"`
		Availability string `json:"availability"`
		IsPublic     *bool  `json:"is_public"`
	}

	if err := c.Bind().Body(&payload); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	if len(payload.Bio) > 1000 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Описание не должно превышать 1000 символов"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	// Частичное обновление: пустые строки не затирают существующие значения
	tag, err := db.Pool.Exec(ctx, `
        UPDATE users SET
            name = COALESCE(NULLIF($1, ''), name),
            location = COALESCE(NULLIF($2, ''), location),
            profile_photo = COALESCE(NULLIF($3, ''), profile_photo),
            bio = COALESCE(NULLIF($4, ''), bio),
            availability = COALESCE(NULLIF($5, ''), availability),
            is_public = COALESCE($6, is_public),
            updated_at = $7
        WHERE id = $8
    `, payload.Name, payload.Location, payload.ProfilePhoto,
		payload.Bio, payload.Availability, payload.IsPublic, time.Now(), userUUID)

	if err != nil {
		log.Printf("Ошибка обновления профиля: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка обновления профиля"})
	}

	if tag.RowsAffected() == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Пользователь не найден"})
	}

	return c.JSON(fiber.Map{"success": true})
}

// BrowseUsers возвращает публичные профили с поиском по навыкам
func (s *UserService) BrowseUsers(c fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	search := c.Query("search", "")
	offset := (page - 1) * limit

	ctx, cancel := db.GetContext()
	defer cancel()

	query := `
        SELECT DISTINCT u.id, u.name, COALESCE(u.location, ''), COALESCE(u.profile_photo, ''),
               COALESCE(u.bio, ''), COALESCE(u.availability, ''), u.is_public, u.created_at,
               COALESCE((SELECT AVG(rating) FROM ratings WHERE to_user_id = u.id), 0),
               (SELECT COUNT(*) FROM ratings WHERE to_user_id = u.id)
        FROM users u
    `
	args := []any{limit, offset}

	if search != "" {
		query += `
        JOIN skills sk ON sk.user_id = u.id AND sk.is_active = true
        WHERE u.is_public = true AND sk.name ILIKE $3
        `
		args = append(args, "%"+search+"%")
	} else {
		query += " WHERE u.is_public = true"
	}

	query += " ORDER BY u.created_at DESC LIMIT $1 OFFSET $2"

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		log.Printf("Ошибка поиска пользователей: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка поиска пользователей"})
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(
			&u.ID, &u.Name, &u.Location, &u.ProfilePhoto,
			&u.Bio, &u.Availability, &u.IsPublic, &u.CreatedAt,
			&u.AverageRating, &u.RatingCount,
		); err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}
		users = append(users, u)
	}

	return c.JSON(fiber.Map{
		"users": users,
		"page":  page,
		"limit": limit,
	})
}

// GetUser возвращает публичный профиль пользователя по ID
func (s *UserService) GetUser(c fiber.Ctx) error {
	targetUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var u models.User
	err = db.Pool.QueryRow(ctx, `
        SELECT u.id, u.name, COALESCE(u.location, ''), COALESCE(u.profile_photo, ''),
               COALESCE(u.bio, ''), COALESCE(u.availability, ''), u.is_public, u.created_at,
               COALESCE((SELECT AVG(rating) FROM ratings WHERE to_user_id = u.id), 0),
               (SELECT COUNT(*) FROM ratings WHERE to_user_id = u.id)
        FROM users u
        WHERE u.id = $1
    `, targetUUID).Scan(
		&u.ID, &u.Name, &u.Location, &u.ProfilePhoto,
		&u.Bio, &u.Availability, &u.IsPublic, &u.CreatedAt,
		&u.AverageRating, &u.RatingCount,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Пользователь не найден"})
		}
		log.Printf("Ошибка запроса профиля: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения профиля"})
	}

	if !u.IsPublic {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Профиль пользователя скрыт"})
	}

	return c.JSON(fiber.Map{"user": u.PublicProfile()})
}
